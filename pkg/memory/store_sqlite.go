// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the canonical persistent memory storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the memory database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process store. One shared connection avoids writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '[]',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at_ms DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init memory schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, content, source string, tags []string) (Item, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Item{}, fmt.Errorf("memory content is empty")
	}

	item := Item{
		ID:        uuid.NewString(),
		Content:   content,
		Source:    source,
		Tags:      tags,
		CreatedAt: time.Now(),
	}

	tagsJSON, err := json.Marshal(item.Tags)
	if err != nil {
		tagsJSON = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories(id, content, source, tags_json, created_at_ms) VALUES(?, ?, ?, ?, ?)`,
		item.ID, item.Content, item.Source, string(tagsJSON), item.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Item{}, fmt.Errorf("save memory: %w", err)
	}
	return item, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 8
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, source, tags_json, created_at_ms FROM memories ORDER BY created_at_ms DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// Search matches content case-insensitively against every whitespace term.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 8
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return s.Recent(ctx, limit)
	}

	var where []string
	var args []interface{}
	for _, term := range terms {
		where = append(where, `LOWER(content) LIKE ?`)
		args = append(args, "%"+term+"%")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, source, tags_json, created_at_ms FROM memories WHERE `+
			strings.Join(where, " AND ")+
			` ORDER BY created_at_ms DESC, rowid DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var it Item
		var tagsJSON string
		var createdMS int64
		if err := rows.Scan(&it.ID, &it.Content, &it.Source, &tagsJSON, &createdMS); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &it.Tags)
		it.CreatedAt = time.UnixMilli(createdMS)
		items = append(items, it)
	}
	return items, rows.Err()
}
