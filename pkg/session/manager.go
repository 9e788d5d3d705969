// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
)

const component = "session"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Manager owns the live session map and its JSON persistence. A zero TTL
// means sessions are never evicted.
type Manager struct {
	dir string
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(dir string, ttl time.Duration) *Manager {
	return &Manager{
		dir:      dir,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the live session for key, loading it from disk on
// first access and creating it if it has never existed.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}

	if s, err := m.load(key); err == nil {
		m.sessions[key] = s
		return s
	}

	s := &Session{
		Key:       key,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.sessions[key] = s
	logger.DebugCF(component, "session created", map[string]interface{}{"key": key})
	return s
}

// Save persists one session to its JSON file.
func (m *Manager) Save(s *Session) error {
	if m.dir == "" {
		return nil
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", s.Key, err)
	}
	return os.WriteFile(m.path(s.Key), data, 0600)
}

func (m *Manager) load(key string) (*Session, error) {
	if m.dir == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(m.path(key))
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.Key = key
	return &s, nil
}

func (m *Manager) path(key string) string {
	safe := unsafeKeyChars.ReplaceAllString(key, "_")
	return filepath.Join(m.dir, safe+".json")
}

// StartReaper evicts idle sessions in the background until ctx is done.
// Evicted sessions are saved first; they reload transparently on next use.
// No-op when the TTL is zero.
func (m *Manager) StartReaper(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reap()
			}
		}
	}()
}

func (m *Manager) reap() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			// Claim the turn token before touching the session.
			// Evicting mid-turn would hand a second caller a fresh
			// Session for the same key, and both could then mutate
			// the same history file.
			if !s.BeginTurn() {
				continue
			}
			if err := m.Save(s); err != nil {
				s.EndTurn()
				logger.WarnCF(component, "save before evict failed", map[string]interface{}{
					"key": key, "error": err.Error(),
				})
				continue
			}
			delete(m.sessions, key)
			s.EndTurn()
			logger.DebugCF(component, "session evicted", map[string]interface{}{"key": key})
		}
	}
}

// Keys lists live session keys.
func (m *Manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	return keys
}
