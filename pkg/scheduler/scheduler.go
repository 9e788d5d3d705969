// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

// Package scheduler runs cron-timed reminder tasks. Tasks persist as JSON so
// they survive restarts; fired tasks are delivered through a caller-supplied
// handler.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
)

const (
	component    = "scheduler"
	tickInterval = 30 * time.Second
)

// Task is one scheduled reminder.
type Task struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Cron     string    `json:"cron"`
	Message  string    `json:"message"`
	UserID   string    `json:"user_id,omitempty"`
	Enabled  bool      `json:"enabled"`
	RunCount int       `json:"run_count"`
	LastRun  time.Time `json:"last_run,omitzero"`
	NextRun  time.Time `json:"next_run,omitzero"`
}

// Handler receives each fired task.
type Handler func(ctx context.Context, task Task)

// Stats summarizes scheduler state for display.
type Stats struct {
	Total    int
	Enabled  int
	Disabled int
	Running  bool
	Tasks    []Task
}

// Scheduler owns the task table and the tick loop.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	handler Handler
	path    string
	running bool
	cancel  context.CancelFunc
	gron    *gronx.Gronx

	// now is replaceable in tests
	now func() time.Time
}

func New(path string, handler Handler) *Scheduler {
	return &Scheduler{
		tasks:   make(map[string]*Task),
		handler: handler,
		path:    path,
		gron:    gronx.New(),
		now:     time.Now,
	}
}

// Load restores persisted tasks. A missing file is a fresh start, not an
// error. Next-run times are recomputed since they may be stale.
func (s *Scheduler) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read tasks file: %w", err)
	}

	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("parse tasks file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range tasks {
		t := tasks[i]
		if next, err := gronx.NextTickAfter(t.Cron, s.now(), false); err == nil {
			t.NextRun = next
		}
		s.tasks[t.ID] = &t
	}
	logger.InfoCF(component, "tasks loaded", map[string]interface{}{"count": len(tasks)})
	return nil
}

func (s *Scheduler) save() error {
	if s.path == "" {
		return nil
	}
	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, *t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create tasks dir: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Schedule registers a new enabled task and persists the table.
func (s *Scheduler) Schedule(name, cron, message, userID string) (Task, error) {
	if !s.gron.IsValid(cron) {
		return Task{}, fmt.Errorf("invalid cron expression %q", cron)
	}
	next, err := gronx.NextTickAfter(cron, s.now(), false)
	if err != nil {
		return Task{}, fmt.Errorf("compute next run: %w", err)
	}

	task := Task{
		ID:      "task_" + uuid.NewString()[:8],
		Name:    name,
		Cron:    cron,
		Message: message,
		UserID:  userID,
		Enabled: true,
		NextRun: next,
	}

	s.mu.Lock()
	s.tasks[task.ID] = &task
	err = s.save()
	s.mu.Unlock()
	if err != nil {
		logger.WarnCF(component, "persist after schedule failed", map[string]interface{}{"error": err.Error()})
	}

	logger.InfoCF(component, "task scheduled", map[string]interface{}{
		"id": task.ID, "name": name, "cron": cron,
	})
	return task, nil
}

// Unschedule removes a task. Returns false when the id is unknown.
func (s *Scheduler) Unschedule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	if err := s.save(); err != nil {
		logger.WarnCF(component, "persist after unschedule failed", map[string]interface{}{"error": err.Error()})
	}
	return true
}

// Enable turns a task back on and recomputes its next run.
func (s *Scheduler) Enable(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.Enabled = true
	if next, err := gronx.NextTickAfter(t.Cron, s.now(), false); err == nil {
		t.NextRun = next
	}
	_ = s.save()
	return true
}

// Disable pauses a task without deleting it.
func (s *Scheduler) Disable(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.Enabled = false
	_ = s.save()
	return true
}

// Update edits a task's name, cron, or message; empty values leave the field
// untouched.
func (s *Scheduler) Update(id, name, cron, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	if cron != "" {
		if !s.gron.IsValid(cron) {
			return fmt.Errorf("invalid cron expression %q", cron)
		}
		t.Cron = cron
		if next, err := gronx.NextTickAfter(cron, s.now(), false); err == nil {
			t.NextRun = next
		}
	}
	if name != "" {
		t.Name = name
	}
	if message != "" {
		t.Message = message
	}
	return s.save()
}

// Get returns a task snapshot.
func (s *Scheduler) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Stats snapshots the task table, sorted by id.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Total: len(s.tasks), Running: s.running}
	for _, t := range s.tasks {
		if t.Enabled {
			stats.Enabled++
		} else {
			stats.Disabled++
		}
		stats.Tasks = append(stats.Tasks, *t)
	}
	sort.Slice(stats.Tasks, func(i, j int) bool { return stats.Tasks[i].ID < stats.Tasks[j].ID })
	return stats
}

// Start launches the tick loop. Safe to call more than once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	count := len(s.tasks)
	s.mu.Unlock()

	logger.InfoCF(component, "scheduler started", map[string]interface{}{"tasks": count})
	go s.run(ctx)
}

// Stop halts the tick loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	logger.InfoC(component, "scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkDue(ctx)
		}
	}
}

// checkDue fires every enabled task whose next run has passed, then advances
// its schedule. Handler panics or errors never stop the loop.
func (s *Scheduler) checkDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []Task
	for _, t := range s.tasks {
		if !t.Enabled || t.NextRun.IsZero() || now.Before(t.NextRun) {
			continue
		}
		due = append(due, *t)

		t.RunCount++
		t.LastRun = now
		if next, err := gronx.NextTickAfter(t.Cron, now, false); err == nil {
			t.NextRun = next
		} else {
			// one-shot expressions have no future tick; disable instead
			// of firing forever
			t.Enabled = false
			logger.DebugCF(component, "no future tick, task disabled", map[string]interface{}{"id": t.ID})
		}
	}
	if len(due) > 0 {
		_ = s.save()
	}
	s.mu.Unlock()

	for _, task := range due {
		logger.InfoCF(component, "task fired", map[string]interface{}{"id": task.ID, "name": task.Name})
		if s.handler != nil {
			s.handler(ctx, task)
		}
	}
}
