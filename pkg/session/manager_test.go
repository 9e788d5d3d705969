package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerGetOrCreate(t *testing.T) {
	m := NewManager(t.TempDir(), 0)

	s := m.GetOrCreate("discord:123")
	s.AppendText("user", "hello")

	again := m.GetOrCreate("discord:123")
	assert.Same(t, s, again)
	assert.Len(t, again.Messages, 1)
}

func TestManagerSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(dir, 0)
	s := m.GetOrCreate("cli:default")
	s.AppendText("user", "remember this")
	s.AppendText("assistant", "noted")
	require.NoError(t, m.Save(s))

	// fresh manager simulates process restart
	m2 := NewManager(dir, 0)
	s2 := m2.GetOrCreate("cli:default")
	require.Len(t, s2.Messages, 2)
	assert.Equal(t, "remember this", s2.Messages[0].Content)
}

func TestManagerKeySanitization(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, 0)

	s := m.GetOrCreate("discord:guild/123#chan")
	require.NoError(t, m.Save(s))

	// path traversal characters must not escape the sessions dir
	m2 := NewManager(dir, 0)
	s2 := m2.GetOrCreate("discord:guild/123#chan")
	assert.Equal(t, "discord:guild/123#chan", s2.Key)
}

func TestTurnTokenRejectsSecondClaim(t *testing.T) {
	m := NewManager(t.TempDir(), 0)
	s := m.GetOrCreate("cli:default")

	require.True(t, s.BeginTurn())
	assert.False(t, s.BeginTurn())

	s.EndTurn()
	assert.True(t, s.BeginTurn())
	s.EndTurn()
}

func TestSetMessagesReplacesHistory(t *testing.T) {
	m := NewManager(t.TempDir(), 0)
	s := m.GetOrCreate("cli:default")
	s.AppendText("user", "one")
	s.AppendText("assistant", "two")

	s.SetMessages([]Message{{Role: "assistant", Content: "only"}})

	require.Len(t, s.Messages, 1)
	assert.Equal(t, "only", s.Messages[0].Content)
}

func TestManagerReapEvictsIdle(t *testing.T) {
	m := NewManager(t.TempDir(), time.Minute)

	s := m.GetOrCreate("old")
	s.AppendText("user", "hi")
	s.UpdatedAt = time.Now().Add(-2 * time.Minute)
	fresh := m.GetOrCreate("fresh")
	fresh.AppendText("user", "hi")

	m.reap()

	keys := m.Keys()
	assert.NotContains(t, keys, "old")
	assert.Contains(t, keys, "fresh")

	// evicted sessions reload from disk with history intact
	back := m.GetOrCreate("old")
	assert.Len(t, back.Messages, 1)
}

// A session with a turn in flight must survive reaping, no matter how idle.
// Evicting it would let GetOrCreate mint a second Session for the same key
// with an unheld turn token.
func TestManagerReapSkipsInFlightTurn(t *testing.T) {
	m := NewManager(t.TempDir(), time.Minute)

	s := m.GetOrCreate("busy")
	require.True(t, s.BeginTurn())
	s.AppendText("user", "hi")
	s.UpdatedAt = time.Now().Add(-2 * time.Minute)

	m.reap()

	assert.Contains(t, m.Keys(), "busy")
	assert.Same(t, s, m.GetOrCreate("busy"))

	// once the turn ends, the next sweep may evict as usual
	s.EndTurn()
	s.UpdatedAt = time.Now().Add(-2 * time.Minute)
	m.reap()
	assert.NotContains(t, m.Keys(), "busy")
}
