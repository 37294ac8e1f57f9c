// Package history keeps the bounded undo log: the ten most recent mutating
// actions, newest first, each carrying full before/after snapshots.
package history

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomstatus-backend/internal/model"
)

// Capacity is the fixed size of the undo log. The bound is structural: the
// ring below cannot hold more entries than this.
const Capacity = 10

// ring is a fixed-capacity buffer with insertion at the head. When full, a
// new entry overwrites the oldest one.
type ring struct {
	buf   [Capacity]model.HistoryEntry
	head  int // index of the most recent entry, valid when count > 0
	count int
}

func (r *ring) push(e model.HistoryEntry) {
	r.head = (r.head + 1) % Capacity
	r.buf[r.head] = e
	if r.count < Capacity {
		r.count++
	}
}

func (r *ring) pop() (model.HistoryEntry, bool) {
	if r.count == 0 {
		return model.HistoryEntry{}, false
	}
	e := r.buf[r.head]
	r.buf[r.head] = model.HistoryEntry{}
	r.head = (r.head - 1 + Capacity) % Capacity
	r.count--
	return e, true
}

// list returns the entries newest first.
func (r *ring) list() []model.HistoryEntry {
	out := make([]model.HistoryEntry, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head-i+Capacity*2)%Capacity])
	}
	return out
}

// Manager owns the undo log and persists it best-effort after every change.
type Manager struct {
	mu      sync.Mutex
	ring    ring
	persist persist
	now     func() time.Time
}

// persist is the subset of the blob store the log needs.
type persist interface {
	SaveHistory(ctx context.Context, entries []model.HistoryEntry) error
	LoadHistory(ctx context.Context) ([]model.HistoryEntry, error)
}

// NewManager creates a history manager backed by p and pre-loads any
// persisted log. A load failure starts with an empty log; history is
// best-effort, never fatal.
func NewManager(ctx context.Context, p persist) *Manager {
	m := &Manager{persist: p, now: time.Now}

	entries, err := p.LoadHistory(ctx)
	if err != nil {
		log.Printf("history: could not load persisted log: %v", err)
		return m
	}
	// Persisted newest-first; replay oldest-first so the ring ends up in
	// the same order. Anything beyond capacity is dropped.
	if len(entries) > Capacity {
		entries = entries[:Capacity]
	}
	for i := len(entries) - 1; i >= 0; i-- {
		m.ring.push(entries[i])
	}
	return m
}

// Record appends a new entry at the head of the log. roomNumber is empty for
// bulk and system actions. Persistence failures are logged and swallowed.
func (m *Manager) Record(ctx context.Context, kind model.ActionKind, description, roomNumber string, before, after model.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ring.push(model.HistoryEntry{
		ID:          uuid.NewString(),
		Timestamp:   m.now(),
		Kind:        kind,
		RoomNumber:  roomNumber,
		Description: description,
		Before:      before.Clone(),
		After:       after.Clone(),
	})
	m.persistLocked(ctx)
}

// UndoLast pops the most recent entry and returns its before-snapshot. The
// caller applies the snapshot back into the room store and must not record
// the undo itself as a new entry. Returns false when the log is empty.
func (m *Manager) UndoLast(ctx context.Context) (model.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.ring.pop()
	if !ok {
		log.Println("history: undo requested with empty log")
		return nil, false
	}
	m.persistLocked(ctx)
	return entry.Before.Clone(), true
}

// Clear empties the log.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ring = ring{}
	m.persistLocked(ctx)
}

// Entries returns the log newest first.
func (m *Manager) Entries() []model.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.list()
}

// Stats returns the total entry count and a per-kind breakdown.
func (m *Manager) Stats() (int, map[model.ActionKind]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKind := make(map[model.ActionKind]int)
	for _, e := range m.ring.list() {
		byKind[e.Kind]++
	}
	return m.ring.count, byKind
}

func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.persist.SaveHistory(ctx, m.ring.list()); err != nil {
		log.Printf("history: persist failed (log kept in memory): %v", err)
	}
}
