package store

import (
	"context"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/plado/internal/event"
)

type entry struct {
	mu   sync.Mutex
	snap *event.Snapshot
}

// Memory is the default in-process Store. The key table is guarded by one
// RWMutex; each entry has its own lock so slow work on one key never blocks
// another.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	closed  bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]*entry)}
}

func (m *Memory) entry(key Key, create bool) (*entry, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok || !create {
		return e, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if e, ok = m.entries[key]; !ok {
		e = &entry{}
		m.entries[key] = e
	}
	return e, nil
}

func (m *Memory) Get(_ context.Context, key Key) (*event.Snapshot, error) {
	e, err := m.entry(key, false)
	if err != nil || e == nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap == nil {
		return nil, nil
	}
	s := e.snap.Clone()
	return &s, nil
}

func (m *Memory) Put(_ context.Context, key Key, snap event.Snapshot) error {
	e, err := m.entry(key, true)
	if err != nil {
		return err
	}
	s := snap.Clone()
	e.mu.Lock()
	e.snap = &s
	e.mu.Unlock()
	return nil
}

// List returns the snapshots stored under scope ordered by entity id.
func (m *Memory) List(_ context.Context, scope string) ([]event.Snapshot, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	var found []*entry
	for k, e := range m.entries {
		if k.Scope == scope {
			found = append(found, e)
		}
	}
	m.mu.RUnlock()

	out := make([]event.Snapshot, 0, len(found))
	for _, e := range found {
		e.mu.Lock()
		if e.snap != nil {
			out = append(out, e.snap.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}
