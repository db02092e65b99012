package cache

import (
	"context"
	"sync"
	"time"

	"github.com/gear-detector/backend/internal/gear"
)

type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// NewMemory returns an in-process store. now defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: make(map[string]*Entry), now: now}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Lookup(ctx context.Context, key string) (*Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || e.Expired(m.now()) {
		return nil, false, nil
	}
	out := *e
	out.Result = e.Result.Clone()
	return &out, true, nil
}

func (m *Memory) Get(ctx context.Context, key string) (*gear.GearResult, bool, error) {
	e, ok, err := m.Lookup(ctx, key)
	if !ok || err != nil {
		return nil, false, err
	}
	return e.Result, true, nil
}

func (m *Memory) Put(ctx context.Context, key string, result *gear.GearResult, ttl time.Duration) error {
	e := NewEntry(key, result, m.now(), ttl)
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (m *Memory) Purge() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
