package credstore

import (
	"context"
	"sync"
)

// Memory holds the token pair in process memory only. It backs sessions
// where the user declined "remember me": the pair is gone as soon as the
// process goes away.
type Memory struct {
	mu   sync.Mutex
	pair *Pair
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save replaces the held pair.
func (m *Memory) Save(_ context.Context, pair Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := pair
	m.pair = &p
	return nil
}

// Read returns a copy of the held pair, or (nil, nil) when empty.
func (m *Memory) Read(_ context.Context) (*Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pair == nil {
		return nil, nil
	}
	p := *m.pair
	return &p, nil
}

// Clear drops the held pair. Clearing an empty store is a no-op.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = nil
	return nil
}
