package repository

import (
	"context"
	"sync"

	"github.com/okian/couplepet/internal/domain/petstate"
)

// MemoryStore keeps the pet in process memory. Used by tests and the
// memory driver.
type MemoryStore struct {
	mu     sync.RWMutex
	state  *petstate.PetState
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (petstate.PetState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return petstate.PetState{}, ErrClosed
	}
	if m.state == nil {
		return petstate.PetState{}, ErrNotFound
	}
	return m.state.Clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s petstate.PetState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	c := s.Clone()
	m.state = &c
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
