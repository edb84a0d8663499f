package cart

import (
	"context"
	"sync"
)

// Manager hands out one Store per shopper, so every browser session maps to
// its own durable cart. Stores are cached for the life of the process; the
// durable repository remains the source of truth across restarts.
type Manager struct {
	repo Repository

	mu     sync.Mutex
	stores map[string]*Store
}

func NewManager(repo Repository) *Manager {
	return &Manager{
		repo:   repo,
		stores: make(map[string]*Store),
	}
}

// Store returns the cart store for a shopper, loading it from the
// repository on first use.
func (m *Manager) Store(ctx context.Context, shopperID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[shopperID]; ok {
		return s
	}
	s := NewStore(ctx, shopperID, m.repo)
	m.stores[shopperID] = s
	return s
}
