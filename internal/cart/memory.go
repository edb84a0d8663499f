package cart

import (
	"context"
	"sync"
)

// MemoryRepository keeps carts in-process. It backs tests and single-node
// dev setups where losing carts on restart is acceptable. It stores the
// serialized JSON form so reloads go through the same decode path as the
// durable backends.
type MemoryRepository struct {
	mu         sync.RWMutex
	carts      map[string][]byte
	lastOrders map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts:      make(map[string][]byte),
		lastOrders: make(map[string]string),
	}
}

func (r *MemoryRepository) Load(ctx context.Context, shopperID string) ([]LineItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return DecodeItems(r.carts[shopperID]), nil
}

func (r *MemoryRepository) Save(ctx context.Context, shopperID string, items []LineItem) error {
	data, err := EncodeItems(items)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.carts[shopperID] = data
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) SaveLastOrder(ctx context.Context, shopperID, orderID string) error {
	r.mu.Lock()
	r.lastOrders[shopperID] = orderID
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) LastOrder(ctx context.Context, shopperID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastOrders[shopperID], nil
}

// SeedRaw plants a raw JSON payload under a shopper's cart key, bypassing
// EncodeItems. Tests use it to simulate carts written by older builds.
func (r *MemoryRepository) SeedRaw(shopperID string, data []byte) {
	r.mu.Lock()
	r.carts[shopperID] = data
	r.mu.Unlock()
}
