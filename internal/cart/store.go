package cart

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// DefaultNoticeTTL is how long an "item added" notice stays visible.
const DefaultNoticeTTL = 2400 * time.Millisecond

// Snapshot is an immutable view of the cart plus its derived aggregates.
// Consumers must not mutate Items; every call produces a fresh copy.
type Snapshot struct {
	Items    []LineItem `json:"items"`
	Count    int        `json:"count"`
	Subtotal float64    `json:"subtotal"`
}

// AddedNotice is the transient feedback shown after an add. Quantity is the
// just-added amount, not the cumulative line quantity.
type AddedNotice struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Store holds one shopper's cart. All mutations recompute the derived
// aggregates, persist the full cart to the repository and notify
// subscribers with a fresh snapshot.
type Store struct {
	shopperID string
	repo      Repository

	mu          sync.Mutex
	items       []LineItem
	notice      *AddedNotice
	noticeTimer *time.Timer
	noticeTTL   time.Duration
	subs        map[int]func(Snapshot)
	nextSubID   int
}

// NewStore loads the shopper's persisted cart. A repository read failure is
// logged and yields an empty cart rather than blocking the shopper.
func NewStore(ctx context.Context, shopperID string, repo Repository) *Store {
	s := &Store{
		shopperID: shopperID,
		repo:      repo,
		noticeTTL: DefaultNoticeTTL,
		subs:      make(map[int]func(Snapshot)),
	}

	items, err := repo.Load(ctx, shopperID)
	if err != nil {
		log.Printf("[Cart] Failed to load cart for %s, starting empty: %v", shopperID, err)
		return s
	}
	s.items = items
	return s
}

// AddToCart merges the item into the cart. An item whose id does not
// resolve to anything non-empty is rejected silently. When a line with the
// same id exists its quantity grows by the added amount and every other
// field of the existing line is preserved; otherwise the item is appended.
func (s *Store) AddToCart(ctx context.Context, item LineItem, quantity int) {
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return
	}
	if quantity < 1 {
		quantity = 1
	}
	item.ID = id
	item.Price = coercePrice(item.Price)

	s.mu.Lock()
	name := item.Name
	if i := s.indexOf(id); i >= 0 {
		s.items[i].Quantity += quantity
		name = s.items[i].Name
	} else {
		item.Quantity = quantity
		s.items = append(s.items, item)
	}
	s.setNoticeLocked(name, quantity)
	s.persistLocked(ctx)
	snapshot, subs := s.observersLocked()
	s.mu.Unlock()

	publish(snapshot, subs)
}

// UpdateQuantity sets (not adds) the quantity for a line, clamped to a
// minimum of 1. Unknown ids are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.items[i].Quantity = quantity
	s.persistLocked(ctx)
	snapshot, subs := s.observersLocked()
	s.mu.Unlock()

	publish(snapshot, subs)
}

// RemoveFromCart removes the matching line. Unknown ids are a no-op.
func (s *Store) RemoveFromCart(ctx context.Context, id string) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.persistLocked(ctx)
	snapshot, subs := s.observersLocked()
	s.mu.Unlock()

	publish(snapshot, subs)
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	s.persistLocked(ctx)
	snapshot, subs := s.observersLocked()
	s.mu.Unlock()

	publish(snapshot, subs)
}

// ShopperID returns the identity this cart belongs to.
func (s *Store) ShopperID() string {
	return s.shopperID
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyItems(s.items)
}

// Count is the sum of all line quantities.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countLocked(s.items)
}

// Subtotal is the sum of price times quantity over all lines.
func (s *Store) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return subtotalLocked(s.items)
}

// TakeSnapshot returns the cart and its aggregates as one immutable value.
// The checkout pipeline reads exactly one snapshot per submission and never
// re-reads the live cart afterward.
func (s *Store) TakeSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Notice returns the still-pending "item added" notice, if any.
func (s *Store) Notice() (AddedNotice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return AddedNotice{}, false
	}
	return *s.notice, true
}

// Subscribe registers an observer invoked with a fresh snapshot after every
// mutation. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SetLastOrder records the id of the shopper's last completed order.
func (s *Store) SetLastOrder(ctx context.Context, orderID string) error {
	return s.repo.SaveLastOrder(ctx, s.shopperID, orderID)
}

// LastOrder returns the id of the shopper's last completed order, if any.
func (s *Store) LastOrder(ctx context.Context) (string, error) {
	return s.repo.LastOrder(ctx, s.shopperID)
}

func (s *Store) indexOf(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// setNoticeLocked replaces any pending notice; a single notice is active at
// a time and the prior expiry timer is canceled.
func (s *Store) setNoticeLocked(name string, quantity int) {
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
	}
	notice := &AddedNotice{Name: name, Quantity: quantity}
	s.notice = notice
	s.noticeTimer = time.AfterFunc(s.noticeTTL, func() {
		s.mu.Lock()
		if s.notice == notice {
			s.notice = nil
		}
		s.mu.Unlock()
	})
}

func (s *Store) persistLocked(ctx context.Context) {
	if err := s.repo.Save(ctx, s.shopperID, copyItems(s.items)); err != nil {
		log.Printf("[Cart] Failed to persist cart for %s: %v", s.shopperID, err)
	}
}

// observersLocked captures the snapshot and subscriber list while the lock
// is held; publish runs the callbacks after it is released so a subscriber
// may read the store without deadlocking.
func (s *Store) observersLocked() (Snapshot, []func(Snapshot)) {
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return s.snapshotLocked(), subs
}

func publish(snapshot Snapshot, subs []func(Snapshot)) {
	for _, fn := range subs {
		fn(snapshot)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Items:    copyItems(s.items),
		Count:    countLocked(s.items),
		Subtotal: subtotalLocked(s.items),
	}
}

func copyItems(items []LineItem) []LineItem {
	copied := make([]LineItem, len(items))
	copy(copied, items)
	return copied
}

func countLocked(items []LineItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

func subtotalLocked(items []LineItem) float64 {
	subtotal := 0.0
	for _, item := range items {
		subtotal += item.Price * float64(item.Quantity)
	}
	return subtotal
}
