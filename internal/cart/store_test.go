package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	store := NewStore(context.Background(), "shopper-1", repo)
	return store, repo
}

func laptopItem(id string) LineItem {
	return LineItem{
		ID:       id,
		Name:     "ThinkPad X1",
		Image:    "x1.jpg",
		Type:     "laptop",
		Category: "laptops",
		Price:    50000,
	}
}

// ============================================
// AddToCart
// ============================================

func TestStore_AddToCart_MergesByID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-12"), 2)
	store.AddToCart(ctx, laptopItem("laptop-12"), 3)

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 5, store.Count())
}

func TestStore_AddToCart_MergePreservesExistingFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-12"), 1)

	// Second add carries a different image; the original line wins.
	changed := laptopItem("laptop-12")
	changed.Image = "different.jpg"
	changed.Name = "Renamed"
	store.AddToCart(ctx, changed, 1)

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "x1.jpg", items[0].Image)
	assert.Equal(t, "ThinkPad X1", items[0].Name)
}

func TestStore_AddToCart_RejectsEmptyID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, LineItem{ID: "  ", Name: "ghost"}, 1)

	assert.Empty(t, store.Items())
	_, pending := store.Notice()
	assert.False(t, pending)
}

func TestStore_AddToCart_AppendsInInsertionOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-1"), 1)
	store.AddToCart(ctx, laptopItem("printer-2"), 1)
	store.AddToCart(ctx, laptopItem("laptop-1"), 1)
	store.AddToCart(ctx, laptopItem("laptop-3"), 1)

	items := store.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "laptop-1", items[0].ID)
	assert.Equal(t, "printer-2", items[1].ID)
	assert.Equal(t, "laptop-3", items[2].ID)
}

func TestStore_AddToCart_CoercesPriceAndQuantity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	item := laptopItem("laptop-1")
	item.Price = -5
	store.AddToCart(ctx, item, 0)

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 0.0, items[0].Price)
	assert.Equal(t, 1, items[0].Quantity)
}

// ============================================
// UpdateQuantity / RemoveFromCart / ClearCart
// ============================================

func TestStore_UpdateQuantity_ClampsToOne(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-12"), 4)
	store.UpdateQuantity(ctx, "laptop-12", 0)

	assert.Equal(t, 1, store.Items()[0].Quantity)

	store.UpdateQuantity(ctx, "laptop-12", -3)
	assert.Equal(t, 1, store.Items()[0].Quantity)
}

func TestStore_UpdateQuantity_Sets_NotAdds(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-12"), 4)
	store.UpdateQuantity(ctx, "laptop-12", 2)

	assert.Equal(t, 2, store.Items()[0].Quantity)
}

func TestStore_UpdateQuantity_UnknownID_NoOp(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-12"), 1)
	store.UpdateQuantity(ctx, "missing", 9)

	assert.Equal(t, 1, store.Count())
}

func TestStore_RemoveFromCart(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-12"), 1)
	store.RemoveFromCart(ctx, "laptop-12")

	assert.Empty(t, store.Items())
}

func TestStore_RemoveFromCart_UnknownID_NoOp(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-12"), 1)
	store.RemoveFromCart(ctx, "missing")

	assert.Len(t, store.Items(), 1)
}

func TestStore_ClearCart(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-12"), 2)
	store.AddToCart(ctx, laptopItem("printer-1"), 1)
	store.ClearCart(ctx)

	assert.Empty(t, store.Items())
	assert.Equal(t, 0, store.Count())
	assert.Equal(t, 0.0, store.Subtotal())
}

// ============================================
// Derived aggregates
// ============================================

func TestStore_Aggregates(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	cheap := laptopItem("laptop-1")
	cheap.Price = 100
	store.AddToCart(ctx, cheap, 2)

	dear := laptopItem("laptop-2")
	dear.Price = 50000
	store.AddToCart(ctx, dear, 1)

	assert.Equal(t, 3, store.Count())
	assert.Equal(t, 50200.0, store.Subtotal())
}

func TestStore_ItemsReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-1"), 1)

	leaked := store.Items()
	leaked[0].Quantity = 99

	assert.Equal(t, 1, store.Items()[0].Quantity)
}

// ============================================
// Persistence
// ============================================

func TestStore_PersistsEveryMutation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	store := NewStore(ctx, "shopper-1", repo)
	store.AddToCart(ctx, laptopItem("laptop-12"), 2)
	store.UpdateQuantity(ctx, "laptop-12", 5)

	// A second store over the same repository sees the persisted state.
	reloaded := NewStore(ctx, "shopper-1", repo)
	items := reloaded.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 50000.0, items[0].Price)
}

func TestStore_ReloadCoercesMalformedStoredValues(t *testing.T) {
	repo := NewMemoryRepository()
	repo.SeedRaw("shopper-1", []byte(`[
		{"id": "laptop-12", "name": "ThinkPad", "quantity": "abc", "price": "oops"},
		{"id": "printer-3", "quantity": 2, "price": 1500},
		{"quantity": 4},
		"not-an-object"
	]`))

	store := NewStore(context.Background(), "shopper-1", repo)

	items := store.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 0.0, items[0].Price)
	assert.Equal(t, 2, items[1].Quantity)
	assert.Equal(t, 1500.0, items[1].Price)
}

func TestStore_ReloadSurvivesCorruptPayload(t *testing.T) {
	repo := NewMemoryRepository()
	repo.SeedRaw("shopper-1", []byte(`{"not": "an array"`))

	store := NewStore(context.Background(), "shopper-1", repo)

	assert.Empty(t, store.Items())
}

// ============================================
// Notices
// ============================================

func TestStore_Notice_CarriesJustAddedQuantity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-12"), 2)
	store.AddToCart(ctx, laptopItem("laptop-12"), 3)

	notice, pending := store.Notice()
	require.True(t, pending)
	assert.Equal(t, 3, notice.Quantity)
	assert.Equal(t, "ThinkPad X1", notice.Name)
}

func TestStore_Notice_LastWriteWins(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-1"), 1)
	second := laptopItem("printer-9")
	second.Name = "OfficeJet"
	store.AddToCart(ctx, second, 4)

	notice, pending := store.Notice()
	require.True(t, pending)
	assert.Equal(t, "OfficeJet", notice.Name)
	assert.Equal(t, 4, notice.Quantity)
}

func TestStore_Notice_Expires(t *testing.T) {
	store, _ := newTestStore(t)
	store.noticeTTL = 10 * time.Millisecond
	ctx := context.Background()

	store.AddToCart(ctx, laptopItem("laptop-1"), 1)

	_, pending := store.Notice()
	require.True(t, pending)

	assert.Eventually(t, func() bool {
		_, pending := store.Notice()
		return !pending
	}, time.Second, 5*time.Millisecond)
}

// ============================================
// Subscriptions
// ============================================

func TestStore_Subscribe_NotifiedOnEveryMutation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var snapshots []Snapshot
	unsubscribe := store.Subscribe(func(s Snapshot) {
		snapshots = append(snapshots, s)
	})

	store.AddToCart(ctx, laptopItem("laptop-1"), 2)
	store.UpdateQuantity(ctx, "laptop-1", 1)
	store.RemoveFromCart(ctx, "laptop-1")

	require.Len(t, snapshots, 3)
	assert.Equal(t, 2, snapshots[0].Count)
	assert.Equal(t, 1, snapshots[1].Count)
	assert.Equal(t, 0, snapshots[2].Count)

	unsubscribe()
	store.AddToCart(ctx, laptopItem("laptop-1"), 1)
	assert.Len(t, snapshots, 3)
}

func TestStore_NoOpMutationsDoNotNotify(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	notified := 0
	store.Subscribe(func(Snapshot) { notified++ })

	store.AddToCart(ctx, LineItem{ID: ""}, 1)
	store.UpdateQuantity(ctx, "missing", 2)
	store.RemoveFromCart(ctx, "missing")

	assert.Equal(t, 0, notified)
}

// ============================================
// Manager
// ============================================

func TestManager_OneStorePerShopper(t *testing.T) {
	repo := NewMemoryRepository()
	manager := NewManager(repo)
	ctx := context.Background()

	a := manager.Store(ctx, "shopper-a")
	b := manager.Store(ctx, "shopper-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, manager.Store(ctx, "shopper-a"))

	a.AddToCart(ctx, laptopItem("laptop-1"), 1)
	assert.Empty(t, b.Items())
}

func TestStore_LastOrderRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	orderID, err := store.LastOrder(ctx)
	require.NoError(t, err)
	assert.Empty(t, orderID)

	require.NoError(t, store.SetLastOrder(ctx, "order-77"))

	orderID, err = store.LastOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-77", orderID)
}
