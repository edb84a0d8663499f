package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/commerce"
	"github.com/example/storefront/internal/events"
)

// fakeDirectory is a hand-rolled commerce API fake recording every call.
type fakeDirectory struct {
	customers map[string]*commerce.Customer // keyed by lowercase email

	findCalls   []string
	createCalls []commerce.NewCustomer
	updateCalls []string
	orderCalls  []commerce.OrderRequest

	findErr   error
	createErr error
	updateErr error
	orderErr  error

	nextOrderID string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		customers:   make(map[string]*commerce.Customer),
		nextOrderID: "order-1",
	}
}

func (f *fakeDirectory) FindCustomerByEmail(ctx context.Context, email string) (*commerce.Customer, error) {
	f.findCalls = append(f.findCalls, email)
	if f.findErr != nil {
		return nil, f.findErr
	}
	for stored, customer := range f.customers {
		if strings.EqualFold(stored, email) {
			return customer, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) CreateCustomer(ctx context.Context, nc commerce.NewCustomer) (*commerce.Customer, error) {
	f.createCalls = append(f.createCalls, nc)
	if f.createErr != nil {
		return nil, f.createErr
	}
	customer := &commerce.Customer{
		ID:    "c-" + nc.Email,
		Email: nc.Email,
	}
	f.customers[strings.ToLower(nc.Email)] = customer
	return customer, nil
}

func (f *fakeDirectory) UpdateCustomer(ctx context.Context, id string, upd commerce.CustomerUpdate) error {
	f.updateCalls = append(f.updateCalls, id)
	return f.updateErr
}

func (f *fakeDirectory) CreateOrder(ctx context.Context, order commerce.OrderRequest) (string, error) {
	f.orderCalls = append(f.orderCalls, order)
	if f.orderErr != nil {
		return "", f.orderErr
	}
	return f.nextOrderID, nil
}


type recordingPublisher struct {
	published []string
}

func (r *recordingPublisher) Publish(ctx context.Context, key, eventType string, payload any) error {
	r.published = append(r.published, eventType)
	return nil
}

func newTestPipeline(directory Directory) *Pipeline {
	return NewPipeline(directory, events.NopPublisher{}, DefaultTaxRate)
}

func filledCart(t *testing.T) *cart.Store {
	t.Helper()
	store := cart.NewStore(context.Background(), "shopper-1", cart.NewMemoryRepository())
	store.AddToCart(context.Background(), cart.LineItem{
		ID:    "laptop-12",
		Name:  "ThinkPad X1",
		Type:  "laptop",
		Price: 50000,
	}, 1)
	return store
}

func validForm() BillingForm {
	return BillingForm{
		FirstName:     "Jane",
		LastName:      "Doe",
		Email:         "jane@example.com",
		Phone:         "555-0101",
		Address:       "1 Main St",
		City:          "Pune",
		Zip:           "411001",
		Country:       "IN",
		PaymentMethod: "cod",
	}
}

// ============================================
// Validation
// ============================================

func TestSubmit_EmptyCart_FailsBeforeNetwork(t *testing.T) {
	directory := newFakeDirectory()
	pipeline := newTestPipeline(directory)
	store := cart.NewStore(context.Background(), "shopper-1", cart.NewMemoryRepository())

	result := pipeline.Submit(context.Background(), store, validForm())

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, "your cart is empty", result.Message())
	assert.Empty(t, directory.findCalls)
	assert.Empty(t, directory.orderCalls)
}

func TestSubmit_MissingRequiredFields_FailFast(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*BillingForm)
		expected string
	}{
		{"first name", func(f *BillingForm) { f.FirstName = " " }, "first name is required"},
		{"last name", func(f *BillingForm) { f.LastName = "" }, "last name is required"},
		{"address", func(f *BillingForm) { f.Address = "" }, "address is required"},
		{"phone", func(f *BillingForm) { f.Phone = "" }, "phone is required"},
		{"email", func(f *BillingForm) { f.Email = "" }, "email is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directory := newFakeDirectory()
			pipeline := newTestPipeline(directory)
			store := filledCart(t)

			form := validForm()
			tt.mutate(&form)
			result := pipeline.Submit(context.Background(), store, form)

			assert.Equal(t, StateFailed, result.State)
			assert.Equal(t, tt.expected, result.Message())
			assert.Empty(t, directory.findCalls, "validation failure must not reach the network")
			// Cart untouched so the shopper can retry.
			assert.Len(t, store.Items(), 1)
		})
	}
}

// ============================================
// Customer resolution
// ============================================

func TestSubmit_ReusesKnownCustomerID(t *testing.T) {
	directory := newFakeDirectory()
	pipeline := newTestPipeline(directory)
	store := filledCart(t)

	form := validForm()
	form.CustomerID = "c-signed-in"
	result := pipeline.Submit(context.Background(), store, form)

	require.Equal(t, StateSucceeded, result.State)
	assert.Equal(t, "c-signed-in", result.CustomerID)
	assert.Empty(t, directory.findCalls)
	assert.Empty(t, directory.createCalls)
}

func TestSubmit_ReusesCustomerMatchedByEmail(t *testing.T) {
	directory := newFakeDirectory()
	directory.customers["jane@example.com"] = &commerce.Customer{ID: "c-77", Email: "jane@example.com"}
	pipeline := newTestPipeline(directory)
	store := filledCart(t)

	form := validForm()
	form.Email = "JANE@example.com"
	result := pipeline.Submit(context.Background(), store, form)

	require.Equal(t, StateSucceeded, result.State)
	assert.Equal(t, "c-77", result.CustomerID)
	assert.Empty(t, directory.createCalls)
}

func TestSubmit_GuestCheckoutCreatesCustomerWithGeneratedPassword(t *testing.T) {
	directory := newFakeDirectory()
	pipeline := newTestPipeline(directory)
	store := filledCart(t)

	result := pipeline.Submit(context.Background(), store, validForm())

	require.Equal(t, StateSucceeded, result.State)
	require.Len(t, directory.createCalls, 1)
	created := directory.createCalls[0]
	assert.Equal(t, "jane@example.com", created.Email)
	assert.GreaterOrEqual(t, len(created.Password), 32, "guest password must be unguessable")
}

func TestSubmit_RepeatedCheckoutSameEmail_NoDuplicateCustomer(t *testing.T) {
	directory := newFakeDirectory()
	pipeline := newTestPipeline(directory)
	ctx := context.Background()

	first := filledCart(t)
	result := pipeline.Submit(ctx, first, validForm())
	require.Equal(t, StateSucceeded, result.State)

	second := filledCart(t)
	result = pipeline.Submit(ctx, second, validForm())
	require.Equal(t, StateSucceeded, result.State)

	assert.Len(t, directory.createCalls, 1, "second submission must reuse the customer")
}

func TestSubmit_CustomerLookupFailure_Fails(t *testing.T) {
	directory := newFakeDirectory()
	directory.findErr = errors.New("connection refused")
	pipeline := newTestPipeline(directory)
	store := filledCart(t)

	result := pipeline.Submit(context.Background(), store, validForm())

	assert.Equal(t, StateFailed, result.State)
	assert.Len(t, store.Items(), 1)
	assert.Empty(t, directory.orderCalls)
}

// ============================================
// Address sync (best-effort)
// ============================================

func TestSubmit_AddressSyncFailure_OrderStillSucceeds(t *testing.T) {
	directory := newFakeDirectory()
	directory.updateErr = &commerce.APIError{Status: http.StatusInternalServerError, Message: "boom"}
	directory.nextOrderID = "order-42"
	pipeline := newTestPipeline(directory)
	store := filledCart(t)

	result := pipeline.Submit(context.Background(), store, validForm())

	require.Equal(t, StateSucceeded, result.State)
	assert.Equal(t, "order-42", result.OrderID)
	assert.Empty(t, store.Items(), "cart cleared after successful order")

	var syncStep *StepResult
	for i := range result.Steps {
		if result.Steps[i].State == StateSyncingAddress {
			syncStep = &result.Steps[i]
		}
	}
	require.NotNil(t, syncStep)
	assert.Equal(t, StepWarn, syncStep.Status)
}

// ============================================
// Order creation and totals
// ============================================

func TestSubmit_TotalsBlock(t *testing.T) {
	directory := newFakeDirectory()
	pipeline := newTestPipeline(directory)
	store := filledCart(t) // one laptop-12 at 50000

	result := pipeline.Submit(context.Background(), store, validForm())

	require.Equal(t, StateSucceeded, result.State)
	require.Len(t, directory.orderCalls, 1)
	totals := directory.orderCalls[0].Totals
	assert.Equal(t, 50000.0, totals.Subtotal)
	assert.Equal(t, 1000.0, totals.Tax)
	assert.Equal(t, 0.0, totals.Shipping)
	assert.Equal(t, 51000.0, totals.Total)
}

func TestSubmit_OrderCarriesCartSnapshot(t *testing.T) {
	directory := newFakeDirectory()
	pipeline := newTestPipeline(directory)
	store := filledCart(t)
	store.AddToCart(context.Background(), cart.LineItem{
		ID: "printer-3", Name: "OfficeJet", Type: "printer", Price: 7000,
	}, 2)

	result := pipeline.Submit(context.Background(), store, validForm())

	require.Equal(t, StateSucceeded, result.State)
	items := directory.orderCalls[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, "laptop-12", items[0].ID)
	assert.Equal(t, "printer-3", items[1].ID)
	assert.Equal(t, 2, items[1].Quantity)
}

func TestSubmit_ShippingDefaultsToBilling(t *testing.T) {
	directory := newFakeDirectory()
	pipeline := newTestPipeline(directory)
	store := filledCart(t)

	result := pipeline.Submit(context.Background(), store, validForm())

	require.Equal(t, StateSucceeded, result.State)
	order := directory.orderCalls[0]
	assert.Equal(t, order.Billing, order.Shipping)
}

func TestSubmit_OrderCreationFailure_SurfacesServerText_KeepsCart(t *testing.T) {
	directory := newFakeDirectory()
	directory.orderErr = &commerce.APIError{Status: http.StatusBadRequest, Message: "payment method not supported"}
	pipeline := newTestPipeline(directory)
	store := filledCart(t)

	result := pipeline.Submit(context.Background(), store, validForm())

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, "payment method not supported", result.Message())
	assert.Len(t, store.Items(), 1)

	lastOrder, err := store.LastOrder(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lastOrder)
}

func TestSubmit_GenericFallbackMessage(t *testing.T) {
	directory := newFakeDirectory()
	directory.orderErr = errors.New("dial tcp: i/o timeout")
	pipeline := newTestPipeline(directory)
	store := filledCart(t)

	result := pipeline.Submit(context.Background(), store, validForm())

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, genericFailureMessage, result.Message())
}

// ============================================
// Success effects
// ============================================

func TestSubmit_Success_ClearsCartAndRecordsOrder(t *testing.T) {
	directory := newFakeDirectory()
	directory.nextOrderID = "order-99"
	publisher := &recordingPublisher{}
	pipeline := NewPipeline(directory, publisher, DefaultTaxRate)
	store := filledCart(t)

	result := pipeline.Submit(context.Background(), store, validForm())

	require.Equal(t, StateSucceeded, result.State)
	assert.Equal(t, "order-99", result.OrderID)
	assert.Empty(t, store.Items())

	lastOrder, err := store.LastOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "order-99", lastOrder)

	assert.Equal(t, []string{events.EventOrderSubmitted}, publisher.published)
}

func TestSubmit_SnapshotIsolatedFromConcurrentMutation(t *testing.T) {
	directory := newFakeDirectory()
	store := filledCart(t)

	// Simulate the shopper mutating the cart while checkout is in flight:
	// the fake adds an item during the order call. The submitted order must
	// reflect the snapshot taken at submission time.
	snapshotLen := 0
	wrapped := &mutatingDirectory{fakeDirectory: directory, store: store, seen: &snapshotLen}
	pipeline := newTestPipeline(wrapped)

	result := pipeline.Submit(context.Background(), store, validForm())

	require.Equal(t, StateSucceeded, result.State)
	assert.Equal(t, 1, snapshotLen, "order built from the single snapshot")
}

type mutatingDirectory struct {
	*fakeDirectory
	store *cart.Store
	seen  *int
}

func (m *mutatingDirectory) CreateOrder(ctx context.Context, order commerce.OrderRequest) (string, error) {
	m.store.AddToCart(ctx, cart.LineItem{ID: "laptop-late", Name: "Late", Price: 1}, 1)
	*m.seen = len(order.Items)
	return m.fakeDirectory.CreateOrder(ctx, order)
}
