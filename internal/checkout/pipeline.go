package checkout

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/commerce"
	"github.com/example/storefront/internal/events"
)

// State names the stages of one submission attempt.
type State string

const (
	StateCollecting        State = "collecting"
	StateValidating        State = "validating"
	StateResolvingCustomer State = "resolving_customer"
	StateSyncingAddress    State = "syncing_address"
	StateCreatingOrder     State = "creating_order"
	StateSucceeded         State = "succeeded"
	StateFailed            State = "failed"
)

// StepStatus tags each step outcome so continue-after-warning is an
// explicit branch, not an accident of swallowed errors.
type StepStatus string

const (
	StepOk   StepStatus = "ok"
	StepWarn StepStatus = "warn"
	StepFail StepStatus = "fail"
)

type StepResult struct {
	State   State      `json:"state"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
	Err     error      `json:"-"`
}

// DefaultTaxRate is the flat storefront tax policy. Shipping is free.
const DefaultTaxRate = 0.02

const genericFailureMessage = "Something went wrong placing your order. Please try again."

// ValidationError is a missing-required-field failure, recovered locally
// before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var ErrEmptyCart = &ValidationError{Message: "your cart is empty"}

// BillingForm is the shopper's checkout input.
type BillingForm struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`

	// Shipping, when nil, means ship to the billing address.
	Shipping *commerce.Address `json:"shipping,omitempty"`

	PaymentMethod string `json:"paymentMethod"`
	Notes         string `json:"notes"`

	// CustomerID is the already-known customer, when the shopper is
	// signed in. Empty means guest checkout.
	CustomerID string `json:"customerId"`
}

// Directory is the slice of the commerce API the pipeline depends on.
type Directory interface {
	FindCustomerByEmail(ctx context.Context, email string) (*commerce.Customer, error)
	CreateCustomer(ctx context.Context, nc commerce.NewCustomer) (*commerce.Customer, error)
	UpdateCustomer(ctx context.Context, id string, upd commerce.CustomerUpdate) error
	CreateOrder(ctx context.Context, order commerce.OrderRequest) (string, error)
}

// Result reports one submission attempt. On failure the cart is untouched
// so the shopper can retry without rebuilding it.
type Result struct {
	State      State        `json:"state"`
	OrderID    string       `json:"orderId,omitempty"`
	CustomerID string       `json:"customerId,omitempty"`
	Steps      []StepResult `json:"steps"`
	Err        error        `json:"-"`
}

// Pipeline orchestrates checkout: resolve-or-create the customer, sync the
// address best-effort, submit the order, then clear the cart. A Pipeline is
// stateless across submissions; every Submit starts from a fresh cart
// snapshot, so an abandoned attempt is simply restartable.
type Pipeline struct {
	directory Directory
	publisher events.Publisher
	taxRate   float64
}

func NewPipeline(directory Directory, publisher events.Publisher, taxRate float64) *Pipeline {
	if taxRate <= 0 {
		taxRate = DefaultTaxRate
	}
	return &Pipeline{
		directory: directory,
		publisher: publisher,
		taxRate:   taxRate,
	}
}

// Submit runs one checkout attempt against a single immutable cart
// snapshot. The live cart is never re-read while the network calls are in
// flight; it is cleared only after the order exists.
func (p *Pipeline) Submit(ctx context.Context, store *cart.Store, form BillingForm) Result {
	snapshot := store.TakeSnapshot()
	steps := []StepResult{{State: StateCollecting, Status: StepOk}}

	// Validation fails fast: no network call is made for input the
	// shopper can fix locally.
	if err := validate(snapshot, form); err != nil {
		steps = append(steps, StepResult{State: StateValidating, Status: StepFail, Message: err.Error(), Err: err})
		return failed(steps, err)
	}
	steps = append(steps, StepResult{State: StateValidating, Status: StepOk})

	customerID, err := p.resolveCustomer(ctx, form)
	if err != nil {
		steps = append(steps, StepResult{State: StateResolvingCustomer, Status: StepFail, Message: failureMessage(err), Err: err})
		return failed(steps, err)
	}
	steps = append(steps, StepResult{State: StateResolvingCustomer, Status: StepOk})

	// Address sync is best-effort: a resolved customer with stale address
	// data beats losing the order.
	if err := p.syncAddress(ctx, customerID, form); err != nil {
		log.Printf("[Checkout] Address sync failed for customer %s, continuing: %v", customerID, err)
		steps = append(steps, StepResult{State: StateSyncingAddress, Status: StepWarn, Message: failureMessage(err), Err: err})
	} else {
		steps = append(steps, StepResult{State: StateSyncingAddress, Status: StepOk})
	}

	order := p.buildOrder(customerID, form, snapshot)
	orderID, err := p.directory.CreateOrder(ctx, order)
	if err != nil {
		steps = append(steps, StepResult{State: StateCreatingOrder, Status: StepFail, Message: failureMessage(err), Err: err})
		return failed(steps, err)
	}
	steps = append(steps, StepResult{State: StateCreatingOrder, Status: StepOk})

	p.finish(ctx, store, snapshot, form, customerID, orderID)
	steps = append(steps, StepResult{State: StateSucceeded, Status: StepOk})

	return Result{
		State:      StateSucceeded,
		OrderID:    orderID,
		CustomerID: customerID,
		Steps:      steps,
	}
}

func validate(snapshot cart.Snapshot, form BillingForm) error {
	if len(snapshot.Items) == 0 {
		return ErrEmptyCart
	}

	required := []struct {
		value   string
		message string
	}{
		{form.FirstName, "first name is required"},
		{form.LastName, "last name is required"},
		{form.Address, "address is required"},
		{form.Phone, "phone is required"},
		{form.Email, "email is required"},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return &ValidationError{Message: field.message}
		}
	}
	return nil
}

// resolveCustomer reuses a known customer id, then an existing record
// matched by email, and only then registers a guest. Looking up before
// creating keeps retries with the same email from minting duplicates.
func (p *Pipeline) resolveCustomer(ctx context.Context, form BillingForm) (string, error) {
	if form.CustomerID != "" {
		return form.CustomerID, nil
	}

	email := strings.TrimSpace(form.Email)
	existing, err := p.directory.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	// Guest checkout: the account gets an unguessable password; password
	// reset is the only interactive way into it later.
	created, err := p.directory.CreateCustomer(ctx, commerce.NewCustomer{
		Email:     email,
		Password:  uuid.New().String(),
		FirstName: form.FirstName,
		LastName:  form.LastName,
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (p *Pipeline) syncAddress(ctx context.Context, customerID string, form BillingForm) error {
	return p.directory.UpdateCustomer(ctx, customerID, commerce.CustomerUpdate{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Phone:     form.Phone,
		Address:   form.Address,
		City:      form.City,
		Zip:       form.Zip,
		Country:   form.Country,
	})
}

func (p *Pipeline) buildOrder(customerID string, form BillingForm, snapshot cart.Snapshot) commerce.OrderRequest {
	billing := commerce.Address{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Address:   form.Address,
		City:      form.City,
		Zip:       form.Zip,
		Country:   form.Country,
		Phone:     form.Phone,
		Email:     form.Email,
	}
	shipping := billing
	if form.Shipping != nil {
		shipping = *form.Shipping
	}

	items := make([]commerce.OrderItem, 0, len(snapshot.Items))
	for _, line := range snapshot.Items {
		items = append(items, commerce.OrderItem{
			ID:       line.ID,
			Name:     line.Name,
			Type:     line.Type,
			Price:    line.Price,
			Quantity: line.Quantity,
		})
	}

	subtotal := round2(snapshot.Subtotal)
	tax := round2(subtotal * p.taxRate)

	return commerce.OrderRequest{
		CustomerID: customerID,
		Totals: commerce.Totals{
			Subtotal: subtotal,
			Tax:      tax,
			Shipping: 0,
			Total:    round2(subtotal + tax),
		},
		Billing:       billing,
		Shipping:      shipping,
		PaymentMethod: form.PaymentMethod,
		Notes:         form.Notes,
		Items:         items,
	}
}

// finish clears the cart, records the order id for the confirmation view
// and emits the activity event. None of these may fail the submission: the
// order already exists upstream.
func (p *Pipeline) finish(ctx context.Context, store *cart.Store, snapshot cart.Snapshot, form BillingForm, customerID, orderID string) {
	store.ClearCart(ctx)
	if err := store.SetLastOrder(ctx, orderID); err != nil {
		log.Printf("[Checkout] Failed to record last order %s: %v", orderID, err)
	}

	lines := make([]events.OrderLine, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		lines = append(lines, events.OrderLine{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	subtotal := round2(snapshot.Subtotal)
	tax := round2(subtotal * p.taxRate)
	err := p.publisher.Publish(ctx, store.ShopperID(), events.EventOrderSubmitted, events.OrderSubmitted{
		ShopperID:   store.ShopperID(),
		OrderID:     orderID,
		CustomerID:  customerID,
		Email:       strings.TrimSpace(form.Email),
		Items:       lines,
		ItemCount:   snapshot.Count,
		Total:       round2(subtotal + tax),
		SubmittedAt: time.Now(),
	})
	if err != nil {
		log.Printf("[Checkout] Failed to publish order event for %s: %v", orderID, err)
	}
}

func failed(steps []StepResult, err error) Result {
	return Result{
		State: StateFailed,
		Steps: steps,
		Err:   err,
	}
}

// failureMessage picks the first actionable text for the shopper: the
// validation message, then the server's own error text, then a generic
// fallback.
func failureMessage(err error) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}
	var apiErr *commerce.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return genericFailureMessage
}

// Message returns the user-facing failure text for a result, empty on
// success.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return failureMessage(r.Err)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
