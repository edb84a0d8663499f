package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client consumes the customer and order endpoints of the commerce API.
// The storefront treats that API as a black box: it resolves customers by
// email, registers guests, best-effort syncs addresses and submits orders.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewClientWithHTTP creates a client with a caller-supplied http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Customer is a customer record as the commerce API returns it.
type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

// NewCustomer is the payload for registering a customer.
type NewCustomer struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// CustomerUpdate carries the address and phone fields synced during
// checkout.
type CustomerUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
}

// Address is the billing or shipping block of an order.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// OrderItem is one cart line as submitted to the order endpoint.
type OrderItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Totals is the computed money block of an order.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// OrderRequest is the POST /orders payload.
type OrderRequest struct {
	CustomerID    string      `json:"customerId"`
	Totals        Totals      `json:"totals"`
	Billing       Address     `json:"billing"`
	Shipping      Address     `json:"shipping"`
	PaymentMethod string      `json:"paymentMethod"`
	Notes         string      `json:"notes"`
	Items         []OrderItem `json:"items"`
}

// APIError is a non-2xx response from the commerce API. Message carries the
// server's own error text when the body had one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("commerce API returned %d", e.Status)
}

// FindCustomerByEmail looks up an existing customer. The match is
// case-insensitive; a nil customer without error means no match.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	endpoint := c.baseURL + "/users?email=" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var customers []Customer
	if err := c.do(req, &customers); err != nil {
		return nil, err
	}

	// Guard against servers that match loosely: only accept an exact
	// case-insensitive email match.
	for i := range customers {
		if strings.EqualFold(customers[i].Email, email) {
			return &customers[i], nil
		}
	}
	return nil, nil
}

// CreateCustomer registers a new customer record.
func (c *Client) CreateCustomer(ctx context.Context, nc NewCustomer) (*Customer, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost, "/users", nc)
	if err != nil {
		return nil, err
	}

	var created Customer
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCustomer writes address and phone fields onto an existing customer.
func (c *Client) UpdateCustomer(ctx context.Context, id string, upd CustomerUpdate) error {
	req, err := c.jsonRequest(ctx, http.MethodPut, "/users/"+url.PathEscape(id), upd)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// CreateOrder submits an order and returns the new order id.
func (c *Client) CreateOrder(ctx context.Context, order OrderRequest) (string, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost, "/orders", order)
	if err != nil {
		return "", err
	}

	// The API has returned both numeric and string order ids over time.
	var resp struct {
		Order struct {
			ID any `json:"id"`
		} `json:"order"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}

	orderID := idString(resp.Order.ID)
	if orderID == "" {
		return "", fmt.Errorf("order response carried no id")
	}
	return orderID, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatInt(int64(id), 10)
	}
	return ""
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce API unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorText(body)}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding commerce API response: %w", err)
	}
	return nil
}

// errorText pulls the server's error message out of a failure body.
func errorText(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
