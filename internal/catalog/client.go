package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrUnavailable = errors.New("catalog unavailable")

// Client consumes the commerce catalog API and returns normalized products.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewClientWithHTTP creates a client with a caller-supplied http.Client.
// Useful for tests.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Products fetches the full catalog.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	return c.fetch(ctx, "/products", "")
}

// ProductsByType fetches the type-scoped catalog listing. The type is also
// passed down as a normalization hint so records with missing type fields
// land in the right family.
func (c *Client) ProductsByType(ctx context.Context, t Type) ([]Product, error) {
	return c.fetch(ctx, fmt.Sprintf("/products?type=%s", t), string(t))
}

func (c *Client) fetch(ctx context.Context, path, typeHint string) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: catalog returned %d", ErrUnavailable, resp.StatusCode)
	}

	var raws []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, fmt.Errorf("%w: decoding catalog response: %v", ErrUnavailable, err)
	}

	return NormalizeAll(raws, typeHint), nil
}
