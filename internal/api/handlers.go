package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/commerce"
	"github.com/example/storefront/internal/events"
)

// Handlers exposes the storefront core to the UI layer.
type Handlers struct {
	catalog   *catalog.Client
	carts     *cart.Manager
	pipeline  *checkout.Pipeline
	publisher events.Publisher
}

func NewHandlers(catalogClient *catalog.Client, carts *cart.Manager, pipeline *checkout.Pipeline, publisher events.Publisher) *Handlers {
	return &Handlers{
		catalog:   catalogClient,
		carts:     carts,
		pipeline:  pipeline,
		publisher: publisher,
	}
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Products(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "catalog is unavailable")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProductsByType(t catalog.Type) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := h.catalog.ProductsByType(r.Context(), t)
		if err != nil {
			respondError(w, http.StatusBadGateway, "catalog is unavailable")
			return
		}
		respondJSON(w, http.StatusOK, products)
	}
}

// Cart Handlers

// cartResponse is the cart snapshot plus the pending "item added" notice.
type cartResponse struct {
	cart.Snapshot
	Notice *cart.AddedNotice `json:"notice,omitempty"`
}

func (h *Handlers) cartPayload(s *cart.Store) cartResponse {
	payload := cartResponse{Snapshot: s.TakeSnapshot()}
	if notice, ok := s.Notice(); ok {
		payload.Notice = &notice
	}
	return payload
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	store := h.shopperCart(r)
	respondJSON(w, http.StatusOK, h.cartPayload(store))
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	// The body is a line item; its quantity field is the amount to add.
	var item cart.LineItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := h.shopperCart(r)
	store.AddToCart(r.Context(), item, item.Quantity)
	respondJSON(w, http.StatusOK, h.cartPayload(store))
}

func (h *Handlers) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/cart/items/")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := h.shopperCart(r)
	store.UpdateQuantity(r.Context(), id, req.Quantity)
	respondJSON(w, http.StatusOK, h.cartPayload(store))
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/cart/items/")

	store := h.shopperCart(r)
	store.RemoveFromCart(r.Context(), id)
	respondJSON(w, http.StatusOK, h.cartPayload(store))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	store := h.shopperCart(r)
	store.ClearCart(r.Context())

	shopperID := middleware.GetShopperID(r.Context())
	if err := h.publisher.Publish(r.Context(), shopperID, events.EventCartCleared, events.CartCleared{
		ShopperID: shopperID,
		ClearedAt: time.Now(),
	}); err != nil {
		log.Printf("[API] Failed to publish cart cleared event: %v", err)
	}

	respondJSON(w, http.StatusOK, h.cartPayload(store))
}

// Checkout Handlers

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var form checkout.BillingForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A signed-in shopper's customer id rides on the session; the form may
	// not carry it.
	if form.CustomerID == "" {
		form.CustomerID = middleware.GetCustomerID(r.Context())
	}

	store := h.shopperCart(r)
	result := h.pipeline.Submit(r.Context(), store, form)
	if result.State != checkout.StateSucceeded {
		respondError(w, checkoutStatus(result.Err), result.Message())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"orderId":    result.OrderID,
		"customerId": result.CustomerID,
	})
}

func (h *Handlers) GetLastOrder(w http.ResponseWriter, r *http.Request) {
	store := h.shopperCart(r)
	orderID, err := store.LastOrder(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load last order")
		return
	}
	if orderID == "" {
		respondError(w, http.StatusNotFound, "no completed order")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"orderId": orderID})
}

// Helper functions

func (h *Handlers) shopperCart(r *http.Request) *cart.Store {
	return h.carts.Store(r.Context(), middleware.GetShopperID(r.Context()))
}

// checkoutStatus maps a pipeline failure onto an HTTP status: shopper
// input problems are 400, upstream API failures are 502.
func checkoutStatus(err error) int {
	var validation *checkout.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest
	}
	var apiErr *commerce.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
