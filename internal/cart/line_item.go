package cart

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// LineItem is one row of a shopper's cart. Name, image, type and category
// are snapshots taken at add-time; they are never re-fetched from the
// catalog.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Image    string  `json:"image"`
	Type     string  `json:"type"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// storedLineItem mirrors LineItem but leaves price and quantity loosely
// typed. Carts written by older storefront builds carry strings in those
// fields; a reload must coerce them, not crash.
type storedLineItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Price    any    `json:"price"`
	Quantity any    `json:"quantity"`
}

// EncodeItems serializes a cart to its durable JSON form.
func EncodeItems(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

// DecodeItems deserializes a durable cart, coercing malformed entries to
// safe defaults. Entries that are not objects, or that carry no id, are
// dropped; a payload that is not a JSON array at all yields an empty cart.
func DecodeItems(data []byte) []LineItem {
	if len(data) == 0 {
		return nil
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil
	}

	items := make([]LineItem, 0, len(rawItems))
	for _, raw := range rawItems {
		var stored storedLineItem
		if err := json.Unmarshal(raw, &stored); err != nil {
			continue
		}
		if strings.TrimSpace(stored.ID) == "" {
			continue
		}
		items = append(items, LineItem{
			ID:       stored.ID,
			Name:     stored.Name,
			Image:    stored.Image,
			Type:     stored.Type,
			Category: stored.Category,
			Price:    coercePrice(stored.Price),
			Quantity: coerceQuantity(stored.Quantity),
		})
	}
	return items
}

// coercePrice maps any stored price value onto a finite non-negative number.
func coercePrice(v any) float64 {
	switch p := v.(type) {
	case float64:
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return 0
		}
		return p
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed < 0 {
			return 0
		}
		return parsed
	case json.Number:
		parsed, err := p.Float64()
		if err != nil || parsed < 0 {
			return 0
		}
		return parsed
	}
	return 0
}

// coerceQuantity maps any stored quantity value onto an integer >= 1.
func coerceQuantity(v any) int {
	switch q := v.(type) {
	case float64:
		if q >= 1 && !math.IsInf(q, 0) {
			return int(q)
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(q)); err == nil && parsed >= 1 {
			return parsed
		}
	case json.Number:
		if parsed, err := q.Int64(); err == nil && parsed >= 1 {
			return int(parsed)
		}
	}
	return 1
}
