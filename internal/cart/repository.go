package cart

import "context"

// Repository is the durable store behind a shopper's cart. One record holds
// the cart line items, a second holds the id of the shopper's last completed
// order (used by the confirmation view).
//
// Implementations exist for Redis, PostgreSQL, DynamoDB and memory; all of
// them store the cart as one JSON array per shopper and decode it through
// DecodeItems so malformed stored entries degrade instead of failing.
type Repository interface {
	Load(ctx context.Context, shopperID string) ([]LineItem, error)
	Save(ctx context.Context, shopperID string, items []LineItem) error
	SaveLastOrder(ctx context.Context, shopperID, orderID string) error
	LastOrder(ctx context.Context, shopperID string) (string, error)
}
