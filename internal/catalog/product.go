package catalog

// Type identifies the product family a record belongs to.
type Type string

const (
	TypeLaptop  Type = "laptop"
	TypePrinter Type = "printer"
)

// Placeholder assets served when a catalog record carries no usable image.
const (
	placeholderLaptop  = "/assets/placeholder-laptop.png"
	placeholderPrinter = "/assets/placeholder-printer.png"
)

const (
	defaultRating  = 4.5
	defaultReviews = 0
)

// Product is the canonical shape every catalog record is reconciled into.
// It is derived, never persisted; the cart snapshots the fields it needs.
type Product struct {
	ID          string   `json:"id"`
	Type        Type     `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	Price       float64  `json:"price"`
	HasPrice    bool     `json:"hasPrice"`
	Rating      float64  `json:"rating"`
	Reviews     int      `json:"reviews"`
	Category    string   `json:"category"`
	Featured    bool     `json:"featured"`
	CartID      string   `json:"cartId"`
}

// Image returns the primary image for the product.
func (p Product) Image() string {
	if len(p.Images) == 0 {
		return Placeholder(p.Type)
	}
	return p.Images[0]
}

// Placeholder returns the fallback image asset for a product type.
func Placeholder(t Type) string {
	if t == TypePrinter {
		return placeholderPrinter
	}
	return placeholderLaptop
}
