package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The catalog API returns records whose field names and types drifted over
// time (four spellings of the image list, numeric or string ids, prices with
// currency symbols). Normalize reconciles one such record into a Product.
// It never fails: absent or malformed fields degrade to documented defaults,
// and normalizing an already-normalized Product is a no-op.

// Normalize converts a raw catalog record into its canonical Product form.
// typeHint, when non-empty, overrides type inference from the record itself.
func Normalize(raw map[string]any, typeHint string) Product {
	if raw == nil {
		raw = map[string]any{}
	}

	t := inferType(raw, typeHint)
	id := parseID(raw["id"])
	name := resolveName(raw, t)

	price := parsePrice(raw["price"])

	p := Product{
		ID:          id,
		Type:        t,
		Name:        name,
		Description: resolveDescription(raw, t, name),
		Images:      resolveImages(raw, t),
		Price:       price,
		HasPrice:    !math.IsInf(price, 0) && !math.IsNaN(price) && price > 0,
		Rating:      parseRating(raw["rating"]),
		Reviews:     parseCount(raw["reviews"]),
		Category:    stringField(raw, "category"),
		Featured:    parseFeatured(raw["featured"]),
	}
	p.CartID = string(p.Type) + "-" + p.ID
	return p
}

// NormalizeAll converts a slice of raw records, dropping records whose id
// cannot be resolved to anything non-empty.
func NormalizeAll(raws []map[string]any, typeHint string) []Product {
	products := make([]Product, 0, len(raws))
	for _, raw := range raws {
		p := Normalize(raw, typeHint)
		if p.ID == "" {
			continue
		}
		products = append(products, p)
	}
	return products
}

// matchType maps free-form type/category text onto a known Type.
func matchType(s string) (Type, bool) {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "printer"):
		return TypePrinter, true
	case strings.Contains(s, "laptop"):
		return TypeLaptop, true
	}
	return "", false
}

func inferType(raw map[string]any, typeHint string) Type {
	if t, ok := matchType(typeHint); ok {
		return t
	}
	if t, ok := matchType(stringField(raw, "type")); ok {
		return t
	}
	if t, ok := matchType(stringField(raw, "category")); ok {
		return t
	}
	return TypeLaptop
}

func resolveName(raw map[string]any, t Type) string {
	if name := stringField(raw, "name"); name != "" {
		return name
	}
	brand := stringField(raw, "brand")
	model := stringField(raw, "model", "series")
	if combined := strings.TrimSpace(brand + " " + model); combined != "" {
		return combined
	}
	switch t {
	case TypePrinter:
		return "Printer"
	case TypeLaptop:
		return "Laptop"
	default:
		return "Product"
	}
}

func resolveDescription(raw map[string]any, t Type, name string) string {
	if desc := stringField(raw, "description"); desc != "" {
		return desc
	}
	if t == TypePrinter {
		parts := make([]string, 0, 4)
		for _, key := range []string{"resolution", "copyfeature", "scanfeature", "duplex"} {
			if v := stringField(raw, key); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " | ")
		}
	}
	if t == TypeLaptop {
		if hw := stringField(raw, "processor", "graphics"); hw != "" {
			return hw
		}
	}
	return name
}

// resolveImages collapses the four historical spellings of the image list,
// then the singular image field, into one ordered list. First field with a
// non-empty filtered result wins.
func resolveImages(raw map[string]any, t Type) []string {
	for _, key := range []string{"imageUrls", "image_urls", "images", "imageurls"} {
		if urls := imageList(raw[key]); len(urls) > 0 {
			return urls
		}
	}
	if single := strings.TrimSpace(asString(raw["image"])); single != "" {
		return []string{single}
	}
	return []string{Placeholder(t)}
}

func imageList(v any) []string {
	var candidates []string
	switch list := v.(type) {
	case []string:
		candidates = list
	case []any:
		for _, item := range list {
			candidates = append(candidates, asString(item))
		}
	default:
		return nil
	}

	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			urls = append(urls, c)
		}
	}
	return urls
}

// stringField returns the first key whose value is a non-empty trimmed string.
func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := strings.TrimSpace(asString(raw[key])); s != "" {
			return s
		}
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// parseID derives a stable string id from numeric or string raw ids.
// Anything unresolvable becomes the empty string, which marks the record
// invalid.
func parseID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		if id == math.Trunc(id) && !math.IsInf(id, 0) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case json.Number:
		return id.String()
	}
	return ""
}

// parsePrice coerces a raw price into a non-negative number. String inputs
// are stripped of currency symbols and separators before parsing; anything
// unparseable is 0.
func parsePrice(v any) float64 {
	var price float64
	switch p := v.(type) {
	case float64:
		price = p
	case int:
		price = float64(p)
	case int64:
		price = float64(p)
	case json.Number:
		price, _ = p.Float64()
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, p)
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		price = parsed
	default:
		return 0
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0
	}
	return price
}

func parseRating(v any) float64 {
	switch r := v.(type) {
	case float64:
		if r > 0 && !math.IsInf(r, 0) {
			return r
		}
	case int:
		if r > 0 {
			return float64(r)
		}
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(r), 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultRating
}

func parseCount(v any) int {
	switch n := v.(type) {
	case float64:
		if n > 0 && n == math.Trunc(n) {
			return int(n)
		}
	case int:
		if n > 0 {
			return n
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultReviews
}

// parseFeatured accepts only the exact literal truthy tokens the catalog has
// historically used. Arbitrary truthy values do not count; broadening the
// set would silently mark unintended records as featured.
func parseFeatured(v any) bool {
	switch f := v.(type) {
	case bool:
		return f
	case string:
		switch f {
		case "true", "t", "1":
			return true
		}
	case float64:
		return f == 1
	case int:
		return f == 1
	case json.Number:
		return f.String() == "1"
	}
	return false
}

// CartKey builds the cart uniqueness key for a (type, id) pair without going
// through a full Normalize. Kept in one place so the composite format cannot
// drift.
func CartKey(t Type, id string) string {
	return fmt.Sprintf("%s-%s", t, id)
}
