package catalog

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ariefcatur/chat-storefront/internal/orders"
)

type Variant struct {
	ID    string      `json:"id"`
	Size  orders.Size `json:"size"`
	Stock int         `json:"stock"`
}

type Product struct {
	ID         string    `json:"id"`
	Brand      string    `json:"brand"`
	Model      string    `json:"model"`
	SKU        string    `json:"sku"`
	Colorway   string    `json:"colorway,omitempty"`
	Category   string    `json:"category,omitempty"`
	PriceCents int64     `json:"price_cents"`
	Variants   []Variant `json:"variants"`
}

func (p Product) Name() string { return p.Brand + " " + p.Model }

func (p Product) TotalStock() int {
	n := 0
	for _, v := range p.Variants {
		n += v.Stock
	}
	return n
}

// InStockSizes lists sizes with stock, numeric sizes first in ascending order.
func (p Product) InStockSizes() []orders.Size {
	var out []orders.Size
	for _, v := range p.Variants {
		if v.Stock > 0 {
			out = append(out, v.Size)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return sizeLess(out[i], out[j]) })
	return out
}

func sizeLess(a, b orders.Size) bool {
	fa, errA := strconv.ParseFloat(string(a), 64)
	fb, errB := strconv.ParseFloat(string(b), 64)
	switch {
	case errA == nil && errB == nil:
		return fa < fb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// Variant returns the variant of the given size, in stock or not.
func (p Product) Variant(size orders.Size) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Size.Matches(size) {
			return v, true
		}
	}
	return Variant{}, false
}

var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var stopWords = map[string]bool{
	"el": true, "la": true, "los": true, "las": true, "un": true,
	"una": true, "de": true, "del": true, "en": true, "para": true,
}

const (
	scoreExact   = 50
	scorePartial = 20
	scoreInStock = 10
	minScore     = 10
)

// Resolve picks the product a free-text reference most likely names. A UUID
// only matches that exact product id. Otherwise Spanish stop words are
// dropped and products are scored: exact "brand model" or model match 50,
// substring of brand, model, sku or colorway 20, plus 10 when the product has
// stock. Ties keep the first product seen.
func Resolve(products []Product, ref string) (Product, bool) {
	ref = strings.TrimSpace(ref)
	if uuidPattern.MatchString(ref) {
		for _, p := range products {
			if strings.EqualFold(p.ID, ref) {
				return p, true
			}
		}
		return Product{}, false
	}

	term := normalize(ref)
	if len(term) < 2 {
		return Product{}, false
	}

	var best Product
	bestScore := 0
	for _, p := range products {
		brandModel := strings.ToLower(p.Name())
		full := strings.ToLower(brandModel + " " + p.SKU + " " + p.Colorway)

		score := 0
		switch {
		case brandModel == term || strings.ToLower(p.Model) == term:
			score = scoreExact
		case strings.Contains(full, term):
			score = scorePartial
		}
		if score > 0 && p.TotalStock() > 0 {
			score += scoreInStock
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	if bestScore < minScore {
		return Product{}, false
	}
	return best, true
}

func normalize(ref string) string {
	words := strings.Fields(strings.ToLower(ref))
	kept := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

type StockCheck struct {
	Available      bool          `json:"available"`
	ProductID      string        `json:"product_id"`
	ProductName    string        `json:"product_name"`
	Size           orders.Size   `json:"size"`
	Stock          int           `json:"stock,omitempty"`
	VariantID      string        `json:"variant_id,omitempty"`
	AvailableSizes []orders.Size `json:"available_sizes,omitempty"`
}

// Check reports whether size is in stock for p, listing the in-stock sizes
// when it is not.
func Check(p Product, size orders.Size) StockCheck {
	out := StockCheck{ProductID: p.ID, ProductName: p.Name(), Size: size}
	if v, ok := p.Variant(size); ok && v.Stock > 0 {
		out.Available = true
		out.Stock = v.Stock
		out.VariantID = v.ID
		return out
	}
	out.AvailableSizes = p.InStockSizes()
	return out
}

// Filter returns products with stock whose brand, model or sku contains
// query and whose category matches, both case-insensitively. Empty filters
// match everything.
func Filter(products []Product, query, category string) []Product {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []Product
	for _, p := range products {
		if p.TotalStock() == 0 {
			continue
		}
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Brand), query) &&
			!strings.Contains(strings.ToLower(p.Model), query) &&
			!strings.Contains(strings.ToLower(p.SKU), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}
