package catalog

import (
	"context"
	"fmt"

	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo reads the active catalog from postgres. The catalog is small, so
// every lookup scores the full active list.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Active(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.brand, p.model, p.sku, p.colorway, p.category, p.price_cents,
		       v.id, v.size, v.stock
		FROM products p
		LEFT JOIN product_variants v ON v.product_id = p.id
		WHERE p.active
		ORDER BY p.created_at, p.id, v.size`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		var vID, vSize *string
		var vStock *int
		if err := rows.Scan(&p.ID, &p.Brand, &p.Model, &p.SKU, &p.Colorway, &p.Category, &p.PriceCents,
			&vID, &vSize, &vStock); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != p.ID {
			out = append(out, p)
		}
		if vID != nil {
			last := &out[len(out)-1]
			last.Variants = append(last.Variants, Variant{ID: *vID, Size: orders.Size(*vSize), Stock: *vStock})
		}
	}
	return out, rows.Err()
}

func (r *Repo) Find(ctx context.Context, ref string) (Product, error) {
	all, err := r.Active(ctx)
	if err != nil {
		return Product{}, fmt.Errorf("load catalog: %w", err)
	}
	p, ok := Resolve(all, ref)
	if !ok {
		return Product{}, fmt.Errorf("%w: product %q", orders.ErrResolution, ref)
	}
	return p, nil
}

// ResolveVariant maps a reference and size to a variant whether or not it
// has stock; the ledger decides availability.
func (r *Repo) ResolveVariant(ctx context.Context, ref string, size orders.Size) (orders.ResolvedItem, error) {
	p, err := r.Find(ctx, ref)
	if err != nil {
		return orders.ResolvedItem{}, err
	}
	v, ok := p.Variant(size)
	if !ok {
		return orders.ResolvedItem{}, fmt.Errorf("%w: %s has no size %s", orders.ErrResolution, p.Name(), size)
	}
	return orders.ResolvedItem{
		ProductID:  p.ID,
		VariantID:  v.ID,
		Name:       p.Name(),
		Size:       v.Size,
		PriceCents: p.PriceCents,
		Stock:      v.Stock,
	}, nil
}

func (r *Repo) CheckStock(ctx context.Context, ref string, size orders.Size) (StockCheck, error) {
	p, err := r.Find(ctx, ref)
	if err != nil {
		return StockCheck{}, err
	}
	return Check(p, size), nil
}

func (r *Repo) Search(ctx context.Context, query, category string) ([]Product, error) {
	all, err := r.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return Filter(all, query, category), nil
}
