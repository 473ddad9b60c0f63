package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/avalora/visuals-api/internal/model"
)

// ProductRepo provides read access to the products and pricing_tiers
// tables. The catalog is read-mostly; writes happen through migrations or
// operator tooling, not this API.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

// ProductWithTiers bundles a product with its pricing tiers sorted by
// price, the shape both the public catalog and the admin issuance form
// consume.
type ProductWithTiers struct {
	model.Product
	PricingTiers []model.PricingTier `json:"pricing_tiers"`
}

func scanProduct(rows *sql.Rows) (model.Product, error) {
	var p model.Product
	var features []byte
	err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.IsBeta, &features, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	if len(features) > 0 {
		// Feature list lives in a JSON column; a malformed value is treated
		// as empty rather than failing the whole listing.
		_ = json.Unmarshal(features, &p.Features)
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return p, nil
}

// List returns all products with their pricing tiers, beta products last.
func (r *ProductRepo) List(ctx context.Context) ([]ProductWithTiers, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,slug,name,is_beta,features,created_at FROM products ORDER BY is_beta ASC, created_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductWithTiers
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ProductWithTiers{Product: p})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		tiers, err := r.tiersFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].PricingTiers = tiers
	}
	return out, nil
}

// GetBySlug returns a single product with its tiers. sql.ErrNoRows when
// the slug is unknown.
func (r *ProductRepo) GetBySlug(ctx context.Context, slug string) (ProductWithTiers, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,slug,name,is_beta,features,created_at FROM products WHERE slug=? LIMIT 1", slug)
	if err != nil {
		return ProductWithTiers{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return ProductWithTiers{}, err
		}
		return ProductWithTiers{}, sql.ErrNoRows
	}
	p, err := scanProduct(rows)
	if err != nil {
		return ProductWithTiers{}, err
	}
	tiers, err := r.tiersFor(ctx, p.ID)
	if err != nil {
		return ProductWithTiers{}, err
	}
	return ProductWithTiers{Product: p, PricingTiers: tiers}, nil
}

// GetTier fetches a single pricing tier by id.
func (r *ProductRepo) GetTier(ctx context.Context, id string) (model.PricingTier, error) {
	var t model.PricingTier
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,product_id,duration_type,price,duration_days FROM pricing_tiers WHERE id=? LIMIT 1",
		id).Scan(&t.ID, &t.ProductID, &t.DurationType, &t.Price, &t.DurationDays)
	return t, err
}

func (r *ProductRepo) tiersFor(ctx context.Context, productID string) ([]model.PricingTier, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,product_id,duration_type,price,duration_days FROM pricing_tiers WHERE product_id=? ORDER BY price ASC",
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tiers := []model.PricingTier{}
	for rows.Next() {
		var t model.PricingTier
		if err := rows.Scan(&t.ID, &t.ProductID, &t.DurationType, &t.Price, &t.DurationDays); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}
