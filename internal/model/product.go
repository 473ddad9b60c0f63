package model

import "time"

// Product is a read-mostly catalog entry.  Features is stored as a JSON
// array in the database and decoded by the repository.
type Product struct {
    ID        string    // products.id
    Slug      string    // products.slug (unique)
    Name      string    // products.name
    IsBeta    bool      // products.is_beta
    Features  []string  // products.features (JSON column)
    CreatedAt time.Time // products.created_at
}

// PricingTier attaches a price and validity window to a product.  A
// lifetime tier has DurationDays = 0.
type PricingTier struct {
    ID           string  // pricing_tiers.id
    ProductID    string  // pricing_tiers.product_id
    DurationType string  // pricing_tiers.duration_type (week|month|lifetime)
    Price        float64 // pricing_tiers.price
    DurationDays int     // pricing_tiers.duration_days
}
