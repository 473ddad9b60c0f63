package model

import "time"

// Duration categories for license validity.  Lifetime licenses carry a
// NULL expires_at and never expire regardless of clock.
const (
    DurationWeek     = "week"
    DurationMonth    = "month"
    DurationLifetime = "lifetime"
)

// License mirrors the `licenses` table.  The key is globally unique and
// immutable after creation.  OwnerID stays nil until the license is first
// activated; once set it is fixed unless an admin clears it.  ExpiresAt is
// computed once at issuance/activation and never recomputed – expiry is
// evaluated on read, no background job flips is_active.
//
// Fields:
//  ID           – UUID primary key.
//  LicenseKey   – unique key, uppercase alphanumeric groups joined by hyphens.
//  ProductID    – product the license unlocks (nullable).
//  OwnerID      – owning user, nil until first activation.
//  IssuedBy     – admin user id that created the license.
//  IsActive     – administrative kill switch, independent of expiry.
//  DurationType – week | month | lifetime (nullable).
//  Hwid         – advisory hardware fingerprint, empty means unbound.
//  CreatedAt    – timestamp of creation.
//  ActivatedAt  – when ownership was claimed (nullable).
//  ExpiresAt    – expiry instant, nil for lifetime licenses.
type License struct {
    ID           string     // licenses.id
    LicenseKey   string     // licenses.license_key
    ProductID    *string    // licenses.product_id (nullable)
    OwnerID      *string    // licenses.owner_id (nullable)
    IssuedBy     string     // licenses.issued_by
    IsActive     bool       // licenses.is_active
    DurationType *string    // licenses.duration_type (nullable)
    Hwid         string     // licenses.hwid ('' = unbound)
    CreatedAt    time.Time  // licenses.created_at
    ActivatedAt  *time.Time // licenses.activated_at (nullable)
    ExpiresAt    *time.Time // licenses.expires_at (nullable)
}
