package model

import "time"

// Purchase statuses.  Only "completed" purchases count toward revenue in
// the admin dashboard.  Payment capture itself is out of scope: purchases
// are recorded as pending and a payment preview is returned to the client.
const (
    PurchasePending   = "pending"
    PurchaseCompleted = "completed"
)

// Purchase mirrors the `purchases` table.
type Purchase struct {
    ID        string    // purchases.id
    UserID    string    // purchases.user_id
    LicenseID *string   // purchases.license_id (nullable)
    Amount    float64   // purchases.amount
    Status    string    // purchases.status
    CreatedAt time.Time // purchases.created_at
}
