// Package queue defines message payloads exchanged over the message broker.
package queue

// UserRegisteredEvent is published after a successful registration. It
// carries enough for downstream consumers to log or trigger analytics
// without querying the primary database.
type UserRegisteredEvent struct {
    UserID       string `json:"user_id"`
    Email        string `json:"email"`
    Username     string `json:"username"`
    RegisteredAt string `json:"registered_at"`
}

// LicenseActivatedEvent is published when a license is first bound to an
// owner, either by activation or by admin issuance with a resolved owner.
type LicenseActivatedEvent struct {
    LicenseID   string `json:"license_id"`
    LicenseKey  string `json:"license_key"`
    OwnerID     string `json:"owner_id"`
    ProductID   string `json:"product_id,omitempty"`
    ActivatedAt string `json:"activated_at"`
    ExpiresAt   string `json:"expires_at,omitempty"`
}
