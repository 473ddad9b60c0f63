package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/avalora/visuals-api/internal/model"
)

// PurchaseRepo provides data access to the purchases table. Payment
// capture is out of scope, so rows are recorded as pending and surfaced in
// listings and dashboard stats.
type PurchaseRepo struct{ DB *sql.DB }

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{DB: db} }

// Create inserts a purchase row.
func (r *PurchaseRepo) Create(ctx context.Context, p model.Purchase) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO purchases (id, user_id, license_id, amount, status) VALUES (?,?,?,?,?)",
		p.ID, p.UserID, p.LicenseID, p.Amount, p.Status)
	return err
}

// PurchaseRow is a purchase joined with its license key and product name
// for the customer's purchase history.
type PurchaseRow struct {
	ID          string    `json:"id"`
	LicenseID   *string   `json:"license_id,omitempty"`
	LicenseKey  *string   `json:"license_key,omitempty"`
	ProductName *string   `json:"product_name,omitempty"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListByUser returns the user's purchases, newest first.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID string) ([]PurchaseRow, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT pu.id, pu.license_id, l.license_key, p.name, pu.amount, pu.status, pu.created_at
		FROM purchases pu
		LEFT JOIN licenses l ON pu.license_id = l.id
		LEFT JOIN products p ON l.product_id = p.id
		WHERE pu.user_id = ?
		ORDER BY pu.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseRow
	for rows.Next() {
		var row PurchaseRow
		if err := rows.Scan(&row.ID, &row.LicenseID, &row.LicenseKey, &row.ProductName,
			&row.Amount, &row.Status, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Stats returns the completed purchase count and revenue sum for the
// dashboard.
func (r *PurchaseRepo) Stats(ctx context.Context) (count int64, revenue float64, err error) {
	err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(amount),0) FROM purchases WHERE status=?",
		model.PurchaseCompleted).Scan(&count, &revenue)
	return count, revenue, err
}
