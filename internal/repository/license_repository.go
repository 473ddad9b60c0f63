package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/avalora/visuals-api/internal/model"
)

// LicenseRepo provides data access to the licenses table. Activation runs
// as a conditional UPDATE so two concurrent claims of the same unclaimed
// key cannot both win; the loser sees zero rows affected and re-reads.
type LicenseRepo struct{ DB *sql.DB }

func NewLicenseRepo(db *sql.DB) *LicenseRepo { return &LicenseRepo{DB: db} }

const licenseColumns = "id,license_key,product_id,owner_id,issued_by,is_active,duration_type,hwid,created_at,activated_at,expires_at"

// Create inserts a license row. Returns ErrKeyExists when the generated
// key collides with an existing one; callers regenerate and retry.
func (r *LicenseRepo) Create(ctx context.Context, l model.License) error {
	var activatedAt interface{}
	if l.ActivatedAt != nil {
		activatedAt = l.ActivatedAt.UTC()
	}
	var expiresAt interface{}
	if l.ExpiresAt != nil {
		expiresAt = l.ExpiresAt.UTC()
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO licenses (id, license_key, product_id, owner_id, issued_by, is_active, duration_type, hwid, activated_at, expires_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.LicenseKey, l.ProductID, l.OwnerID, l.IssuedBy, l.IsActive, l.DurationType, l.Hwid, activatedAt, expiresAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrKeyExists
		}
		return err
	}
	return nil
}

func scanLicense(row *sql.Row) (model.License, error) {
	var l model.License
	var hwid sql.NullString
	err := row.Scan(&l.ID, &l.LicenseKey, &l.ProductID, &l.OwnerID, &l.IssuedBy,
		&l.IsActive, &l.DurationType, &hwid, &l.CreatedAt, &l.ActivatedAt, &l.ExpiresAt)
	if hwid.Valid {
		l.Hwid = hwid.String
	}
	return l, err
}

// GetByKey fetches a license by its key (exact match).
func (r *LicenseRepo) GetByKey(ctx context.Context, key string) (model.License, error) {
	return scanLicense(r.DB.QueryRowContext(ctx,
		"SELECT "+licenseColumns+" FROM licenses WHERE license_key=? LIMIT 1", key))
}

// GetByID fetches a license by id.
func (r *LicenseRepo) GetByID(ctx context.Context, id string) (model.License, error) {
	return scanLicense(r.DB.QueryRowContext(ctx,
		"SELECT "+licenseColumns+" FROM licenses WHERE id=? LIMIT 1", id))
}

// Claim atomically binds an unclaimed license to a user. The WHERE clause
// only matches while owner_id is NULL, so of two concurrent claims exactly
// one affects a row. Returns false when the license was already owned (or
// deactivated in between); callers re-read to find out which.
func (r *LicenseRepo) Claim(ctx context.Context, id, ownerID string, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE licenses SET owner_id=?, activated_at=? WHERE id=? AND owner_id IS NULL AND is_active=true",
		ownerID, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetHwid overwrites the hardware binding of a license owned by ownerID.
// An empty hwid clears the binding. Returns false when the license does
// not exist or is owned by someone else.
func (r *LicenseRepo) SetHwid(ctx context.Context, id, ownerID, hwid string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE licenses SET hwid=? WHERE id=? AND owner_id=?", hwid, id, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LicensePatch carries the optional fields of an admin partial update.
// nil pointers are left untouched.
type LicensePatch struct {
	IsActive     *bool
	ExpiresAt    **time.Time // outer nil = untouched, inner nil = clear
	Hwid         *string
	ProductID    *string
	DurationType *string
}

// Empty reports whether the patch carries no fields at all.
func (p LicensePatch) Empty() bool {
	return p.IsActive == nil && p.ExpiresAt == nil && p.Hwid == nil &&
		p.ProductID == nil && p.DurationType == nil
}

// UpdateFields performs a sparse UPDATE touching only the provided patch
// fields. Returns false when the id does not resolve to a row.
func (r *LicenseRepo) UpdateFields(ctx context.Context, id string, patch LicensePatch) (bool, error) {
	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	if patch.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *patch.IsActive)
	}
	if patch.ExpiresAt != nil {
		sets = append(sets, "expires_at=?")
		if *patch.ExpiresAt != nil {
			args = append(args, (*patch.ExpiresAt).UTC())
		} else {
			args = append(args, nil)
		}
	}
	if patch.Hwid != nil {
		sets = append(sets, "hwid=?")
		args = append(args, *patch.Hwid)
	}
	if patch.ProductID != nil {
		sets = append(sets, "product_id=?")
		args = append(args, *patch.ProductID)
	}
	if patch.DurationType != nil {
		sets = append(sets, "duration_type=?")
		args = append(args, *patch.DurationType)
	}
	if len(sets) == 0 {
		return false, nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE licenses SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	// RowsAffected is 0 both for a missing row and for a no-op update with
	// identical values, so distinguish with a read.
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM licenses WHERE id=? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetActive flips the administrative kill switch. Unlike Delete this is
// reversible and leaves ownership and expiry untouched.
func (r *LicenseRepo) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE licenses SET is_active=? WHERE id=?", active, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return true, nil
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM licenses WHERE id=? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a license permanently. Returns false when the id does
// not resolve.
func (r *LicenseRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM licenses WHERE id=?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OwnedLicense is a license row joined with its product, as shown on the
// customer dashboard.
type OwnedLicense struct {
	model.License
	ProductName *string `json:"product_name"`
	ProductSlug *string `json:"product_slug"`
}

// ListByOwner returns all licenses owned by a user, newest first, joined
// with product name and slug.
func (r *LicenseRepo) ListByOwner(ctx context.Context, ownerID string) ([]OwnedLicense, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT l.id, l.license_key, l.product_id, l.owner_id, l.issued_by, l.is_active,
		       l.duration_type, l.hwid, l.created_at, l.activated_at, l.expires_at,
		       p.name, p.slug
		FROM licenses l
		LEFT JOIN products p ON l.product_id = p.id
		WHERE l.owner_id = ?
		ORDER BY l.created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOwnedLicenses(rows)
}

func collectOwnedLicenses(rows *sql.Rows) ([]OwnedLicense, error) {
	var out []OwnedLicense
	for rows.Next() {
		var l OwnedLicense
		var hwid sql.NullString
		if err := rows.Scan(&l.ID, &l.LicenseKey, &l.ProductID, &l.OwnerID, &l.IssuedBy,
			&l.IsActive, &l.DurationType, &hwid, &l.CreatedAt, &l.ActivatedAt, &l.ExpiresAt,
			&l.ProductName, &l.ProductSlug); err != nil {
			return nil, err
		}
		if hwid.Valid {
			l.Hwid = hwid.String
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AdminLicenseRow is the flattened shape returned to the admin UI: the
// license joined with its owner's email/username and the product.
type AdminLicenseRow struct {
	model.License
	OwnerEmail    *string `json:"owner_email"`
	OwnerUsername *string `json:"owner_username"`
	ProductName   *string `json:"product_name"`
	ProductSlug   *string `json:"product_slug"`
	ProductIsBeta *bool   `json:"product_is_beta"`
}

// ListAll returns every license with owner and product context, newest
// first, for the admin UI.
func (r *LicenseRepo) ListAll(ctx context.Context) ([]AdminLicenseRow, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT l.id, l.license_key, l.product_id, l.owner_id, l.issued_by, l.is_active,
		       l.duration_type, l.hwid, l.created_at, l.activated_at, l.expires_at,
		       u.email, pr.username, p.name, p.slug, p.is_beta
		FROM licenses l
		LEFT JOIN users u ON l.owner_id = u.id
		LEFT JOIN profiles pr ON l.owner_id = pr.id
		LEFT JOIN products p ON l.product_id = p.id
		ORDER BY l.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminLicenseRow
	for rows.Next() {
		var l AdminLicenseRow
		var hwid sql.NullString
		if err := rows.Scan(&l.ID, &l.LicenseKey, &l.ProductID, &l.OwnerID, &l.IssuedBy,
			&l.IsActive, &l.DurationType, &hwid, &l.CreatedAt, &l.ActivatedAt, &l.ExpiresAt,
			&l.OwnerEmail, &l.OwnerUsername, &l.ProductName, &l.ProductSlug, &l.ProductIsBeta); err != nil {
			return nil, err
		}
		if hwid.Valid {
			l.Hwid = hwid.String
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Counts returns the total and active license counts for the dashboard.
func (r *LicenseRepo) Counts(ctx context.Context) (total, active int64, err error) {
	err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END),0) FROM licenses").
		Scan(&total, &active)
	return total, active, err
}
