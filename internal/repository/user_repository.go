package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/avalora/visuals-api/internal/model"
)

// UserRepo provides data access to the users, profiles and user_roles
// tables. Registration touches all three plus email_confirmations, so the
// repo owns that transaction.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// CreateAccount inserts a user, its profile, the default 'user' role row
// and the initial email confirmation token in a single transaction.
// Partial failure rolls everything back so an unconfirmable, role-less
// user can never exist. Returns ErrEmailExists on a duplicate email.
func (r *UserRepo) CreateAccount(ctx context.Context, u model.User, p model.Profile, roleID string, confirm model.EmailConfirmation) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, email_confirmed) VALUES (?,?,?,false)",
		u.ID, u.Email, u.PasswordHash); err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO profiles (id, username, avatar_url) VALUES (?,?,?)",
		p.ID, p.Username, p.AvatarURL); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO user_roles (id, user_id, role) VALUES (?,?,?)",
		roleID, u.ID, model.RoleUser); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO email_confirmations (id, user_id, token, expires_at) VALUES (?,?,?,?)",
		confirm.ID, confirm.UserID, confirm.Token, confirm.ExpiresAt.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,email_confirmed,created_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailConfirmed, &u.CreatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,email_confirmed,created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailConfirmed, &u.CreatedAt)
	return u, err
}

// MarkConfirmed flips email_confirmed for the given user.
func (r *UserRepo) MarkConfirmed(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_confirmed=true WHERE id=?", userID)
	return err
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", passwordHash, userID)
	return err
}

// Roles returns all role names assigned to a user.
func (r *UserRepo) Roles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT role FROM user_roles WHERE user_id=?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// HasRole reports whether a role row exists for the user. This is a fresh
// read on every call – role revocation must take effect on the very next
// request, so nothing here is cached.
func (r *UserRepo) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM user_roles WHERE user_id=? AND role=? LIMIT 1",
		userID, role).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetProfile fetches the profile companion row of a user.
func (r *UserRepo) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	var p model.Profile
	var avatar sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,avatar_url,created_at FROM profiles WHERE id=? LIMIT 1",
		userID).Scan(&p.ID, &p.Username, &avatar, &p.CreatedAt)
	if avatar.Valid {
		p.AvatarURL = avatar.String
	}
	return p, err
}

// AdminUserRow is the flattened shape returned to the admin UI: user
// columns joined with profile fields and the full role set.
type AdminUserRow struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"email_confirmed"`
	Username       string    `json:"username"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	Roles          []string  `json:"roles"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListWithRoles returns every user joined with its profile and the
// aggregated role set, newest first.
func (r *UserRepo) ListWithRoles(ctx context.Context) ([]AdminUserRow, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT u.id, u.email, u.email_confirmed, u.created_at,
		       p.username, p.avatar_url,
		       COALESCE(GROUP_CONCAT(ur.role), '')
		FROM users u
		LEFT JOIN profiles p ON p.id = u.id
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		GROUP BY u.id, u.email, u.email_confirmed, u.created_at, p.username, p.avatar_url
		ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminUserRow
	for rows.Next() {
		var row AdminUserRow
		var username, avatar sql.NullString
		var roleCSV string
		if err := rows.Scan(&row.ID, &row.Email, &row.EmailConfirmed, &row.CreatedAt,
			&username, &avatar, &roleCSV); err != nil {
			return nil, err
		}
		row.Username = username.String
		if avatar.Valid {
			s := avatar.String
			row.AvatarURL = &s
		}
		row.Roles = splitRoles(roleCSV)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Count returns the total number of users, for the admin dashboard.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

func splitRoles(csv string) []string {
	if csv == "" {
		return []string{}
	}
	return strings.Split(csv, ",")
}
