package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avalora/visuals-api/internal/mailer"
	"github.com/avalora/visuals-api/internal/model"
	"github.com/avalora/visuals-api/internal/repository"
	"github.com/avalora/visuals-api/internal/utils"
)

// Token lifetimes. Confirmation links are long-lived enough to survive a
// greylisting delay; reset links are short because they grant a password
// change to whoever holds them.
const (
	confirmationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

// UserStore is the slice of the user repository the account service needs.
type UserStore interface {
	CreateAccount(ctx context.Context, u model.User, p model.Profile, roleID string, confirm model.EmailConfirmation) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	MarkConfirmed(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	Roles(ctx context.Context, userID string) ([]string, error)
}

// TokenStore is the slice of the token repository the account service needs.
type TokenStore interface {
	ReplaceConfirmation(ctx context.Context, t model.EmailConfirmation) error
	GetConfirmation(ctx context.Context, token string) (model.EmailConfirmation, error)
	DeleteConfirmation(ctx context.Context, id string) error
	ReplaceReset(ctx context.Context, t model.PasswordReset) error
	GetReset(ctx context.Context, token string) (model.PasswordReset, error)
	MarkResetUsed(ctx context.Context, id string) error
}

// AccountConfig carries the account service knobs from the environment.
type AccountConfig struct {
	JWTSecret      string
	SessionTTLDays int
	BcryptCost     int
	FrontendOrigin string
}

// AccountService orchestrates registration, email confirmation, login,
// password reset/change and bearer authentication.
type AccountService struct {
	users  UserStore
	tokens TokenStore
	mail   mailer.Mailer
	cfg    AccountConfig
	now    func() time.Time
}

func NewAccountService(users UserStore, tokens TokenStore, mail mailer.Mailer, cfg AccountConfig) *AccountService {
	return &AccountService{
		users:  users,
		tokens: tokens,
		mail:   mail,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail lower-cases and trims an address; emails are compared
// case-insensitively everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the user, profile, default role and initial
// confirmation token in one atomic unit, then dispatches the confirmation
// email. A mail failure is logged but does not fail registration – the
// user can request a resend. No session token is issued: login is gated
// on confirmation.
func (s *AccountService) Register(ctx context.Context, email, password, username string) (model.User, error) {
	email = NormalizeEmail(email)
	if username == "" {
		// Default display name is the local part of the address.
		if at := strings.IndexByte(email, '@'); at > 0 {
			username = email[:at]
		} else {
			username = email
		}
	}

	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	token, err := utils.NewOpaqueToken()
	if err != nil {
		return model.User{}, err
	}

	u := model.User{ID: uuid.NewString(), Email: email, PasswordHash: hash}
	p := model.Profile{ID: u.ID, Username: username}
	confirm := model.EmailConfirmation{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: s.now().Add(confirmationTTL),
	}

	if err := s.users.CreateAccount(ctx, u, p, uuid.NewString(), confirm); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, storeErr(err)
	}

	if err := s.mail.Send(ctx, email, mailer.KindConfirmation, mailer.Params{
		Username: username,
		Link:     s.confirmLink(token),
	}); err != nil {
		log.Printf("account: confirmation mail to %s failed: %v", email, err)
	}
	return u, nil
}

// ConfirmEmail consumes a confirmation token, marks the user confirmed and
// returns the user together with a fresh session token (auto-login).
func (s *AccountService) ConfirmEmail(ctx context.Context, token string) (model.User, utils.SessionToken, error) {
	t, err := s.tokens.GetConfirmation(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, utils.SessionToken{}, ErrInvalidOrExpiredToken
		}
		return model.User{}, utils.SessionToken{}, storeErr(err)
	}
	if !t.ExpiresAt.After(s.now()) {
		return model.User{}, utils.SessionToken{}, ErrInvalidOrExpiredToken
	}

	if err := s.users.MarkConfirmed(ctx, t.UserID); err != nil {
		return model.User{}, utils.SessionToken{}, storeErr(err)
	}
	if err := s.tokens.DeleteConfirmation(ctx, t.ID); err != nil {
		return model.User{}, utils.SessionToken{}, storeErr(err)
	}

	u, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		return model.User{}, utils.SessionToken{}, storeErr(err)
	}
	u.EmailConfirmed = true
	session, err := utils.NewSessionToken(s.cfg.JWTSecret, u.ID, s.cfg.SessionTTLDays)
	if err != nil {
		return model.User{}, utils.SessionToken{}, err
	}
	return u, session, nil
}

// ResendConfirmation replaces the user's confirmation token with a fresh
// one and mails it. Unlike registration, a mail failure here is surfaced:
// sending the mail is the whole point of the request.
func (s *AccountService) ResendConfirmation(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return storeErr(err)
	}
	if u.EmailConfirmed {
		return ErrAlreadyConfirmed
	}

	token, err := utils.NewOpaqueToken()
	if err != nil {
		return err
	}
	confirm := model.EmailConfirmation{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: s.now().Add(confirmationTTL),
	}
	if err := s.tokens.ReplaceConfirmation(ctx, confirm); err != nil {
		return storeErr(err)
	}

	username := usernameFallback(u.Email)
	if err := s.mail.Send(ctx, u.Email, mailer.KindConfirmation, mailer.Params{
		Username: username,
		Link:     s.confirmLink(token),
	}); err != nil {
		return ErrUnavailable
	}
	return nil
}

// Login verifies credentials and returns the user, its role set and a
// session token. Unknown email and wrong password yield the identical
// error; an unconfirmed account with correct credentials is reported
// distinctly so the client can offer the resend flow.
func (s *AccountService) Login(ctx context.Context, email, password string) (model.User, []string, utils.SessionToken, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, nil, utils.SessionToken{}, ErrInvalidCredentials
		}
		return model.User{}, nil, utils.SessionToken{}, storeErr(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, nil, utils.SessionToken{}, ErrInvalidCredentials
	}
	if !u.EmailConfirmed {
		return model.User{}, nil, utils.SessionToken{}, ErrEmailNotConfirmed
	}

	roles, err := s.users.Roles(ctx, u.ID)
	if err != nil {
		return model.User{}, nil, utils.SessionToken{}, storeErr(err)
	}
	session, err := utils.NewSessionToken(s.cfg.JWTSecret, u.ID, s.cfg.SessionTTLDays)
	if err != nil {
		return model.User{}, nil, utils.SessionToken{}, err
	}
	return u, roles, session, nil
}

// ForgotPassword issues a reset token and mails it when the account
// exists. The caller always gets the same answer either way, so the
// endpoint cannot be used to enumerate accounts. A mail failure for an
// existing account is surfaced as a transient fault.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // generic success, no account disclosure
		}
		return storeErr(err)
	}

	token, err := utils.NewOpaqueToken()
	if err != nil {
		return err
	}
	reset := model.PasswordReset{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: s.now().Add(resetTTL),
	}
	if err := s.tokens.ReplaceReset(ctx, reset); err != nil {
		return storeErr(err)
	}

	if err := s.mail.Send(ctx, u.Email, mailer.KindPasswordReset, mailer.Params{
		Username: usernameFallback(u.Email),
		Link:     s.resetLink(token),
	}); err != nil {
		return ErrUnavailable
	}
	return nil
}

// ResetPassword spends a reset token: the new hash is stored, the token is
// marked used (kept, so a replay fails) and a session token is returned.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) (model.User, utils.SessionToken, error) {
	t, err := s.tokens.GetReset(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, utils.SessionToken{}, ErrInvalidOrExpiredToken
		}
		return model.User{}, utils.SessionToken{}, storeErr(err)
	}
	if t.Used || !t.ExpiresAt.After(s.now()) {
		return model.User{}, utils.SessionToken{}, ErrInvalidOrExpiredToken
	}

	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, utils.SessionToken{}, err
	}
	if err := s.users.UpdatePassword(ctx, t.UserID, hash); err != nil {
		return model.User{}, utils.SessionToken{}, storeErr(err)
	}
	if err := s.tokens.MarkResetUsed(ctx, t.ID); err != nil {
		return model.User{}, utils.SessionToken{}, storeErr(err)
	}

	u, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		return model.User{}, utils.SessionToken{}, storeErr(err)
	}
	session, err := utils.NewSessionToken(s.cfg.JWTSecret, u.ID, s.cfg.SessionTTLDays)
	if err != nil {
		return model.User{}, utils.SessionToken{}, err
	}
	return u, session, nil
}

// ChangePassword verifies the current password before storing the new
// hash. No token rotation happens; existing sessions stay valid.
func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return storeErr(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, currentPassword) {
		return ErrInvalidCredentials
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return storeErr(s.users.UpdatePassword(ctx, u.ID, hash))
}

// Authenticate resolves a raw bearer token to a user. Signature and expiry
// failures report ErrUnauthenticated; a valid token whose subject no
// longer exists reports ErrUserNotFound. The user row is loaded fresh on
// every call.
func (s *AccountService) Authenticate(ctx context.Context, bearer string) (model.User, error) {
	if bearer == "" {
		return model.User{}, ErrUnauthenticated
	}
	sub, err := utils.ParseSessionToken(s.cfg.JWTSecret, bearer)
	if err != nil {
		return model.User{}, ErrUnauthenticated
	}
	u, err := s.users.GetByID(ctx, sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, storeErr(err)
	}
	return u, nil
}

// User loads the account row for an already-authenticated user id.
// Callers sitting behind the auth middleware use this instead of
// Authenticate so the token is not verified a second time.
func (s *AccountService) User(ctx context.Context, userID string) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, storeErr(err)
	}
	return u, nil
}

// Roles re-reads the role set of a user.
func (s *AccountService) Roles(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.users.Roles(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return roles, nil
}

func (s *AccountService) confirmLink(token string) string {
	return s.cfg.FrontendOrigin + "/confirm-email?token=" + token
}

func (s *AccountService) resetLink(token string) string {
	return s.cfg.FrontendOrigin + "/reset-password?token=" + token
}

func usernameFallback(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

// storeErr maps a timed-out or cancelled store call to the transient
// Unavailable error so callers fail fast instead of surfacing driver
// internals.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUnavailable
	}
	return err
}
