package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/avalora/visuals-api/internal/mailer"
	"github.com/avalora/visuals-api/internal/model"
	"github.com/avalora/visuals-api/internal/repository"
	"github.com/avalora/visuals-api/internal/utils"
)

// memStore is an in-memory stand-in for the user and token repositories.
// It mimics their contract exactly: sql.ErrNoRows on misses, duplicate
// email detection, tokens replaced wholesale per user.
type memStore struct {
	mu       sync.Mutex
	users    map[string]model.User // by id
	byEmail  map[string]string     // email -> id
	profiles map[string]model.Profile
	roles    map[string][]string
	confirms map[string]model.EmailConfirmation // by token
	resets   map[string]model.PasswordReset     // by token
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]model.User{},
		byEmail:  map[string]string{},
		profiles: map[string]model.Profile{},
		roles:    map[string][]string{},
		confirms: map[string]model.EmailConfirmation{},
		resets:   map[string]model.PasswordReset{},
	}
}

func (m *memStore) CreateAccount(_ context.Context, u model.User, p model.Profile, _ string, confirm model.EmailConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[u.Email]; exists {
		return repository.ErrEmailExists
	}
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	m.profiles[p.ID] = p
	m.roles[u.ID] = []string{model.RoleUser}
	m.confirms[confirm.Token] = confirm
	return nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return m.users[id], nil
}

func (m *memStore) GetByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memStore) MarkConfirmed(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.EmailConfirmed = true
	m.users[userID] = u
	return nil
}

func (m *memStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.PasswordHash = passwordHash
	m.users[userID] = u
	return nil
}

func (m *memStore) Roles(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.roles[userID]...), nil
}

func (m *memStore) ReplaceConfirmation(_ context.Context, t model.EmailConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, c := range m.confirms {
		if c.UserID == t.UserID {
			delete(m.confirms, tok)
		}
	}
	m.confirms[t.Token] = t
	return nil
}

func (m *memStore) GetConfirmation(_ context.Context, token string) (model.EmailConfirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.confirms[token]
	if !ok {
		return model.EmailConfirmation{}, sql.ErrNoRows
	}
	return c, nil
}

func (m *memStore) DeleteConfirmation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, c := range m.confirms {
		if c.ID == id {
			delete(m.confirms, tok)
		}
	}
	return nil
}

func (m *memStore) ReplaceReset(_ context.Context, t model.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, r := range m.resets {
		if r.UserID == t.UserID {
			delete(m.resets, tok)
		}
	}
	m.resets[t.Token] = t
	return nil
}

func (m *memStore) GetReset(_ context.Context, token string) (model.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resets[token]
	if !ok {
		return model.PasswordReset{}, sql.ErrNoRows
	}
	return r, nil
}

func (m *memStore) MarkResetUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, r := range m.resets {
		if r.ID == id {
			r.Used = true
			m.resets[tok] = r
		}
	}
	return nil
}

// capMailer records every send and optionally fails.
type capMailer struct {
	mu    sync.Mutex
	sends []capturedMail
	fail  error
}

type capturedMail struct {
	To   string
	Kind mailer.Kind
	P    mailer.Params
}

func (m *capMailer) Send(_ context.Context, to string, kind mailer.Kind, p mailer.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sends = append(m.sends, capturedMail{To: to, Kind: kind, P: p})
	return nil
}

func (m *capMailer) last(t *testing.T) capturedMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sends)
	return m.sends[len(m.sends)-1]
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	i := strings.Index(link, "token=")
	require.GreaterOrEqual(t, i, 0, "link carries no token: %s", link)
	return link[i+len("token="):]
}

func newTestAccount(t *testing.T) (*AccountService, *memStore, *capMailer) {
	t.Helper()
	store := newMemStore()
	mail := &capMailer{}
	svc := NewAccountService(store, store, mail, AccountConfig{
		JWTSecret:      "test-secret",
		SessionTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
		FrontendOrigin: "https://app.example.com",
	})
	return svc, store, mail
}

func TestRegisterCreatesPendingAccount(t *testing.T) {
	svc, store, mail := newTestAccount(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Jordan@Example.COM", "hunter22", "")
	require.NoError(t, err)

	assert.Equal(t, "jordan@example.com", u.Email, "email is normalized")
	assert.NotEqual(t, "hunter22", u.PasswordHash)
	assert.False(t, u.EmailConfirmed)

	// Default username is the local part of the address.
	assert.Equal(t, "jordan", store.profiles[u.ID].Username)
	assert.Equal(t, []string{model.RoleUser}, store.roles[u.ID])

	sent := mail.last(t)
	assert.Equal(t, "jordan@example.com", sent.To)
	assert.Equal(t, mailer.KindConfirmation, sent.Kind)
	assert.Contains(t, sent.P.Link, "https://app.example.com/confirm-email?token=")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAccount(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "jordan@example.com", "hunter22", "")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "JORDAN@example.com", "other-password", "")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	svc, store, mail := newTestAccount(t)
	mail.fail = errors.New("relay down")

	u, err := svc.Register(context.Background(), "jordan@example.com", "hunter22", "")
	require.NoError(t, err, "a broken relay must not lose the registration")
	_, ok := store.users[u.ID]
	assert.True(t, ok)
}

func TestConfirmEmailHappyPathAndReplay(t *testing.T) {
	svc, store, mail := newTestAccount(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "jordan@example.com", "hunter22", "")
	require.NoError(t, err)
	token := tokenFromLink(t, mail.last(t).P.Link)

	u, session, err := svc.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, u.EmailConfirmed)
	assert.True(t, store.users[reg.ID].EmailConfirmed)

	// Auto-login: the session resolves back to the user.
	sub, err := utils.ParseSessionToken("test-secret", session.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, sub)

	// The token is consumed; a replay fails.
	_, _, err = svc.ConfirmEmail(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestConfirmEmailExpiredToken(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "jordan@example.com", "hunter22", "")
	require.NoError(t, err)
	token := tokenFromLink(t, mail.last(t).P.Link)

	svc.now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }
	_, _, err = svc.ConfirmEmail(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResendConfirmationReplacesToken(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "jordan@example.com", "hunter22", "")
	require.NoError(t, err)
	oldToken := tokenFromLink(t, mail.last(t).P.Link)

	require.NoError(t, svc.ResendConfirmation(ctx, "jordan@example.com"))
	newToken := tokenFromLink(t, mail.last(t).P.Link)
	require.NotEqual(t, oldToken, newToken)

	// Only the latest token works.
	_, _, err = svc.ConfirmEmail(ctx, oldToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, _, err = svc.ConfirmEmail(ctx, newToken)
	assert.NoError(t, err)
}

func TestResendConfirmationEdgeCases(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.ResendConfirmation(ctx, "nobody@example.com"), ErrNotFound)

	_, err := svc.Register(ctx, "jordan@example.com", "hunter22", "")
	require.NoError(t, err)
	token := tokenFromLink(t, mail.last(t).P.Link)
	_, _, err = svc.ConfirmEmail(ctx, token)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ResendConfirmation(ctx, "jordan@example.com"), ErrAlreadyConfirmed)
}

func TestResendConfirmationMailFailure(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "jordan@example.com", "hunter22", "")
	require.NoError(t, err)

	mail.fail = errors.New("relay down")
	assert.ErrorIs(t, svc.ResendConfirmation(ctx, "jordan@example.com"), ErrUnavailable)
}

func confirmUser(t *testing.T, svc *AccountService, mail *capMailer, email, password string) model.User {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Register(ctx, email, password, "")
	require.NoError(t, err)
	token := tokenFromLink(t, mail.last(t).P.Link)
	u, _, err := svc.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	return u
}

func TestLoginFlows(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()

	// Unconfirmed account with correct credentials is reported distinctly.
	_, err := svc.Register(ctx, "pending@example.com", "hunter22", "")
	require.NoError(t, err)
	_, _, _, err = svc.Login(ctx, "pending@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)

	u := confirmUser(t, svc, mail, "jordan@example.com", "hunter22")

	got, roles, session, err := svc.Login(ctx, "JORDAN@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, []string{model.RoleUser}, roles)

	sub, err := utils.ParseSessionToken("test-secret", session.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, sub)
}

func TestLoginUniformFailure(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()
	confirmUser(t, svc, mail, "jordan@example.com", "hunter22")

	// Unknown email and wrong password are indistinguishable.
	_, _, _, errUnknown := svc.Login(ctx, "nobody@example.com", "hunter22")
	_, _, _, errWrongPw := svc.Login(ctx, "jordan@example.com", "wrong")
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrongPw, ErrInvalidCredentials)
}

func TestForgotPasswordDoesNotDiscloseAccounts(t *testing.T) {
	svc, store, mail := newTestAccount(t)
	ctx := context.Background()
	confirmUser(t, svc, mail, "jordan@example.com", "hunter22")

	assert.NoError(t, svc.ForgotPassword(ctx, "nobody@example.com"))
	assert.Empty(t, store.resets)

	require.NoError(t, svc.ForgotPassword(ctx, "jordan@example.com"))
	sent := mail.last(t)
	assert.Equal(t, mailer.KindPasswordReset, sent.Kind)
	assert.Contains(t, sent.P.Link, "/reset-password?token=")
}

func TestResetPasswordSpendsToken(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()
	u := confirmUser(t, svc, mail, "jordan@example.com", "hunter22")

	require.NoError(t, svc.ForgotPassword(ctx, "jordan@example.com"))
	token := tokenFromLink(t, mail.last(t).P.Link)

	got, session, err := svc.ResetPassword(ctx, token, "new-password")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotEmpty(t, session.Token)

	// Old password dead, new one works.
	_, _, _, err = svc.Login(ctx, "jordan@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = svc.Login(ctx, "jordan@example.com", "new-password")
	assert.NoError(t, err)

	// The token is single-use: a replay fails even within its TTL.
	_, _, err = svc.ResetPassword(ctx, token, "another-password")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()
	confirmUser(t, svc, mail, "jordan@example.com", "hunter22")

	require.NoError(t, svc.ForgotPassword(ctx, "jordan@example.com"))
	token := tokenFromLink(t, mail.last(t).P.Link)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, _, err := svc.ResetPassword(ctx, token, "new-password")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestChangePassword(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()
	u := confirmUser(t, svc, mail, "jordan@example.com", "hunter22")

	err := svc.ChangePassword(ctx, u.ID, "wrong", "new-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, "missing-user", "hunter22", "new-password")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "hunter22", "new-password"))
	_, _, _, err = svc.Login(ctx, "jordan@example.com", "new-password")
	assert.NoError(t, err)
}

func TestUserLookup(t *testing.T) {
	svc, _, mail := newTestAccount(t)
	ctx := context.Background()
	u := confirmUser(t, svc, mail, "jordan@example.com", "hunter22")

	got, err := svc.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.EmailConfirmed)

	_, err = svc.User(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthenticate(t *testing.T) {
	svc, store, mail := newTestAccount(t)
	ctx := context.Background()
	u := confirmUser(t, svc, mail, "jordan@example.com", "hunter22")

	_, _, session, err := svc.Login(ctx, "jordan@example.com", "hunter22")
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// A valid token whose subject was deleted is rejected on lookup.
	delete(store.users, u.ID)
	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
