package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/avalora/visuals-api/internal/mailer"
	"github.com/avalora/visuals-api/internal/middleware"
	"github.com/avalora/visuals-api/internal/model"
	"github.com/avalora/visuals-api/internal/service"
)

// stubUserStore serves a single fixed user; only the lookups exercised by
// the handlers under test are meaningful.
type stubUserStore struct {
	u     model.User
	roles []string
}

func (s *stubUserStore) CreateAccount(context.Context, model.User, model.Profile, string, model.EmailConfirmation) error {
	return nil
}
func (s *stubUserStore) GetByEmail(context.Context, string) (model.User, error) {
	return model.User{}, sql.ErrNoRows
}
func (s *stubUserStore) GetByID(_ context.Context, id string) (model.User, error) {
	if id != s.u.ID {
		return model.User{}, sql.ErrNoRows
	}
	return s.u, nil
}
func (s *stubUserStore) MarkConfirmed(context.Context, string) error        { return nil }
func (s *stubUserStore) UpdatePassword(context.Context, string, string) error { return nil }
func (s *stubUserStore) Roles(context.Context, string) ([]string, error)    { return s.roles, nil }

type stubTokenStore struct{}

func (stubTokenStore) ReplaceConfirmation(context.Context, model.EmailConfirmation) error { return nil }
func (stubTokenStore) GetConfirmation(context.Context, string) (model.EmailConfirmation, error) {
	return model.EmailConfirmation{}, sql.ErrNoRows
}
func (stubTokenStore) DeleteConfirmation(context.Context, string) error        { return nil }
func (stubTokenStore) ReplaceReset(context.Context, model.PasswordReset) error { return nil }
func (stubTokenStore) GetReset(context.Context, string) (model.PasswordReset, error) {
	return model.PasswordReset{}, sql.ErrNoRows
}
func (stubTokenStore) MarkResetUsed(context.Context, string) error { return nil }

// Me must rely on the identity the auth middleware stored in the context;
// the request here deliberately carries no Authorization header at all.
func TestMeUsesContextIdentity(t *testing.T) {
	users := &stubUserStore{
		u:     model.User{ID: "user-1", Email: "jordan@example.com", EmailConfirmed: true},
		roles: []string{model.RoleUser},
	}
	svc := service.NewAccountService(users, stubTokenStore{}, mailer.LogMailer{}, service.AccountConfig{
		JWTSecret:      "secret",
		SessionTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
		FrontendOrigin: "https://app.example.com",
	})
	h := NewAuthHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.CtxUserID, "user-1")
	c.Set(middleware.CtxUserEmail, "jordan@example.com")

	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jordan@example.com")
	assert.Contains(t, rec.Body.String(), model.RoleUser)

	// Without the middleware-provided identity the handler refuses.
	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), rec)
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
