package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalora/visuals-api/internal/model"
	"github.com/avalora/visuals-api/internal/utils"
)

type fakeUsers struct {
	byID  map[string]model.User
	roles map[string]map[string]bool
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUsers) HasRole(_ context.Context, userID, role string) (bool, error) {
	return f.roles[userID][role], nil
}

func doRequest(t *testing.T, mw []echo.MiddlewareFunc, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h := func(c echo.Context) error {
		return c.String(http.StatusOK, "reached")
	}
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h(c))
	return rec
}

func TestRequireAuthenticated(t *testing.T) {
	users := &fakeUsers{byID: map[string]model.User{
		"user-1": {ID: "user-1", Email: "jordan@example.com"},
	}}
	mw := []echo.MiddlewareFunc{RequireAuthenticated("secret", users)}

	t.Run("missing header", func(t *testing.T) {
		rec := doRequest(t, mw, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := doRequest(t, mw, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		st, err := utils.NewSessionToken("other-secret", "user-1", 7)
		require.NoError(t, err)
		rec := doRequest(t, mw, st.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token, deleted user", func(t *testing.T) {
		st, err := utils.NewSessionToken("secret", "gone", 7)
		require.NoError(t, err)
		rec := doRequest(t, mw, st.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		st, err := utils.NewSessionToken("secret", "user-1", 7)
		require.NoError(t, err)
		rec := doRequest(t, mw, st.Token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "reached", rec.Body.String())
	})
}

func TestRequireAdminReadsRoleFresh(t *testing.T) {
	users := &fakeUsers{
		byID: map[string]model.User{
			"admin-1": {ID: "admin-1", Email: "admin@example.com"},
		},
		roles: map[string]map[string]bool{
			"admin-1": {model.RoleAdmin: true},
		},
	}
	mw := []echo.MiddlewareFunc{
		RequireAuthenticated("secret", users),
		RequireAdmin(users),
	}
	st, err := utils.NewSessionToken("secret", "admin-1", 7)
	require.NoError(t, err)

	rec := doRequest(t, mw, st.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Revoke the role; the very next request with the same still-valid
	// token must be rejected.
	users.roles["admin-1"][model.RoleAdmin] = false
	rec = doRequest(t, mw, st.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAdminWithoutAuthContext(t *testing.T) {
	users := &fakeUsers{roles: map[string]map[string]bool{}}
	rec := doRequest(t, []echo.MiddlewareFunc{RequireAdmin(users)}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
