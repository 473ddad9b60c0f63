package middleware // middleware provides shared request processing for handlers

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/avalora/visuals-api/internal/model"
    "github.com/avalora/visuals-api/internal/utils"
)

// Context keys populated by RequireAuthenticated.
const (
    CtxUserID    = "user_id"
    CtxUserEmail = "user_email"
)

// UserLoader resolves a verified token subject to a user row. Satisfied by
// *repository.UserRepo.
type UserLoader interface {
    GetByID(ctx context.Context, id string) (model.User, error)
}

// RoleChecker answers whether a user currently holds a role. Satisfied by
// *repository.UserRepo.
type RoleChecker interface {
    HasRole(ctx context.Context, userID, role string) (bool, error)
}

// RequireAuthenticated returns an Echo middleware that validates a Bearer
// session token and resolves its subject to a live user row. Both steps
// must pass: a correctly signed token whose user was deleted is still a
// 401. On success the user id and email are stored in the context under
// CtxUserID / CtxUserEmail.
func RequireAuthenticated(secret string, users UserLoader) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            sub, err := utils.ParseSessionToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()
            u, err := users.GetByID(ctx, sub)
            if err != nil {
                if errors.Is(err, sql.ErrNoRows) {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
                }
                return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "auth lookup failed"})
            }

            c.Set(CtxUserID, u.ID)
            c.Set(CtxUserEmail, u.Email)
            return next(c)
        }
    }
}

// RequireAdmin returns a middleware enforcing that the authenticated user
// currently holds the admin role. It assumes RequireAuthenticated already
// ran and stored the user id. The role row is read fresh from the store
// on every request – deliberately no cache, so revoking the role takes
// effect on the very next request.
func RequireAdmin(roles RoleChecker) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            userID, ok := c.Get(CtxUserID).(string)
            if !ok || userID == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()
            isAdmin, err := roles.HasRole(ctx, userID, model.RoleAdmin)
            if err != nil {
                return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "role lookup failed"})
            }
            if !isAdmin {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
