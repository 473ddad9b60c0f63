package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avalora/visuals-api/internal/middleware"
	"github.com/avalora/visuals-api/internal/service"
)

// dbTimeout bounds every store call made from a handler. Store faults
// surface as 503 rather than a hung request.
const dbTimeout = 5 * time.Second

// writeServiceError translates the service error taxonomy into HTTP
// responses. Every handler funnels failures through here so a given error
// always maps to the same status and message.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrEmailNotConfirmed):
		// Distinct code: the client routes to the resend-confirmation flow.
		return c.JSON(http.StatusForbidden, echo.Map{"error": "email not confirmed", "code": "email_not_confirmed"})
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	case errors.Is(err, service.ErrAlreadyConfirmed):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already confirmed"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, service.ErrAlreadyOwnedByOther):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "license already activated by another user"})
	case errors.Is(err, service.ErrDeactivated):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "license deactivated"})
	case errors.Is(err, service.ErrNoFieldsProvided):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	case errors.Is(err, service.ErrInvalidDuration):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_days required for timed licenses"})
	case errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// currentUserID pulls the authenticated user id stored by the auth
// middleware. Handlers behind RequireAuthenticated can rely on it being
// present; the empty-string check is a belt for misregistered routes.
func currentUserID(c echo.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxUserID).(string)
	return v, ok && v != ""
}
