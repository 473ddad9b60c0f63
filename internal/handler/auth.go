package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avalora/visuals-api/internal/queue"
	"github.com/avalora/visuals-api/internal/service"
	queue_publisher "github.com/avalora/visuals-api/internal/service/queue_publisher"
)

// AuthHandler bundles dependencies for the account endpoints.
type AuthHandler struct {
	Accounts *service.AccountService
}

func NewAuthHandler(a *service.AccountService) *AuthHandler {
	return &AuthHandler{Accounts: a}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"` // optional; defaults to the email local part
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type tokenReq struct {
	Token string `json:"token"`
}
type emailReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	EmailConfirmed bool     `json:"email_confirmed"`
	Roles          []string `json:"roles,omitempty"`
}
type sessionResp struct {
	User    userPart  `json:"user"`
	Session tokenPart `json:"session"`
}

// Register: create the account and send the confirmation mail. No session
// token is returned – the user logs in after confirming the address.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = service.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Accounts.Register(ctx, req.Email, req.Password, strings.TrimSpace(req.Username))
	if err != nil {
		return writeServiceError(c, err)
	}

	// Best-effort audit event; a broker outage never fails registration.
	_ = queue_publisher.PublishUserRegistered(ctx, queue.UserRegisteredEvent{
		UserID:       u.ID,
		Email:        u.Email,
		Username:     req.Username,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"user":    userPart{ID: u.ID, Email: u.Email, EmailConfirmed: false},
		"message": "confirmation email sent",
	})
}

// ConfirmEmail: consume the emailed token; responds with an auto-login
// session.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, session, err := h.Accounts.ConfirmEmail(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp{
		User:    userPart{ID: u.ID, Email: u.Email, EmailConfirmed: true},
		Session: tokenPart{Token: session.Token, Expires: session.Exp},
	})
}

// ResendConfirmation: replace and re-send the confirmation token.
func (h *AuthHandler) ResendConfirmation(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Accounts.ResendConfirmation(ctx, req.Email); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "confirmation email sent"})
}

// Login: verify credentials and return the user with its roles and a
// session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, roles, session, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp{
		User:    userPart{ID: u.ID, Email: u.Email, EmailConfirmed: u.EmailConfirmed, Roles: roles},
		Session: tokenPart{Token: session.Token, Expires: session.Exp},
	})
}

// ForgotPassword: always answers with the same message so the endpoint
// cannot be used to probe which emails have accounts.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Accounts.ForgotPassword(ctx, req.Email); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists, a reset email was sent"})
}

// ResetPassword: spend the reset token, store the new password, auto-login.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token/new_password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, session, err := h.Accounts.ResetPassword(ctx, strings.TrimSpace(req.Token), req.NewPassword)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp{
		User:    userPart{ID: u.ID, Email: u.Email, EmailConfirmed: u.EmailConfirmed},
		Session: tokenPart{Token: session.Token, Expires: session.Exp},
	})
}

// ChangePassword (protected): verify the current password, store the new
// one. Existing sessions are not rotated.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current_password/new_password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Accounts.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// Me (protected): return the authenticated user and its current roles.
// The middleware already verified the token and resolved the user, so
// this only re-reads the row and the role set.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Accounts.User(ctx, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	roles, err := h.Accounts.Roles(ctx, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user": userPart{ID: u.ID, Email: u.Email, EmailConfirmed: u.EmailConfirmed, Roles: roles},
	})
}

// Logout: sessions are stateless bearer tokens, so logout is a client
// concern; the endpoint exists for API symmetry.
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
