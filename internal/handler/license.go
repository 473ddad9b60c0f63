package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avalora/visuals-api/internal/queue"
	"github.com/avalora/visuals-api/internal/repository"
	"github.com/avalora/visuals-api/internal/service"
	queue_publisher "github.com/avalora/visuals-api/internal/service/queue_publisher"
)

// LicenseHandler bundles dependencies for the customer-facing license
// endpoints. Listings go straight to the repository; lifecycle mutations
// go through the service.
type LicenseHandler struct {
	Licenses *service.LicenseService
	Repo     *repository.LicenseRepo
}

func NewLicenseHandler(s *service.LicenseService, r *repository.LicenseRepo) *LicenseHandler {
	return &LicenseHandler{Licenses: s, Repo: r}
}

type activateReq struct {
	LicenseKey string `json:"license_key"`
}
type hwidReq struct {
	Hwid string `json:"hwid"` // empty clears the binding
}

// licenseView is the customer-facing license shape, with the evaluated
// status attached. Expiry is computed at read time.
type licenseView struct {
	ID           string     `json:"id"`
	LicenseKey   string     `json:"license_key"`
	ProductName  *string    `json:"product_name,omitempty"`
	ProductSlug  *string    `json:"product_slug,omitempty"`
	IsActive     bool       `json:"is_active"`
	DurationType *string    `json:"duration_type,omitempty"`
	Hwid         string     `json:"hwid,omitempty"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Status       string     `json:"status"`
	RemainingSec int64      `json:"remaining_seconds,omitempty"`
}

// List (protected): the caller's licenses, newest first, each with its
// evaluated status.
func (h *LicenseHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rows, err := h.Repo.ListByOwner(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	now := time.Now().UTC()
	out := make([]licenseView, 0, len(rows))
	for _, row := range rows {
		status := service.EvaluateStatus(row.License, now)
		v := licenseView{
			ID:           row.ID,
			LicenseKey:   row.LicenseKey,
			ProductName:  row.ProductName,
			ProductSlug:  row.ProductSlug,
			IsActive:     row.IsActive,
			DurationType: row.DurationType,
			Hwid:         row.Hwid,
			ActivatedAt:  row.ActivatedAt,
			ExpiresAt:    row.ExpiresAt,
			Status:       string(status.State),
		}
		if status.State == service.StateActive {
			v.RemainingSec = int64(status.Remaining / time.Second)
		}
		out = append(out, v)
	}
	return c.JSON(http.StatusOK, out)
}

// Activate (protected): claim an unclaimed license key for the caller.
// Safe to retry – re-activating an owned license is a no-op success.
func (h *LicenseHandler) Activate(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req activateReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.LicenseKey) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "license_key required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	l, err := h.Licenses.Activate(ctx, userID, strings.TrimSpace(req.LicenseKey))
	if err != nil {
		return writeServiceError(c, err)
	}

	// Best-effort audit event.
	ev := queue.LicenseActivatedEvent{
		LicenseID:  l.ID,
		LicenseKey: l.LicenseKey,
		OwnerID:    userID,
	}
	if l.ProductID != nil {
		ev.ProductID = *l.ProductID
	}
	if l.ActivatedAt != nil {
		ev.ActivatedAt = l.ActivatedAt.UTC().Format(time.RFC3339)
	}
	if l.ExpiresAt != nil {
		ev.ExpiresAt = l.ExpiresAt.UTC().Format(time.RFC3339)
	}
	_ = queue_publisher.PublishLicenseActivated(ctx, ev)

	return c.JSON(http.StatusOK, echo.Map{"message": "license activated", "license_id": l.ID})
}

// BindHwid (protected): overwrite the advisory hardware binding of an
// owned license. An empty hwid clears it.
func (h *LicenseHandler) BindHwid(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	licenseID := c.Param("id")
	var req hwidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Licenses.BindHwid(ctx, userID, licenseID, strings.TrimSpace(req.Hwid)); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "hwid updated"})
}
