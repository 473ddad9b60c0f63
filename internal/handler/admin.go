package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avalora/visuals-api/internal/model"
	"github.com/avalora/visuals-api/internal/repository"
	"github.com/avalora/visuals-api/internal/service"
)

// AdminHandler serves the management endpoints. Every route here is
// registered behind RequireAuthenticated + RequireAdmin; the handlers
// never re-check the role themselves.
type AdminHandler struct {
	Licenses  *service.LicenseService
	LicRepo   *repository.LicenseRepo
	Users     *repository.UserRepo
	Products  *repository.ProductRepo
	Purchases *repository.PurchaseRepo
}

func NewAdminHandler(ls *service.LicenseService, lr *repository.LicenseRepo,
	ur *repository.UserRepo, pr *repository.ProductRepo, pu *repository.PurchaseRepo) *AdminHandler {
	return &AdminHandler{Licenses: ls, LicRepo: lr, Users: ur, Products: pr, Purchases: pu}
}

type issueLicenseReq struct {
	ProductID    string `json:"product_id"`
	DurationType string `json:"duration_type"` // week | month | lifetime
	DurationDays int    `json:"duration_days"`
	OwnerEmail   string `json:"owner_email"` // optional; unknown emails leave the license unclaimed
	Hwid         string `json:"hwid"`
}

// updateLicenseReq distinguishes absent fields from explicit nulls so a
// PATCH only touches what the admin sent. expires_at accepts RFC 3339 or
// null to clear.
type updateLicenseReq struct {
	IsActive     *bool    `json:"is_active"`
	ExpiresAt    *string  `json:"expires_at"`
	ClearExpiry  bool     `json:"clear_expiry"`
	Hwid         *string  `json:"hwid"`
	ProductID    *string  `json:"product_id"`
	DurationType *string  `json:"duration_type"`
}

// Users: every account with profile and role set.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, err := h.Users.ListWithRoles(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if users == nil {
		users = []repository.AdminUserRow{}
	}
	return c.JSON(http.StatusOK, users)
}

// Licenses: every license with owner and product context.
func (h *AdminHandler) ListLicenses(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rows, err := h.LicRepo.ListAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if rows == nil {
		rows = []repository.AdminLicenseRow{}
	}
	return c.JSON(http.StatusOK, rows)
}

// Products: the catalog including tiers, same shape as the public route
// but without the response cache in front.
func (h *AdminHandler) ListProducts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	products, err := h.Products.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if products == nil {
		products = []repository.ProductWithTiers{}
	}
	return c.JSON(http.StatusOK, products)
}

// CreateLicense: generate a key and issue a license, optionally
// pre-assigned to an owner email.
func (h *AdminHandler) CreateLicense(c echo.Context) error {
	adminID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req issueLicenseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	switch req.DurationType {
	case model.DurationWeek, model.DurationMonth, model.DurationLifetime, "":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid duration_type"})
	}
	if req.DurationType == model.DurationWeek && req.DurationDays == 0 {
		req.DurationDays = 7
	}
	if req.DurationType == model.DurationMonth && req.DurationDays == 0 {
		req.DurationDays = 30
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	l, err := h.Licenses.Issue(ctx, service.IssueParams{
		ProductID:    strings.TrimSpace(req.ProductID),
		DurationType: req.DurationType,
		DurationDays: req.DurationDays,
		OwnerEmail:   strings.TrimSpace(req.OwnerEmail),
		Hwid:         strings.TrimSpace(req.Hwid),
		IssuedBy:     adminID,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

// UpdateLicense: sparse PATCH of a license; fields absent from the body
// stay untouched.
func (h *AdminHandler) UpdateLicense(c echo.Context) error {
	var req updateLicenseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	patch := repository.LicensePatch{
		IsActive:     req.IsActive,
		Hwid:         req.Hwid,
		ProductID:    req.ProductID,
		DurationType: req.DurationType,
	}
	if req.ClearExpiry {
		var nilTime *time.Time
		patch.ExpiresAt = &nilTime
	} else if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "expires_at must be RFC 3339"})
		}
		tt := &t
		patch.ExpiresAt = &tt
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Licenses.AdminUpdate(ctx, c.Param("id"), patch); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "license updated"})
}

// DeactivateLicense: flip the kill switch; reversible via PATCH.
func (h *AdminHandler) DeactivateLicense(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Licenses.Deactivate(ctx, c.Param("id")); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "license deactivated"})
}

// DeleteLicense: remove the row permanently.
func (h *AdminHandler) DeleteLicense(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Licenses.Delete(ctx, c.Param("id")); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "license deleted"})
}

// Stats: the dashboard counters.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, err := h.Users.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	totalLic, activeLic, err := h.LicRepo.Counts(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	purchases, revenue, err := h.Purchases.Stats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"users":               users,
		"licenses":            totalLic,
		"active_licenses":     activeLic,
		"completed_purchases": purchases,
		"revenue":             revenue,
	})
}
