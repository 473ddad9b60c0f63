package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avalora/visuals-api/internal/model"
	"github.com/avalora/visuals-api/internal/repository"
)

// PurchaseHandler records purchase intents and serves the purchase
// history. Payment capture is not wired: Create records a pending row
// against the chosen pricing tier and returns a payment preview for the
// client to complete elsewhere.
type PurchaseHandler struct {
	Purchases *repository.PurchaseRepo
	Products  *repository.ProductRepo
}

func NewPurchaseHandler(pu *repository.PurchaseRepo, pr *repository.ProductRepo) *PurchaseHandler {
	return &PurchaseHandler{Purchases: pu, Products: pr}
}

type createPurchaseReq struct {
	PricingTierID string `json:"pricing_tier_id"`
}

// List (protected): the caller's purchase history, newest first.
func (h *PurchaseHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rows, err := h.Purchases.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if rows == nil {
		rows = []repository.PurchaseRow{}
	}
	return c.JSON(http.StatusOK, rows)
}

// Create (protected): record a pending purchase for a pricing tier and
// return a payment preview.
func (h *PurchaseHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req createPurchaseReq
	if err := c.Bind(&req); err != nil || req.PricingTierID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pricing_tier_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	tier, err := h.Products.GetTier(ctx, req.PricingTierID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "pricing tier not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	p := model.Purchase{
		ID:     uuid.NewString(),
		UserID: userID,
		Amount: tier.Price,
		Status: model.PurchasePending,
	}
	if err := h.Purchases.Create(ctx, p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not record purchase"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"purchase_id": p.ID,
		"status":      p.Status,
		"payment": echo.Map{
			"amount":        tier.Price,
			"currency":      "EUR",
			"product_id":    tier.ProductID,
			"duration_type": tier.DurationType,
		},
	})
}
