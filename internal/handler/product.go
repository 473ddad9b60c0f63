package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avalora/visuals-api/internal/repository"
)

// ProductHandler serves the public catalog. The routes sit behind the
// Redis response cache, so the handlers stay plain reads.
type ProductHandler struct {
	Products *repository.ProductRepo
}

func NewProductHandler(r *repository.ProductRepo) *ProductHandler {
	return &ProductHandler{Products: r}
}

// List: every product with its pricing tiers, beta products last.
func (h *ProductHandler) List(c echo.Context) error {
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

// GetBySlug: a single product looked up by its URL slug.
func (h *ProductHandler) GetBySlug(c echo.Context) error {
	slug := c.Param("slug")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Products.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, p)
}
