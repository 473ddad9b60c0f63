package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avalora/visuals-api/internal/config"
	"github.com/avalora/visuals-api/internal/handler"
	"github.com/avalora/visuals-api/internal/middleware"
	"github.com/avalora/visuals-api/internal/repository"
)

// Handlers bundles everything the router wires up.
type Handlers struct {
	Auth      *handler.AuthHandler
	Licenses  *handler.LicenseHandler
	Products  *handler.ProductHandler
	Purchases *handler.PurchaseHandler
	Admin     *handler.AdminHandler
}

// Register wires every route of the API onto the provided Echo instance.
// Layout:
//
//	/api/health              – liveness probe, no middleware
//	/api/auth/...            – account lifecycle, rate limited
//	/api/products/...        – public catalog, response cached
//	/api/licenses/...        – customer licenses, authenticated
//	/api/purchases/...       – purchase history, authenticated
//	/api/admin/...           – management, authenticated + admin role
func Register(e *echo.Echo, h Handlers, users *repository.UserRepo, cfg config.Config, rdb *redis.Client) {
	api := e.Group("/api")

	api.GET("/health", handler.Health)

	requireAuth := middleware.RequireAuthenticated(cfg.JWTSecret, users)
	requireAdmin := middleware.RequireAdmin(users)

	// Account lifecycle. The whole group sits behind the Redis token
	// bucket: login and forgot-password accept guesses about which emails
	// exist, so they must not be free to hammer.
	auth := api.Group("/auth")
	auth.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	auth.POST("/register", h.Auth.Register)
	auth.POST("/confirm-email", h.Auth.ConfirmEmail)
	auth.POST("/resend-confirmation", h.Auth.ResendConfirmation)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/forgot-password", h.Auth.ForgotPassword)
	auth.POST("/reset-password", h.Auth.ResetPassword)
	auth.POST("/logout", h.Auth.Logout)
	auth.POST("/change-password", h.Auth.ChangePassword, requireAuth)
	auth.GET("/me", h.Auth.Me, requireAuth)

	// Public catalog, cached. The cache fronts only these two routes;
	// everything per-user stays uncached.
	products := api.Group("/products")
	products.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	products.GET("", h.Products.List)
	products.GET("/:slug", h.Products.GetBySlug)

	// Customer licenses.
	licenses := api.Group("/licenses", requireAuth)
	licenses.GET("", h.Licenses.List)
	licenses.POST("/activate", h.Licenses.Activate)
	licenses.PUT("/:id/hwid", h.Licenses.BindHwid)

	// Purchases.
	purchases := api.Group("/purchases", requireAuth)
	purchases.GET("", h.Purchases.List)
	purchases.POST("", h.Purchases.Create)

	// Management. RequireAdmin re-reads the role row on every request, so
	// revoking admin locks the next request out.
	admin := api.Group("/admin", requireAuth, requireAdmin)
	admin.GET("/users", h.Admin.ListUsers)
	admin.GET("/licenses", h.Admin.ListLicenses)
	admin.GET("/products", h.Admin.ListProducts)
	admin.POST("/licenses", h.Admin.CreateLicense)
	admin.PATCH("/licenses/:id", h.Admin.UpdateLicense)
	admin.POST("/licenses/:id/deactivate", h.Admin.DeactivateLicense)
	admin.DELETE("/licenses/:id", h.Admin.DeleteLicense)
	admin.GET("/stats", h.Admin.Stats)
}
