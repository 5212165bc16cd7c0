package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk/orderbot/internal/api/http/handlers"
	"github.com/supportdesk/orderbot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Admin.Login)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Get("/settings", cfg.Admin.Settings)
	admin.Put("/settings/:name", cfg.Admin.OverrideSetting)
	admin.Get("/tariffs", cfg.Admin.Tariffs)
	admin.Get("/metrics", cfg.Admin.Metrics)
	admin.Get("/stats/orders", cfg.Admin.OrderStats)
	admin.Get("/stats/billing", cfg.Admin.Billing)
}
