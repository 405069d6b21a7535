package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unihelp/helpdesk/internal/api/http/handlers"
	"github.com/unihelp/helpdesk/internal/auth"
	"github.com/unihelp/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Dashboard      *handlers.DashboardHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	api.Get("/me", cfg.Auth.Me)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:code", cfg.Tickets.GetTicket)
	tickets.Patch("/:code", cfg.Tickets.UpdateTicket)
	tickets.Post("/:code/assign", auth.RequireSupport(), cfg.Tickets.AssignTicket)
	tickets.Post("/:code/comments", cfg.Tickets.AddComment)
	tickets.Post("/:code/attachments", cfg.Tickets.AddAttachment)
	tickets.Get("/:code/history", cfg.Tickets.History)
	tickets.Get("/:code/audit", auth.RequireSupport(), cfg.Tickets.AuditLog)
	tickets.Get("/:code/sla", cfg.Tickets.SLAStatus)

	api.Get("/dashboard/stats", cfg.Dashboard.Stats)

	if cfg.Metrics != nil {
		api.Get("/metrics", auth.RequireRole(domain.RoleAdmin), cfg.Metrics.Snapshot)
	}
}
