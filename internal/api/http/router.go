package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/edutech-ops/chromebook-helpdesk/internal/api/http/handlers"
	"github.com/edutech-ops/chromebook-helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	SLA            *handlers.SLAHandler
	Reports        *handlers.ReportsHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/operators/login", cfg.Auth.Login)

	operator := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireOperatorRole()}

	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Patch("/:id/status", append(operator, cfg.Tickets.UpdateStatus)...)

	sla := app.Group("/sla")
	sla.Get("/rules", cfg.SLA.Rules)
	sla.Get("/tickets/:id", cfg.SLA.TicketStatus)
	sla.Get("/violations", cfg.SLA.Violations)
	sla.Get("/at-risk", cfg.SLA.AtRisk)
	sla.Post("/check", append(operator, cfg.SLA.Check)...)

	reports := app.Group("/reports")
	reports.Get("/summary", cfg.Reports.Summary)
	reports.Get("/csv", cfg.Reports.CSV)
	reports.Get("/json", cfg.Reports.JSON)
	reports.Get("/xlsx", cfg.Reports.XLSX)
}
