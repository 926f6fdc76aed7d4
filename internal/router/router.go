package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/config"
	"github.com/noah-isme/activity-credit-api/internal/handler"
	"github.com/noah-isme/activity-credit-api/internal/middleware"
	"github.com/noah-isme/activity-credit-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActivityHandler    *handler.ActivityHandler
	ParticipantHandler *handler.ParticipantHandler
	AttachmentHandler  *handler.AttachmentHandler
	ApplicationHandler *handler.ApplicationHandler
	CategoryHandler    *handler.CategoryHandler
	AuditHandler       *handler.AuditHandler
	HealthChecks       map[string]handler.Pinger
	JWTMiddleware      fiber.Handler
	// MutationLimiter throttles state-changing requests and must let safe
	// methods through; nil disables it.
	MutationLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	mutations := deps.MutationLimiter
	if mutations == nil {
		mutations = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.CategoryHandler != nil {
		deps.CategoryHandler.Register(api.Group("/categories", jwtMiddleware))
	}

	activities := api.Group("/activities", jwtMiddleware, mutations)
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(activities)
	}
	if deps.ParticipantHandler != nil {
		deps.ParticipantHandler.Register(activities)
	}
	if deps.AttachmentHandler != nil {
		deps.AttachmentHandler.Register(activities)
	}

	if deps.ApplicationHandler != nil {
		deps.ApplicationHandler.Register(api.Group("/applications", jwtMiddleware, mutations))
	}

	if deps.AuditHandler != nil {
		audit := api.Group("/audit", jwtMiddleware)
		audit.Use(middleware.RequireRole(authz.RoleTeacher, authz.RoleAdmin))
		deps.AuditHandler.Register(audit)
	}
}
