package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/chiefnavajo/aimoviez-sub010/internal/handler"
	"github.com/chiefnavajo/aimoviez-sub010/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Vote    *handler.VoteHandler
	Counter *handler.CounterHandler
	Jobs    *handler.JobsHandler
	Health  *handler.HealthHandler
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, corsOrigins, jobSecret string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(handler.MetricsMiddleware())
	app.Use(middleware.NewCORS(corsOrigins))

	// Probes and metrics (no auth, no rate limit)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	// API routes
	api := app.Group("/api")

	// Vote routes
	api.Post("/votes", h.Vote.Submit, middleware.NewVoteSubmitRateLimiter().Handler())
	api.Delete("/votes", h.Vote.Delete, middleware.NewVoteDeleteRateLimiter().Handler())

	// Counter and slot reads
	counterLimiter := middleware.NewCounterReadRateLimiter()
	api.Get("/clips/:clipId/counters", h.Counter.GetClipCounters, counterLimiter.Handler())
	api.Get("/slots/current", h.Counter.GetCurrentSlot, counterLimiter.Handler())

	// Scheduler-triggered jobs (bearer shared secret)
	jobs := app.Group("/internal/jobs", middleware.NewJobAuth(jobSecret))
	jobs.Get("/drain", h.Jobs.Drain)
	jobs.Get("/reconcile", h.Jobs.Reconcile)
	jobs.Get("/advance", h.Jobs.Advance)
}
