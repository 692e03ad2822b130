package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/registrations/internal/handler"
	"github.com/registrations/internal/middleware"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(app.logger))
	r.Use(chimw.Recoverer)
	r.Use(app.metrics.Instrument)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(app.config.Cors.TrustedOrigins))

	r.Get("/healthz", handler.Health(app.started))
	r.Handle("/metrics", app.metrics.Handler())

	registrations := handler.NewRegistrationHandler(app.logger, app.pipeline, app.config.MaxUploadBytes())
	r.Get("/", registrations.List)
	r.Get("/data", registrations.List)

	limit, burst := middleware.PerMinute(app.config.RateLimitPerMinute)
	r.With(middleware.RateLimit(limit, burst)).Post("/", registrations.Submit)

	return r
}
