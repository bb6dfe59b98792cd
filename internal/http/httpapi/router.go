package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storyforge/internal/http/handlers"
	"storyforge/internal/http/middleware"
)

// NewRouter assembles the HTTP surface: the story submission boundary,
// health, Prometheus metrics, and the static mount backing generated asset
// URLs.
func NewRouter(app *handlers.App, registry *prometheus.Registry, storagePath string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, chimw.Logger)
	r.Use(middleware.RateLimit(app.Cfg.RateLimitPerMin))

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/stories", func(r chi.Router) {
		r.Post("/", app.SubmitStory)
		r.Get("/{id}", app.StoryStatus)
	})

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	fileServer := stdhttp.FileServer(stdhttp.Dir(storagePath))
	r.Handle("/static/*", stdhttp.StripPrefix("/static/", fileServer))

	return r
}
