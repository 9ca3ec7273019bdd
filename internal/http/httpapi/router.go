package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"calmiverse/internal/http/handlers"
	"calmiverse/internal/infra"
	"calmiverse/internal/middleware"
)

// Options tunes router-level middleware.
type Options struct {
	CORSOrigins     []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
	DefaultLocale   string
}

// NewRouter assembles the public API surface.
func NewRouter(app *handlers.App, cfg *infra.Config, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.CountryLookup, opts.DefaultLocale),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)
	r.Post("/v1/auth/session", app.Session)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Get("/v1/me", app.Me)

		r.Route("/v1/stories", func(r chi.Router) {
			r.Post("/", app.CreateStory)
			r.Get("/", app.ListStories)
			r.Get("/{id}", app.GetStory)
			r.Get("/{id}/epub", app.DownloadEPUB)
			r.Get("/{id}/audio", app.DownloadAudio)
		})

		r.Route("/v1/queue", func(r chi.Router) {
			r.Get("/", app.QueueSnapshot)
			r.Delete("/{id}", app.RemoveJob)
		})

		r.Get("/v1/notifications", app.Notifications)

		r.Route("/v1/children", func(r chi.Router) {
			r.Post("/", app.CreateChild)
			r.Get("/", app.ListChildren)
			r.Put("/{id}", app.UpdateChild)
			r.Delete("/{id}", app.DeleteChild)
		})
	})

	return r
}
