package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Log),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)

			r.Put("/reference", app.AttachReference)
			r.Delete("/reference", app.RemoveReference)
			r.Put("/aspect", app.SetAspect)

			r.Post("/crop", app.SetLayout)
			r.Post("/crop/move", app.CropMove)
			r.Post("/crop/resize", app.CropResize)

			r.Post("/edits", app.CreateEdit)

			r.Get("/history", app.ListHistory)
			r.Get("/history/archive", app.HistoryArchive)
			r.Post("/history/{index}/select", app.SelectVersion)
			r.Get("/history/{index}/image", app.VersionImage)
		})
	})

	r.Route("/v1/preferences", func(r chi.Router) {
		r.Get("/", app.GetPreferences)
		r.Put("/", app.PutPreferences)
	})

	return r
}
