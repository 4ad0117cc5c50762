package httpapi

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"styletransfer/internal/http/handlers"
	"styletransfer/internal/infra"
	"styletransfer/internal/jobs"
	"styletransfer/internal/middleware"
)

type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	// StaticDir is the filesystem store root. Only its artifact tree is served,
	// under /static.
	StaticDir string
	Logger    infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)

	limit := opts.RateLimitPerMin
	if limit <= 0 {
		limit = 30
	}
	limited := middleware.RateLimit(limit, time.Minute)
	authed := middleware.AuthJWT(app.JWTSecret)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(limited)
			r.Post("/auth/login", app.Login)
			r.Post("/auth/admin", app.AdminLogin)
			r.Post("/requests", app.SubmitPermissionRequest)
		})

		r.Route("/transfer", func(r chi.Router) {
			r.With(authed).Post("/", app.SubmitTransfer)
			r.Get("/{job_id}", app.TransferStatus)
		})

		r.Route("/gallery", func(r chi.Router) {
			r.Get("/", app.ListGallery)
			r.Get("/{id}", app.GetGalleryItem)
			r.Get("/{id}/archive", app.GalleryArchive)
			r.With(authed).Delete("/{id}", app.DeleteGalleryItem)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authed, middleware.RequireAdmin)
			r.Get("/users", app.ListUsers)
			r.Post("/users", app.CreateUser)
			r.Delete("/users/{email}", app.DeleteUser)
			r.Get("/requests", app.ListRequests)
			r.Post("/requests/{id}/approve", app.ApproveRequest)
			r.Post("/requests/{id}/reject", app.RejectRequest)
			r.Delete("/requests/{id}", app.DeleteRequest)
			r.Get("/stats", app.Stats)
		})
	})

	if opts.StaticDir != "" {
		prefix := "/static/" + jobs.ArtifactRoot + "/"
		files := http.FileServer(http.Dir(filepath.Join(opts.StaticDir, jobs.ArtifactRoot)))
		r.Handle(prefix+"*", http.StripPrefix(prefix, files))
	}

	return r
}
