package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/captionsync/backend/internal/api/handlers"
	"github.com/captionsync/backend/internal/api/middleware"
	"github.com/captionsync/backend/internal/config"
	"github.com/captionsync/backend/internal/db"
	"github.com/captionsync/backend/internal/i18n"
	"github.com/captionsync/backend/internal/job"
	"github.com/captionsync/backend/internal/session"
	"github.com/captionsync/backend/internal/translate"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Services are the components the HTTP API exposes.
type Services struct {
	Database   *db.Database
	Translator *translate.Service
	Sessions   *session.Manager
	Jobs       *job.JobQueue
	Catalog    *i18n.Catalog
	// SettingsChanged runs after settings were saved through the API.
	SettingsChanged func()
}

func NewRouter(cfg *config.Config, svc Services) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Handlers
	captionsHandler := handlers.NewCaptionsHandler(svc.Database, svc.Translator, cfg.ImagePath, cfg.TargetLang)
	filesHandler := handlers.NewFilesHandler(cfg.ImagePath)
	translateHandler := handlers.NewTranslateHandler(svc.Translator, svc.Database, cfg.APIKeys["gemini"])
	sessionHandler := handlers.NewSessionHandler(svc.Sessions, svc.Catalog)
	templatesHandler := handlers.NewTemplatesHandler(svc.Database)
	settingsHandler := handlers.NewSettingsHandler(svc.Database, svc.SettingsChanged)
	jobHandler := handlers.NewJobHandler(svc.Jobs, cfg.TargetLang)

	// Calls that reach a translation provider
	limiter := middleware.NewRateLimiter(120, time.Minute)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Captions
		r.Get("/captions", captionsHandler.ListCaptions)
		r.Post("/captions", captionsHandler.CreateCaption)
		r.Post("/captions/import", captionsHandler.ImportFolder)
		r.Get("/captions/{id}", captionsHandler.GetCaption)
		r.Put("/captions/{id}", captionsHandler.UpdateCaption)
		r.Delete("/captions/{id}", captionsHandler.DeleteCaption)
		r.Get("/captions/{id}/history", captionsHandler.History)
		r.With(limiter.Handler).Post("/captions/{id}/translate", captionsHandler.TranslateCaption)

		// Files
		r.Get("/files/tree", filesHandler.GetTree)
		r.Get("/files/tree/*", filesHandler.GetTree)
		r.Get("/files/search", filesHandler.Search)

		// Translation
		r.With(limiter.Handler).Post("/translate", translateHandler.Translate)
		r.Get("/translate/providers", translateHandler.ListProviders)
		r.Get("/translate/gemini/models", translateHandler.GeminiModels)

		// Session
		r.Post("/session", sessionHandler.Open)
		r.Get("/session", sessionHandler.Get)
		r.Delete("/session", sessionHandler.Close)
		r.Post("/session/edit", sessionHandler.Edit)
		r.Post("/session/text", sessionHandler.EditText)
		r.Post("/session/composition/start", sessionHandler.CompositionStart)
		r.Post("/session/composition/end", sessionHandler.CompositionEnd)
		r.Post("/session/reset", sessionHandler.Reset)
		r.Delete("/session/units/{index}", sessionHandler.DeleteUnit)
		r.Get("/session/payload", sessionHandler.Payload)
		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Post("/session/sync", sessionHandler.Sync)
			r.Post("/session/sync/{index}", sessionHandler.SyncSentence)
			r.Post("/session/sync-whole", sessionHandler.SyncWhole)
		})

		// Templates
		r.Get("/templates", templatesHandler.ListTemplates)
		r.Post("/templates", templatesHandler.CreateTemplate)
		r.Put("/templates/{id}", templatesHandler.UpdateTemplate)
		r.Delete("/templates/{id}", templatesHandler.DeleteTemplate)

		// Settings
		r.Get("/settings", settingsHandler.GetSettings)
		r.Put("/settings", settingsHandler.UpdateSettings)

		// Jobs
		r.Post("/jobs/translate", jobHandler.EnqueueTranslate)
		r.Get("/jobs", jobHandler.ListJobs)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Delete("/jobs/{id}", jobHandler.CancelJob)
		r.Post("/jobs/{id}/retry", jobHandler.RetryJob)
	})

	return r
}
