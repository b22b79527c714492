package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/videgen/internal/api/handlers"
	"github.com/nikhilbhutani/videgen/internal/api/middleware"
	"github.com/nikhilbhutani/videgen/internal/auth"
	"github.com/nikhilbhutani/videgen/internal/config"
	"github.com/nikhilbhutani/videgen/internal/queue"
)

// Deps are the services behind the routes. Optional ones are nil when their
// backend is not configured.
type Deps struct {
	Stages handlers.Stages
	// ArtifactRoot and ArtifactPrefix locate the project directories served
	// under ArtifactPrefix.
	ArtifactRoot   string
	ArtifactPrefix string

	DB       handlers.Pinger
	Redis    handlers.Pinger
	Enqueuer handlers.Enqueuer
	Statuses *queue.StatusStore
	Ledger   handlers.Ledger
	Limiter  *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	health := handlers.NewHealthHandler(deps.DB, deps.Redis)
	r.Get("/health", health.Health)
	r.Get("/readyz", health.Readyz)

	prefix := "/" + strings.Trim(deps.ArtifactPrefix, "/")
	r.Handle(prefix+"/*", http.StripPrefix(prefix, artifactServer(deps.ArtifactRoot)))

	stageH := handlers.NewStageHandler(deps.Stages, cfg.LLM.DefaultModel)
	jobH := handlers.NewJobHandler(deps.Enqueuer, deps.Statuses, deps.Stages)
	eventsH := handlers.NewEventsHandler(deps.Ledger)

	r.Route("/api", func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Limit)
		}
		if cfg.Auth.JWTSecret != "" {
			r.Use(auth.NewJWTMiddleware(cfg.Auth.JWTSecret).Authenticate)
		}

		r.Post("/generate-script", stageH.GenerateScript)
		r.Post("/generate-audio", stageH.GenerateAudio)
		r.Post("/recommend-images", stageH.RecommendImages)
		r.Post("/generate-video", stageH.GenerateVideo)
		r.Get("/models", stageH.Models)

		r.Post("/pipelines", jobH.Create)
		r.Get("/pipelines/{id}", jobH.Get)
		r.Get("/projects/{id}/events", eventsH.List)
	})

	return r
}

// artifactServer serves files from the project directories without
// directory listings.
func artifactServer(root string) http.Handler {
	fs := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}
