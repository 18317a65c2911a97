package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/curate/internal/review"
	"github.com/kalambet/curate/internal/storage"
	"github.com/kalambet/curate/internal/taxonomy"
)

type AppDeps struct {
	Engine     *review.Engine
	Store      *storage.Store
	Tags       *taxonomy.Catalog
	JWTSecret  []byte
	Issuer     string
	TokenTTL   time.Duration
	AdminToken string
	Metrics    http.Handler // optional; serves /metrics when set
	Logger     *slog.Logger
}

func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth(deps))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(ReviewerAuth(deps.JWTSecret, deps.Issuer))

		r.Get("/tags", handleListTags(deps))
		r.Route("/review", func(r chi.Router) {
			r.Get("/{mode}/source", handleActiveSource(deps))
			r.Get("/{mode}/next", handleNextArticle(deps))
			r.Get("/{mode}/progress", handleProgress(deps))
			r.Post("/reactions", handleReaction(deps))
			r.Post("/classifications", handleClassification(deps))
			r.Post("/notes", handleNote(deps))
			r.Get("/articles/{id}/notes", handleListNotes(deps))
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(BearerAuth(deps.AdminToken))

		r.Get("/quotas", handleListQuotas(deps))
		r.Put("/quotas", handlePutQuota(deps))
		r.Delete("/quotas", handleDeleteQuota(deps))
		r.Put("/tags", handlePutTag(deps))
		r.Post("/tokens", handleIssueToken(deps))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthView{Status: "ok"}
		if deps.Store != nil {
			v, err := deps.Store.SchemaVersion(r.Context())
			if err != nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "store unavailable: %v", err)
				return
			}
			resp.SchemaVersion = v
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
