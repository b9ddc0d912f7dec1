package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/condgate/condgate/internal/auth"
	"github.com/condgate/condgate/internal/telemetry"
)

// Router assembles the HTTP surface. Reads and evaluations are public;
// rule set mutations require an admin key.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeErrorResponse(w, req, http.StatusNotFound,
			NewErrorResponse(http.StatusNotFound, ErrCodeNotFound, "Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeErrorResponse(w, req, http.StatusMethodNotAllowed,
			NewErrorResponse(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed"))
	})

	// health & metrics
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The stream endpoint holds connections open, so it lives outside the
	// timeout group.
	r.Get("/v1/snapshot/stream", s.handleSnapshotStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))

		// public: snapshot (ETag) and dry-run validation
		r.Get("/v1/snapshot", s.handleSnapshot)
		r.Post("/v1/validate", s.handleValidate)

		r.Group(func(r chi.Router) {
			if s.rateLimit > 0 {
				r.Use(httprate.Limit(s.rateLimit, s.rateWindow,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
						writeErrorResponse(w, req, http.StatusTooManyRequests,
							NewErrorResponse(http.StatusTooManyRequests, ErrCodeRateLimited, "Evaluation rate limit exceeded"))
					}),
				))
			}
			r.Post("/v1/evaluate", s.handleEvaluate)
			r.Get("/v1/evaluate", s.handleEvaluateGET)
		})

		// public: rule set reads
		r.Get("/v1/rulesets", s.handleListRuleSets)
		r.Get("/v1/rulesets/{key}", s.handleGetRuleSet)

		// admin (protected): rule set mutations
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireKey(auth.RoleAdmin))
			r.Put("/v1/rulesets/{key}", s.handleUpsertRuleSet)
			r.Delete("/v1/rulesets/{key}", s.handleDeleteRuleSet)
		})
	})

	return r
}

// handleReady reports whether the backing store is reachable. Load
// balancers use it to take an instance out of rotation without killing
// in-flight snapshot readers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("store health check failed")
		StoreUnavailableError(w, r, "Store is unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleSnapshot serves the current compiled snapshot with an ETag so
// clients can long-poll cheaply with If-None-Match.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Load()

	w.Header().Set("ETag", snap.ETag)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}
