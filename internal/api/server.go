// Package api provides the HTTP server for EcoLearn: the JSON facade the
// dashboard front end calls for progress, actions, heatmap and leaderboard.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecolearn/ecolearn/internal/app/dashboard"
	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/health"
	"github.com/ecolearn/ecolearn/internal/infra/logger"
)

// Server is the EcoLearn HTTP API server.
type Server struct {
	svc            *dashboard.Service
	log            *logger.Logger
	health         *health.Checker // nil: /health always reports ok
	version        string
	metricsEnabled bool
	corsOrigins    []string
	timeout        time.Duration
}

// NewServer creates a new API server.
func NewServer(svc *dashboard.Service, log *logger.Logger) *Server {
	return &Server{
		svc:         svc,
		log:         log.With("service", "API"),
		version:     "dev",
		corsOrigins: []string{"*"},
		timeout:     30 * time.Second,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches the health checker behind /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetVersion sets the value reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// SetCORSOrigins restricts Access-Control-Allow-Origin. Empty keeps "*".
func (s *Server) SetCORSOrigins(origins []string) {
	if len(origins) > 0 {
		s.corsOrigins = origins
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/progress", s.handleProgress)
			r.Post("/login", s.handleLogin)
			r.Post("/missions/{missionID}/complete", s.handleMission)
			r.Post("/quizzes/{quizID}/finish", s.handleQuiz)
			r.Post("/challenges/{challengeID}/join", s.handleChallenge)
			r.Get("/heatmap", s.handleHeatmap)
			r.Get("/activity", s.handleActivity)
			r.Post("/refresh", s.handleRefresh)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeValidationError writes a 400 with per-field messages.
func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error": map[string]interface{}{
			"message": "validation failed",
			"type":    "validation_error",
			"fields":  fields,
		},
	})
}

// writeServiceError maps service errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if fields, ok := fieldErrors(err); ok {
		writeValidationError(w, fields)
		return
	}
	switch {
	case errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrUnknownTrack),
		errors.Is(err, domain.ErrTrackNotSynced),
		errors.Is(err, domain.ErrInvalidDateKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownMission),
		errors.Is(err, domain.ErrUnknownQuiz),
		errors.Is(err, domain.ErrUnknownChallenge),
		errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRemoteDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// corsMiddleware adds CORS headers for the dashboard front end.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin(r.Header.Get("Origin")))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, o := range s.corsOrigins {
		if o == "*" {
			return "*"
		}
		if o == origin {
			return origin
		}
	}
	return s.corsOrigins[0]
}
