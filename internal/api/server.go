// Package api provides the local HTTP server for Trailhead.
// It exposes the XP economy to the desktop UI and CLI over REST plus a
// live SSE event feed.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the Trailhead HTTP API server.
type Server struct {
	xp             *XPAPI
	feed           *LiveFeed
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(xp *XPAPI) *Server {
	return &Server{xp: xp}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetLiveFeed sets the SSE event feed.
func (s *Server) SetLiveFeed(f *LiveFeed) { s.feed = f }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": "0.1.0",
		})
	})

	r.Route("/api/xp", func(r chi.Router) {
		r.Get("/total", s.xp.HandleTotal)
		r.Get("/level", s.xp.HandleLevel)
		r.Get("/summary", s.xp.HandleSummary)
		r.Post("/grant", s.xp.HandleGrant)
		r.Post("/revoke", s.xp.HandleRevoke)
		r.Get("/harmony", s.xp.HandleHarmony)
		r.Get("/multiplier", s.xp.HandleMultiplier)
		r.Post("/multiplier/activate", s.xp.HandleActivateMultiplier)
	})

	r.Post("/api/challenges/monthly/award", s.xp.HandleMonthlyAward)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	if s.feed != nil {
		r.Get("/api/xp/live", s.feed.HandleSSE)
	}

	return r
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

// corsMiddleware adds CORS headers for the local desktop UI.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
