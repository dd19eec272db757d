// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/jason-s-yu/sudoku-lobby/internal/lobby"
	"github.com/jason-s-yu/sudoku-lobby/internal/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter mounts the lobby websocket and the read-only HTTP endpoints.
func NewRouter(sup *Supervisor, l *lobby.Lobby, cfg config.Config, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(logger))
	r.Use(chimw.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			MaxAge:         300,
		}))
		r.Get("/healthz", HealthHandler(sup, l))
		r.Get("/lobby", SnapshotHandler(l))
	})

	r.Group(func(r chi.Router) {
		if cfg.ConnectRatePerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.ConnectRatePerMinute, time.Minute))
		}
		r.Method(http.MethodGet, "/ws", sup)
	})

	return r
}

// HealthHandler reports liveness and the current lobby population.
func HealthHandler(sup *Supervisor, l *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := l.Snapshot()
		status, code := "ok", http.StatusOK
		if !sup.Alive() {
			status, code = "shutting down", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]interface{}{
			"status": status,
			"users":  len(snap.Users),
			"rooms":  len(snap.Rooms),
		})
	}
}

// SnapshotHandler returns the lobby as a newly admitted client would see it.
func SnapshotHandler(l *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, l.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
