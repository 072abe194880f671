package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	logger := cfg.Logger.With().Str("component", "api").Logger()
	cfg.Logger = logger

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/exports", func(r chi.Router) {
		r.Post("/", startExportHandler(cfg))
		r.Get("/{id}", getExportHandler(cfg))
		r.Delete("/{id}", cancelExportHandler(cfg))
		r.Get("/{id}/download", downloadExportHandler(cfg))
		r.Get("/{id}/events", exportEventsHandler(cfg))
	})

	if cfg.Sessions != nil {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", listSessionsHandler(cfg))
			r.Get("/{id}", getSessionHandler(cfg))
			r.Put("/{id}", putSessionHandler(cfg))
			r.Delete("/{id}", deleteSessionHandler(cfg))
		})
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:        "ok",
			Version:       Version,
			UptimeS:       int64(time.Since(cfg.StartTime).Seconds()),
			FFmpeg:        cfg.FFmpegVersion,
			ExportRunning: cfg.Manager.Active() != nil,
		})
	}
}
