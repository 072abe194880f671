package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/pipeline"
	"github.com/kikiluvv/overlaycut/internal/session"
)

// Version is reported by /health
const Version = "0.1.0"

// Sessions is the session persistence the API needs
type Sessions interface {
	Save(ctx context.Context, st session.State) error
	Load(ctx context.Context, id string) (session.State, error)
	List(ctx context.Context) ([]session.Summary, error)
	Delete(ctx context.Context, id string) error
}

type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

type ServerConfig struct {
	Addr      string
	Manager   *pipeline.Manager
	Sessions  Sessions
	Logger    zerolog.Logger
	StartTime time.Time
	// FFmpegVersion is reported by /health when set
	FFmpegVersion string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
