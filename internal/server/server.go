package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	layoutviewer "github.com/menta2k/layout-viewer"
	"github.com/menta2k/layout-viewer/internal/config"
	"github.com/menta2k/layout-viewer/pkg/queue"
)

type Server struct {
	*config.Config

	viewer   *layoutviewer.Viewer
	sessions *Sessions
	logger   *slog.Logger
}

func New(cfg *config.Config, viewer *layoutviewer.Viewer) *Server {
	s := &Server{
		Config: cfg,

		viewer: viewer,
		logger: slog.Default(),
	}

	s.sessions = NewSessions(func() *queue.Coordinator {
		return viewer.NewSession()
	})

	return s
}

// Handler returns the HTTP API with CORS and tracing applied
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	s.Attach(r)

	return otelhttp.NewHandler(r, "layout-viewer")
}

// ListenAndServe serves until ctx is done, then shuts down and ends all
// sessions
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Server.Addr,
		Handler: s.Handler(),

		ReadHeaderTimeout: 10 * time.Second,
	}

	// releases pending long-polls
	srv.RegisterOnShutdown(s.sessions.Close)

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server listening", "addr", s.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.sessions.Close()

		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// Close ends all sessions
func (s *Server) Close() {
	s.sessions.Close()
}
