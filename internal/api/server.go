// Package api serves workbook conversion and run history over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/darshan-rambhia/opticdeck/docs/swagger"
	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// Converter turns an uploaded workbook staged on disk into a deck and
// returns the deck's path. name is the client's file name. *pipeline.Pipeline
// satisfies it.
type Converter interface {
	RunUpload(ctx context.Context, inPath, name string) (*model.ReportRun, string, error)
}

// History lists recorded runs, newest first. *store.Store satisfies it.
type History interface {
	ListReports(limit int) ([]model.ReportRun, error)
}

// DefaultMaxUpload bounds the size of an uploaded workbook.
const DefaultMaxUpload = 64 << 20

// Server is the HTTP server for opticdeck.
type Server struct {
	conv      Converter
	history   History
	maxUpload int64
	mux       *http.ServeMux
	server    *http.Server
}

// NewServer creates a server. history may be nil, in which case the report
// listing answers 503. maxUpload <= 0 means DefaultMaxUpload.
func NewServer(addr string, conv Converter, history History, maxUpload int64) *Server {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	srv := &Server{
		conv:      conv,
		history:   history,
		maxUpload: maxUpload,
		mux:       http.NewServeMux(),
	}
	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:              addr,
		Handler:           SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(srv.mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		// Conversions wait on the insight provider.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("HTTP server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler returns the full handler stack, middleware included.
func (s *Server) Handler() http.Handler { return s.server.Handler }

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/reports", s.handleConvert)
	s.mux.HandleFunc("GET /api/reports", s.handleListReports)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Swagger UI
	s.mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}
