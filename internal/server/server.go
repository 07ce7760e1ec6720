// Package server implements the HTTP preview server behind `kintree serve`.
// It renders the snapshot on demand through the pipeline runner, so the
// layout/artifact cache makes repeat requests cheap.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/kintree/pkg/pipeline"
)

// Config holds the server settings supplied by the CLI.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Input is the path of the snapshot file to serve.
	Input string
	// Width and Height describe the layout frame.
	Width  float64
	Height float64
}

// Server serves a rendered family tree over HTTP.
type Server struct {
	cfg    Config
	runner *pipeline.Runner
	logger *log.Logger
}

// New creates a server that renders cfg.Input through the given runner.
func New(cfg Config, runner *pipeline.Runner, logger *log.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{cfg: cfg, runner: runner, logger: logger}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/tree.svg", s.handleSVG)
	r.Get("/tree.json", s.handleJSON)
	r.Get("/healthz", s.handleHealth)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving family tree", "addr", s.cfg.Addr, "input", s.cfg.Input)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// logRequests logs method, path, status and duration for every request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// options builds pipeline options for a single request, honoring the
// width/height/detailed/refresh query parameters.
func (s *Server) options(r *http.Request, format string) pipeline.Options {
	opts := pipeline.Options{
		Input:   s.cfg.Input,
		Width:   s.cfg.Width,
		Height:  s.cfg.Height,
		Formats: []string{format},
		Logger:  s.logger,
	}
	q := r.URL.Query()
	if w, err := strconv.ParseFloat(q.Get("width"), 64); err == nil && w > 0 {
		opts.Width = w
	}
	if h, err := strconv.ParseFloat(q.Get("height"), 64); err == nil && h > 0 {
		opts.Height = h
	}
	if q.Get("detailed") == "true" {
		opts.Detailed = true
	}
	if q.Get("refresh") == "true" {
		opts.Refresh = true
	}
	opts.Title = q.Get("title")
	return opts
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, format, contentType string) {
	opts := s.options(r, format)
	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.logger.Error("render failed", "format", format, "error", err)
		http.Error(w, "failed to render tree", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(result.Artifacts[format])
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, pipeline.FormatSVG, "image/svg+xml")
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, pipeline.FormatJSON, "application/json")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	opts := s.options(r, pipeline.FormatSVG)
	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.logger.Error("render failed", "error", err)
		http.Error(w, "failed to render tree", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexPage, result.Stats.PersonCount, result.Artifacts[pipeline.FormatSVG])
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>kintree</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 2rem; background: #fafaf9; }
  header { display: flex; align-items: baseline; gap: 1rem; margin-bottom: 1rem; }
  h1 { margin: 0; font-size: 1.4rem; }
  .count { color: #6b7280; }
  .diagram { background: white; border: 1px solid #e5e7eb; border-radius: 8px; padding: 1rem; }
  .diagram svg { width: 100%%; height: auto; }
</style>
</head>
<body>
<header>
  <h1>kintree</h1>
  <span class="count">%d people</span>
</header>
<div class="diagram">%s</div>
</body>
</html>
`
