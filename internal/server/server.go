// Package server exposes the pipeline and task store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/josephgoksu/taskmail/internal/auth"
	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/pipeline"
	"github.com/josephgoksu/taskmail/internal/task"
)

// DefaultMaxEmailBytes caps an uploaded email.
const DefaultMaxEmailBytes = 10 << 20

// Store is the slice of the task store the handlers read and write.
type Store interface {
	ListTasks(ctx context.Context, owner string) ([]task.Task, error)
	UpdateTask(ctx context.Context, id int64, owner string, changes task.Changes) (task.Task, error)
	GetPreferences(ctx context.Context, owner string) (memory.Preferences, error)
	Ping(ctx context.Context) error
}

// Pipeline runs ingestion and consolidation.
type Pipeline interface {
	Ingest(ctx context.Context, owner string, raw []byte) (pipeline.Result, error)
	Consolidate(ctx context.Context, owner string) (pipeline.Result, error)
}

// Config holds listener settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	MaxEmailBytes  int64
}

type Server struct {
	store    Store
	pipeline Pipeline
	auth     auth.Backend
	logger   *slog.Logger
	origins  map[string]struct{}
	maxBytes int64
	now      func() time.Time
	server   *http.Server
}

// New wires the handlers. Nothing listens until ListenAndServe.
func New(cfg Config, store Store, p Pipeline, authBackend auth.Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEmailBytes <= 0 {
		cfg.MaxEmailBytes = DefaultMaxEmailBytes
	}
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[o] = struct{}{}
	}

	s := &Server{
		store:    store,
		pipeline: p,
		auth:     authBackend,
		logger:   logger,
		origins:  origins,
		maxBytes: cfg.MaxEmailBytes,
		now:      time.Now,
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.registerRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.server.Addr, "auth", s.auth.Name())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
