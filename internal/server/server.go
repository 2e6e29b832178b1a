// Package server exposes graph compilation over HTTP.
//
//	GET    /graph/plan/{entity}  resolve the request and return the plan
//	GET    /graph/sql/{entity}   plan plus the rendered root statement
//	DELETE /graph/cache          drop cached key lookups and payloads
//	GET    /metrics              Prometheus exposition
//
// Query parameters form the resolver and assist request: graph, graph_key,
// graph_cipher, page, length, order_by, has and the entity's queryable
// columns.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitsmind/graphsql/internal/entity"
	"github.com/bitsmind/graphsql/internal/metrics"
	"github.com/bitsmind/graphsql/internal/plan"
	"github.com/bitsmind/graphsql/internal/querysql"
	"github.com/bitsmind/graphsql/internal/resolve"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and lifecycle logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry serves reg on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// Server routes HTTP requests to the resolver and compilers.
type Server struct {
	entities entity.Provider
	resolver *resolve.Resolver
	compiler *plan.Compiler
	sql      *querysql.SQLCompiler
	registry *prometheus.Registry
	logger   *slog.Logger
}

// New returns a server compiling against entities.
func New(entities entity.Provider, resolver *resolve.Resolver, opts ...Option) *Server {
	s := &Server{
		entities: entities,
		resolver: resolver,
		compiler: plan.NewCompiler(entities),
		sql:      querysql.NewSQLCompiler(entities),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/graph", func(r chi.Router) {
		r.Get("/plan/{entity}", s.handlePlan)
		r.Get("/sql/{entity}", s.handleSQL)
		r.Delete("/cache", s.handleClearCache)
	})
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))
	}
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
