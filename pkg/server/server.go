package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
	"github.com/Asenturisk/asentu-browser/pkg/logging"
	"github.com/Asenturisk/asentu-browser/pkg/navigate"
	"github.com/Asenturisk/asentu-browser/pkg/resolver"
	"github.com/Asenturisk/asentu-browser/pkg/telemetry"
)

// UnixScheme prefixes listen addresses naming a unix socket.
const UnixScheme = "unix://"

// DefaultShutdownTimeout bounds graceful shutdown once the serve context ends.
const DefaultShutdownTimeout = 10 * time.Second

// StatusReporter is implemented by resolvers that can describe their cache.
type StatusReporter interface {
	Status(ctx context.Context) (domain.CacheStatus, error)
}

// Server serves the resolver daemon API.
type Server struct {
	resolver  resolver.Resolver
	navigator *navigate.Navigator
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	shutdownTimeout time.Duration

	mu      sync.Mutex
	server  *http.Server
	running bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables Prometheus request metrics and the /metrics endpoint.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New returns a server for r.
func New(r resolver.Resolver, opts ...Option) *Server {
	s := &Server{
		resolver:        r,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Or(s.logger)
	s.navigator = navigate.New(r, s.logger)
	return s
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET(domain.PathResolve, s.route("resolve", s.handleResolve))
	router.GET(domain.PathCache, s.route("cache_status", s.handleCacheStatus))
	router.DELETE(domain.PathCache, s.route("cache_clear", s.handleCacheClear))
	router.GET(domain.PathNavigate, s.route("navigate", s.handleNavigate))
	router.GET(domain.PathHealth, s.route("health", s.handleHealth))
	if s.metrics != nil {
		router.Handler(http.MethodGet, domain.PathMetrics, s.metrics.Handler())
	}

	var h http.Handler = router
	h = s.accessLog(h)
	h = requestID(h)
	return otelhttp.NewHandler(h, "asentu.daemon")
}

// route wraps a handle with the per-route Prometheus middleware.
func (s *Server) route(name string, handle httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s.metrics.Middleware(name, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle(w, r, ps)
		})).ServeHTTP(w, r)
	}
}

// Listen opens a TCP listener for host:port or a unix socket for unix:///path.
// A stale socket file left by a previous run is removed first.
func Listen(addr string) (net.Listener, error) {
	if path, ok := strings.CutPrefix(addr, UnixScheme); ok {
		if path == "" {
			return nil, fmt.Errorf("listen %q: empty socket path", addr)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
		return net.Listen("unix", path)
	}
	return net.Listen("tcp", addr)
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := Listen(addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	srv := s.server
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("resolver daemon listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("resolver daemon shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
