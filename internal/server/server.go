package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/0xReLogic/Beacon/internal/logging"
	"github.com/0xReLogic/Beacon/internal/metrics"
	"github.com/0xReLogic/Beacon/internal/ratelimit"
	"github.com/0xReLogic/Beacon/internal/tracing"
)

var (
	// ErrAlreadyStarted is returned by Listen once the server has been bound.
	ErrAlreadyStarted = errors.New("server already started")
	// ErrNotListening is returned by Serve before a successful Listen.
	ErrNotListening = errors.New("server is not listening")
)

// State is the lifecycle state of the server.
type State int32

const (
	StateStopped State = iota
	StateServing
)

func (s State) String() string {
	switch s {
	case StateServing:
		return "serving"
	default:
		return "stopped"
	}
}

// Options configures a Server. Only Addr is required.
type Options struct {
	Addr     string
	Greeting string
	// PrometheusPath mounts the collector's exposition. Empty disables it.
	PrometheusPath string

	Logger         *zap.Logger
	Source         metrics.Source
	Collector      *metrics.Collector
	RateLimiter    *ratelimit.RateLimiter
	TracerProvider trace.TracerProvider
}

// Server serves the fixed operational routes.
type Server struct {
	logger     *zap.Logger
	greeting   string
	sampler    *metrics.Sampler
	collector  *metrics.Collector
	limiter    *ratelimit.RateLimiter
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	known      map[string]bool
	handler    http.Handler
	httpServer *http.Server

	started  atomic.Bool
	state    atomic.Int32
	mu       sync.Mutex
	listener net.Listener
}

// New builds the router and middleware chain. The route table is resolved here
// and never changes afterwards.
func New(opts Options) (*Server, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("server: listen address is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = noop.NewTracerProvider()
	}

	s := &Server{
		logger:     opts.Logger,
		greeting:   opts.Greeting,
		sampler:    metrics.NewSampler(opts.Source),
		collector:  opts.Collector,
		limiter:    opts.RateLimiter,
		tracer:     opts.TracerProvider.Tracer(tracing.InstrumentationName),
		propagator: tracing.Propagator(),
		known:      make(map[string]bool),
	}

	router := mux.NewRouter()
	for _, rt := range s.Routes() {
		router.HandleFunc(rt.Path, rt.Handler).Methods(rt.Method).Name(rt.Name)
		s.known[rt.Path] = true
	}
	if opts.PrometheusPath != "" {
		if s.known[opts.PrometheusPath] {
			return nil, fmt.Errorf("server: prometheus path %s collides with a fixed route", opts.PrometheusPath)
		}
		router.Handle(opts.PrometheusPath, s.collector.Handler()).Methods(http.MethodGet).Name("prometheus")
		s.known[opts.PrometheusPath] = true
	}

	s.handler = s.observe(s.requestScope(s.rateLimit(router)))
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(opts.Logger),
	}
	return s, nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// State reports whether the listener is bound.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen binds the configured address, moving the server to Serving.
// It succeeds at most once per Server.
func (s *Server) Listen() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.state.Store(int32(StateServing))

	logging.LogHTTPServerStart(s.logger, ln.Addr().String())
	return nil
}

// Serve accepts connections on the bound listener until Shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Start binds and serves, blocking until Shutdown.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown drains in-flight requests. The server cannot be started again.
func (s *Server) Shutdown(ctx context.Context) error {
	s.started.Store(true)
	defer s.state.Store(int32(StateStopped))
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
