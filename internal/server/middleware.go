package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/0xReLogic/Beacon/internal/logging"
	"github.com/0xReLogic/Beacon/internal/tracing"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

const (
	unmatchedRoute = "unmatched"
	otherMethod    = "other"
)

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodConnect: true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// routeLabel bounds metric and span cardinality to the known paths.
func (s *Server) routeLabel(r *http.Request) string {
	if s.known[r.URL.Path] {
		return r.URL.Path
	}
	return unmatchedRoute
}

// methodLabel folds non-standard methods into one label value.
func methodLabel(method string) string {
	if knownMethods[method] {
		return method
	}
	return otherMethod
}

// observe wraps every request, matched or not, in a span and records it.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := s.routeLabel(r)
		method := methodLabel(r.Method)
		ctx := s.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracer.Start(ctx, method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.String("http.user_agent", r.UserAgent()),
		)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		latency := time.Since(start)

		span.SetAttributes(
			attribute.Int("http.status_code", rec.status),
			attribute.Int64("http.response.size", int64(rec.size)),
		)
		if rec.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		s.collector.ObserveRequest(route, method, strconv.Itoa(rec.status), latency.Seconds())
	})
}

// requestScope attaches a request ID and a request-scoped logger to the context.
func (s *Server) requestScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				s.logger.Warn("request_id_generation_failed", zap.Error(err))
			} else {
				reqID = id.String()
			}
		}

		fields := make([]zap.Field, 0, 2)
		if reqID != "" {
			w.Header().Set(RequestIDHeader, reqID)
			fields = append(fields, zap.String("request_id", reqID))
		}
		if traceID := tracing.TraceIDFromContext(r.Context()); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}

		ctx := logging.WithLogger(r.Context(), s.logger.With(fields...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit rejects requests to limited routes once their bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if s.limiter.Limits(route) && !s.limiter.Allow(route) {
			s.collector.RateLimited(route)
			logging.LogRateLimited(r.Context(), route)
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
