package server

import (
	"io"
	"net/http"

	"github.com/0xReLogic/Beacon/internal/logging"
)

// Fixed response bodies.
const (
	HealthBody = "OK"
	ReadyBody  = "Ready"
	ErrorBody  = "Error occurred!"
)

// Route pairs a method and path with its handler. The table is fixed at
// construction.
type Route struct {
	Name    string
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns the static route table.
func (s *Server) Routes() []Route {
	return []Route{
		{Name: "home", Method: http.MethodGet, Path: "/", Handler: s.handleHome},
		{Name: "health", Method: http.MethodGet, Path: "/health", Handler: s.handleHealth},
		{Name: "ready", Method: http.MethodGet, Path: "/ready", Handler: s.handleReady},
		{Name: "metrics", Method: http.MethodGet, Path: "/metrics", Handler: s.handleMetrics},
		{Name: "error", Method: http.MethodGet, Path: "/error", Handler: s.handleError},
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	logging.FromContext(r.Context()).Info("home page accessed")
	writeText(w, http.StatusOK, s.greeting)
}

// probe handlers stay silent: orchestrators poll them constantly
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, HealthBody)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, ReadyBody)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, s.sampler.Sample().Text())
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request) {
	logging.FromContext(r.Context()).Error("error encountered")
	s.collector.SimulatedError()
	writeText(w, http.StatusInternalServerError, ErrorBody)
}
