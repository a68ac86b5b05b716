package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/recommend"
)

const maxBodyBytes = 1 << 20

// Server provides HTTP endpoints for health monitoring and the
// recommendation API.
type Server struct {
	monitor *Monitor
	service *recommend.Service
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates a new HTTP server listening on port.
func NewServer(monitor *Monitor, service *recommend.Service, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		service: service,
		log:     logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/recommendations", s.handleRecommend)
	mux.HandleFunc("POST /v1/calculate", s.handleCalculate)

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Report(r.Context())

	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Report(r.Context()))
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.service.Recommend(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var cfg domain.BuildConfig
	if !s.decode(w, r, &cfg) {
		return
	}

	stats, err := s.service.Calculator().Calculate(cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Error     string             `json:"error"`
	Field     string             `json:"field,omitempty"`
	Stat      string             `json:"stat,omitempty"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		vErr *domain.ValidationError
		cErr *domain.CalculationError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: vErr.Error(), Field: vErr.Field})
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: cErr.Error(), Stat: cErr.Stat, Breakdown: cErr.Breakdown})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
