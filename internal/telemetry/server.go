package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 5 * time.Second

// Server exposes /health, /health/detailed and /metrics.
type Server struct {
	exporter *Exporter
	server   *http.Server
	logger   logger.Logger
}

func NewServer(exporter *Exporter, addr string, log logger.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		exporter: exporter,
		logger:   log,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.HandlerFor(exporter.Registry(), promhttp.HandlerOpts{}))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Telemetry server listening")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New().Wrap(ErrServerStart, err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return errors.New().Wrap(ErrServerShutdown, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, _ := s.exporter.Health()
	s.writeJSON(w, httpStatus(status), map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, _ *http.Request) {
	status, chips := s.exporter.Health()
	s.writeJSON(w, httpStatus(status), struct {
		Status HealthStatus `json:"status"`
		Chips  []ChipHealth `json:"chips"`
	}{
		Status: status,
		Chips:  chips,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write health response")
	}
}

func httpStatus(status HealthStatus) int {
	if status == StatusCritical {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
