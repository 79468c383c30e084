// Package api exposes the adapter over HTTP: the oracle dispatcher on POST /,
// a health probe, and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/arbitration"
	"github.com/verdikta/external-adapter/internal/config"
	"github.com/verdikta/external-adapter/internal/monitoring"
)

// Server is the adapter's HTTP front.
type Server struct {
	cfg      *config.Config
	pipeline *arbitration.Pipeline
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	httpSrv  *http.Server
}

// NewServer wires the router and middleware.
func NewServer(cfg *config.Config, pipeline *arbitration.Pipeline, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		metrics:  metrics,
		logger:   logger,
	}

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the mux router. Exposed so tests can drive the server through
// httptest without binding a port.
func (s *Server) Router() *mux.Router {
	limiter := newInflightLimiter(s.cfg.MaxInflightRequests, s.metrics, s.logger)

	r := mux.NewRouter()
	r.Use(s.requestLogging)

	r.Handle("/", limiter.Middleware(http.HandlerFunc(s.handleEvaluate))).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	return r
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("🚀 adapter listening", zap.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains inflight requests within the context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
