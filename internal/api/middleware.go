package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/monitoring"
)

// inflightLimiter applies the adapter's only backpressure: a counting
// semaphore over evaluations. There is no queue; a saturated adapter answers
// 503 and lets the oracle retry.
type inflightLimiter struct {
	sem     chan struct{}
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func newInflightLimiter(max int, metrics *monitoring.Metrics, logger *zap.Logger) *inflightLimiter {
	if max <= 0 {
		max = 32
	}
	return &inflightLimiter{
		sem:     make(chan struct{}, max),
		metrics: metrics,
		logger:  logger,
	}
}

// Middleware admits a request if a slot is free, otherwise rejects
// immediately.
func (l *inflightLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
			next.ServeHTTP(w, r)
		default:
			l.metrics.InflightRejected.Inc()
			l.logger.Warn("inflight limit reached, rejecting request",
				zap.Int("limit", cap(l.sem)))
			http.Error(w, `{"statusCode":503,"data":{"error":"adapter at capacity"}}`, http.StatusServiceUnavailable)
		}
	})
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
