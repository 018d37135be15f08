package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gestionale/internal/analytics"
	applog "gestionale/internal/log"
	"gestionale/internal/metrics"
	"gestionale/internal/middleware/ratelimit"
	"gestionale/internal/middleware/security"
	"gestionale/internal/middleware/trace"
	"gestionale/internal/services"
)

// Engine is the model-building surface the handlers need.
type Engine interface {
	AnnualModel(ctx context.Context, year int, withFiscal bool) (*analytics.AnnualModel, error)
	FiscalModel(ctx context.Context, year int) (*analytics.FiscalModel, error)
	HistoricalModel(ctx context.Context) (*analytics.HistoricalModel, error)
	PaymentAging(ctx context.Context, year int) ([]services.AgingLine, error)
}

// Options tunes the server. Zero values get defaults.
type Options struct {
	Metrics           *metrics.Registry
	RequestsPerMinute int

	// Ready reports whether downstream dependencies answer; wired to
	// the readiness endpoint.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server

	engine     Engine
	metrics    *metrics.Registry
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	structured *applog.StructuredLogger
	ready      func(ctx context.Context) error

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, engine Engine, logger *applog.Logger, opts Options) *Server {
	s := &Server{
		engine:     engine,
		metrics:    opts.Metrics,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector:   security.NewDetector(),
		structured: applog.NewStructuredLogger(logger),
		ready:      opts.Ready,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/annual", s.api(s.handleAnnual))
	mux.HandleFunc("GET /api/fiscal", s.api(s.handleFiscal))
	mux.HandleFunc("GET /api/history", s.api(s.handleHistory))
	mux.HandleFunc("GET /api/history/projection", s.api(s.handleProjection))
	mux.HandleFunc("GET /api/aging", s.api(s.handleAging))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	handler := trace.Middleware(headers.Middleware(mux))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// api wraps a model handler with rate limiting, threat detection,
// request logging and metrics.
func (s *Server) api(next func(r *http.Request) *JSONResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := s.detector.ExtractClientIP(r)

		s.structured.LogHTTPStart(ctx, r, clientIP)

		if s.detector.DetectSuspiciousRequest(r) {
			s.structured.LogError(ctx, "Suspicious request detected", nil,
				applog.ComponentSecurity, applog.OpValidate,
				applog.NewFields().WithClientIP(clientIP))
		}

		if !s.limiter.Allow(clientIP) {
			s.finish(w, r, TooManyRequests(), clientIP, start)
			return
		}

		s.finish(w, r, next(r), clientIP, start)
	}
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request, resp *JSONResponse, clientIP string, start time.Time) {
	rec := trace.NewStatusRecorder(w)
	resp.Write(rec)

	duration := time.Since(start)
	s.structured.LogHTTPEnd(r.Context(), r, rec.Status, duration.Milliseconds(), clientIP)
	if s.metrics != nil {
		s.metrics.ObserveHTTP(r.Method, r.URL.Path, rec.Status, duration)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			Error(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the limiter's cleanup loop and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
