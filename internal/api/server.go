package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"dronematch/internal/auth"
	"dronematch/internal/config"
	"dronematch/internal/logger"
	"dronematch/internal/metrics"
	"dronematch/internal/opt"
	"dronematch/internal/store"
	"dronematch/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Broker   EventBroker
	Log      logger.Logger
	Defaults opt.MatchConfig
	Hooks    *webhooks.Publisher
	Auth     *auth.Verifier

	limiter    *rate.Limiter
	maxBody    int64
	hookWorker *webhooks.Worker
	pingEvery  time.Duration

	// solves running in the background; base is cancelled by Shutdown
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Server.
type Option func(*Server)

// WithStore replaces the store picked from the configuration.
func WithStore(st store.Store) Option { return func(s *Server) { s.Store = st } }

// WithBroker replaces the broker picked from the configuration.
func WithBroker(b EventBroker) Option { return func(s *Server) { s.Broker = b } }

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option { return func(s *Server) { s.Log = l } }

// NewServer creates a Server. An empty database url keeps matches in memory
// and an empty redis url fans monitor events out in process.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	s := &Server{
		Log:       logger.NopLogger{},
		Defaults:  cfg.Match,
		Auth:      auth.NewVerifier(cfg.Auth),
		maxBody:   cfg.Server.MaxBodyBytes,
		pingEvery: wsPingEvery,
	}
	for _, o := range opts {
		o(s)
	}
	if s.Store == nil {
		if cfg.Database.URL == "" {
			s.Store = store.NewMemory()
		} else {
			pg, err := store.NewPostgres(cfg.Database.URL)
			if err != nil {
				return nil, fmt.Errorf("open postgres: %w", err)
			}
			if cfg.Database.Migrate {
				if err := pg.Migrate(context.Background()); err != nil {
					return nil, err
				}
			}
			s.Store = pg
		}
	}
	if s.Broker == nil {
		if cfg.Redis.URL != "" {
			rb, err := NewRedisBroker(cfg.Redis.URL, s.Log)
			if err != nil {
				s.Log.Warnf("redis broker unavailable, using in-process fan-out: %v", err)
				s.Broker = NewBroker()
			} else {
				s.Broker = rb
			}
		} else {
			s.Broker = NewBroker()
		}
	}
	if cfg.Webhooks.URL != "" {
		s.hookWorker = webhooks.NewWorker(cfg.Webhooks.MaxAttempts, s.Log)
		s.Hooks = webhooks.NewPublisher(cfg.Webhooks.URL, cfg.Webhooks.Secret, s.hookWorker)
		s.hookWorker.Start()
	}
	if cfg.RateLimit.RPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	metrics.RegisterDefault()
	return s, nil
}

// Routes returns the service handler with logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Matches
	mux.HandleFunc("/v1/matches", s.MatchesHandler)
	mux.HandleFunc("/v1/matches/", s.MatchByIDHandler) // includes /monitor, /stream

	// Admin
	mux.HandleFunc("/v1/admin/match-config", s.AdminMatchConfigHandler)

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.logMiddleware(mux)
}

// Shutdown cancels background solves and waits for them to persist their
// best result, or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.hookWorker != nil {
		s.hookWorker.Stop()
	}
	if c, ok := s.Broker.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if c, ok := s.Store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// allow reports whether a solve may start now.
func (s *Server) allow() bool {
	if s.limiter == nil {
		return true
	}
	if s.limiter.Allow() {
		return true
	}
	metrics.RateLimited.Inc()
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack lets the monitor stream upgrade through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		path := routeLabel(r.URL.Path)
		code := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(dur.Seconds())
		s.Log.Debugw("http request", map[string]any{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": dur.String(),
		})
	})
}
