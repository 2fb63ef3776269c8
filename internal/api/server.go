package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vrptw/internal/config"
	"vrptw/internal/metrics"
	"vrptw/internal/store"
	"vrptw/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Broker EventBroker
	Runner *Runner
	Config config.Config
	Log    *slog.Logger
}

// NewServer creates a Server. If no database URL is configured it uses the
// in-memory store; without a Redis URL events stay in process.
func NewServer(cfg config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	var s store.Store
	if strings.TrimSpace(cfg.Server.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.Server.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := sp.Migrate(context.Background()); err != nil {
			return nil, err
		}
		s = sp
	}
	var broker EventBroker = NewBroker()
	if cfg.Server.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.Server.RedisURL)
		if err != nil {
			log.Warn("redis broker unavailable, using in-process broker", "err", err)
		} else {
			broker = rb
		}
	}
	pub := webhooks.NewPublisher(s)
	return &Server{
		Store:  s,
		Pub:    pub,
		Broker: broker,
		Runner: NewRunner(s, broker, pub, cfg.Server.PersistEvery, log),
		Config: cfg,
		Log:    log,
	}, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Config.Webhooks.MaxAttempts, s.Log)
}

// Routes returns the service's HTTP handler with request logging and metrics.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	// Runs
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /snapshots, /metrics, /events, /ws
	mux.HandleFunc("/v1/strategies", s.StrategiesHandler)

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/version", s.DebugJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.logMiddleware(mux)
}
