package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/storyhub/internal/platform/auth"
	platformconfig "github.com/example/storyhub/internal/platform/config"
	"github.com/example/storyhub/internal/platform/db"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/internal/platform/logging"
	"github.com/example/storyhub/internal/platform/natsconn"
	"github.com/example/storyhub/internal/platform/run"
	"github.com/example/storyhub/services/analytics/internal/config"
	"github.com/example/storyhub/services/analytics/internal/consumer"
	"github.com/example/storyhub/services/analytics/internal/dispatch"
	"github.com/example/storyhub/services/analytics/internal/handlers"
	"github.com/example/storyhub/services/analytics/internal/sink"
)

func main() {
	cfg, err := platformconfig.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	consumerCfg := config.Load()

	events, closePool := initSink(cfg, log)
	if closePool != nil {
		defer closePool()
	}

	// The consumer is the whole point of this service, so NATS is required.
	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}
	defer nc.Close()

	c, err := consumer.New(nc, dispatch.New(log), events, consumerCfg.Durable, consumerCfg.BatchSize, consumerCfg.MaxWait, log)
	if err != nil {
		log.Error("consumer init", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{Logger: log, RateLimitRPM: cfg.HTTP.RateLimitRPM})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier), auth.RequireAdmin)
		r.Get("/v1/admin/analytics/stories/top", handlers.TopStories(events))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			log.Info("analytics consumer started", zap.String("durable", consumerCfg.Durable))
			c.Run(ctx)
			log.Info("analytics consumer stopped")
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initSink selects the EventSink backend. In production (APP_ENV=production)
// Postgres is required.
func initSink(cfg platformconfig.AppConfig, log *zap.Logger) (sink.EventSink, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory analytics sink (development only)")
		return sink.NewMemorySink(), nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory analytics sink", zap.Error(err))
		return sink.NewMemorySink(), nil
	}

	ps := sink.NewPostgresSink(pool)
	if err := ps.EnsureSchema(ctx); err != nil {
		pool.Close()
		log.Error("analytics schema", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}

	log.Info("analytics sink: postgres")
	return ps, pool.Close
}
