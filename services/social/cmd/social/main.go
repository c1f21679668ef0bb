package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/internal/platform/auth"
	"github.com/example/storyhub/internal/platform/config"
	"github.com/example/storyhub/internal/platform/db"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/internal/platform/logging"
	"github.com/example/storyhub/internal/platform/natsconn"
	"github.com/example/storyhub/internal/platform/run"
	socialconfig "github.com/example/storyhub/services/social/internal/config"
	"github.com/example/storyhub/services/social/internal/handlers"
	"github.com/example/storyhub/services/social/internal/store"
	"github.com/example/storyhub/services/social/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	comments, closePool := initComments(cfg, log)
	if closePool != nil {
		defer closePool()
	}

	// NATS is optional: without it comments of deleted stories stay until
	// the consumer catches up on the next start.
	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
	if err != nil {
		log.Warn("nats unavailable, story events and analytics disabled", zap.Error(err))
	} else {
		defer nc.Close()
	}

	pub, err := analytics.FromConn(nc, log)
	if err != nil {
		log.Warn("analytics stream unavailable, analytics disabled", zap.Error(err))
		pub = analytics.New(nil, log)
	}

	consumerCfg := socialconfig.LoadConsumer()
	consumer := worker.NewStoryEventsConsumer(comments, log, consumerCfg.BatchSize, consumerCfg.MaxWait)

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{Logger: log, RateLimitRPM: cfg.HTTP.RateLimitRPM})
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(verifier))
		r.Get("/v1/stories/{story_id}/comments", handlers.ListComments(comments))
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/stories/{story_id}/comments", handlers.CreateComment(comments, pub))
		r.Put("/v1/comments/{comment_id}", handlers.UpdateComment(comments))
		r.Delete("/v1/comments/{comment_id}", handlers.DeleteComment(comments))
		r.Post("/v1/comments/{comment_id}/like", handlers.LikeComment(comments))
		r.Delete("/v1/comments/{comment_id}/like", handlers.UnlikeComment(comments))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if nc != nil {
			go func() {
				if err := consumer.Run(ctx, nc); err != nil && ctx.Err() == nil {
					log.Error("story events consumer stopped", zap.Error(err))
				}
			}()
		}

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

// initComments selects the CommentStore backend.
// In production (APP_ENV=production) it requires a working Postgres connection
// and terminates the process otherwise.
func initComments(cfg config.AppConfig, log *zap.Logger) (store.CommentStore, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory comment store (development only)")
		return store.NewInMemoryCommentStore(), nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory comment store", zap.Error(err))
		return store.NewInMemoryCommentStore(), nil
	}

	cs := store.NewPostgresCommentStore(pool)
	if err := cs.EnsureSchema(ctx); err != nil {
		pool.Close()
		log.Error("comments schema", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}

	log.Info("comments store: postgres")
	return cs, pool.Close
}
