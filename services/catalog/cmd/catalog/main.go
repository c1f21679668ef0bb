package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/internal/platform/auth"
	"github.com/example/storyhub/internal/platform/config"
	"github.com/example/storyhub/internal/platform/db"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/internal/platform/logging"
	"github.com/example/storyhub/internal/platform/natsconn"
	"github.com/example/storyhub/internal/platform/run"
	catalogconfig "github.com/example/storyhub/services/catalog/internal/config"
	"github.com/example/storyhub/services/catalog/internal/handlers"
	"github.com/example/storyhub/services/catalog/internal/outbox"
	"github.com/example/storyhub/services/catalog/internal/store"
)

// Story and genre changes both alter the filter options.
const catalogEventsSubject = "catalog.>"

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

	outboxCfg := catalogconfig.LoadOutbox()
	cacheCfg := catalogconfig.LoadCache()

	stories, pool := initStories(cfg, log)
	if pool != nil {
		defer pool.Close()
	}

	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
	if err != nil {
		if cfg.IsProduction() && pool != nil {
			log.Error("nats is required in production to relay the outbox", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("nats unavailable, outbox relay and analytics disabled", zap.Error(err))
	} else {
		defer nc.Close()
	}

	pub, err := analytics.FromConn(nc, log)
	if err != nil {
		log.Warn("analytics stream unavailable, analytics disabled", zap.Error(err))
		pub = analytics.New(nil, log)
	}

	var publisher *outbox.Publisher
	if pool != nil && nc != nil {
		publisher, err = outbox.NewPublisher(log, pool, nc, outboxCfg.BatchSize, outboxCfg.PollInterval)
		if err != nil {
			log.Error("outbox publisher", zap.Error(err))
			run.Exit(1)
		}
	}

	optionsCache := handlers.NewTTLCache(cacheCfg.OptionsTTL, nc, catalogEventsSubject, log)
	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{Logger: log, RateLimitRPM: cfg.HTTP.RateLimitRPM})
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(verifier))
		r.Get("/v1/filter/stories", handlers.SearchStories(stories, pub))
		r.Get("/v1/filter/options", handlers.FilterOptions(stories, optionsCache))
		r.Get("/v1/stories/{story_id}", handlers.GetStory(stories, pub))
		r.Get("/v1/stories/{story_id}/chapters", handlers.ListChapters(stories))
		r.Get("/v1/chapters/{chapter_id}", handlers.GetChapter(stories, pub))
		r.Get("/v1/genres", handlers.ListGenres(stories))
		r.Get("/v1/genres/{genre_id}", handlers.GetGenre(stories))
		r.Get("/v1/genres/{genre_id}/stories", handlers.GenreStories(stories, stories))
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier), auth.RequireAdmin)
		r.Post("/v1/admin/stories", handlers.CreateStory(stories, optionsCache))
		r.Put("/v1/admin/stories/{story_id}", handlers.UpdateStory(stories, optionsCache))
		r.Delete("/v1/admin/stories/{story_id}", handlers.DeleteStory(stories, optionsCache))

		r.Post("/v1/admin/stories/{story_id}/chapters", handlers.CreateChapter(stories))
		r.Put("/v1/admin/chapters/{chapter_id}", handlers.UpdateChapter(stories))
		r.Delete("/v1/admin/chapters/{chapter_id}", handlers.DeleteChapter(stories))

		r.Post("/v1/admin/genres", handlers.CreateGenre(stories, optionsCache))
		r.Put("/v1/admin/genres/{genre_id}", handlers.RenameGenre(stories, optionsCache))
		r.Delete("/v1/admin/genres/{genre_id}", handlers.DeleteGenre(stories, optionsCache))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if publisher != nil {
			go func() {
				if err := publisher.Run(ctx); err != nil {
					log.Error("outbox publisher stopped", zap.Error(err))
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

// initStories selects the catalog store backend. The pool is nil for the
// in-memory store. In production (APP_ENV=production) Postgres is required.
func initStories(cfg config.AppConfig, log *zap.Logger) (store.Catalog, *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory story store (development only)")
		return store.NewInMemoryStoryStore(), nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory story store", zap.Error(err))
		return store.NewInMemoryStoryStore(), nil
	}

	ps := store.NewPostgresStoryStore(pool)
	if err := ps.EnsureSchema(ctx); err != nil {
		pool.Close()
		log.Error("catalog schema", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}

	log.Info("story store: postgres")
	return ps, pool
}
