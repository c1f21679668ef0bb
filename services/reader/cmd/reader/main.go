package main

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/internal/platform/auth"
	"github.com/example/storyhub/internal/platform/config"
	"github.com/example/storyhub/internal/platform/db"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/internal/platform/logging"
	"github.com/example/storyhub/internal/platform/natsconn"
	"github.com/example/storyhub/internal/platform/run"
	readerconfig "github.com/example/storyhub/services/reader/internal/config"
	"github.com/example/storyhub/services/reader/internal/handlers"
	"github.com/example/storyhub/services/reader/internal/progress"
	"github.com/example/storyhub/services/reader/internal/store"
	"github.com/example/storyhub/services/reader/internal/worker"
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

	readerCfg := readerconfig.Load()

	progressStore, closePool := initProgressStore(cfg, log)
	if closePool != nil {
		defer closePool()
	}

	// gRPC health stays NOT_SERVING until the cache is warm.
	lis, err := net.Listen("tcp", readerCfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)
	go func() {
		log.Info("grpc server starting", zap.String("addr", readerCfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()

	cache := progress.NewCache(log)
	var ready atomic.Bool
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), time.Minute)
	cache.Load(loadCtx, progressStore)
	cancelLoad()
	ready.Store(true)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
	if err != nil {
		log.Warn("nats unavailable, analytics disabled", zap.Error(err))
	} else {
		defer nc.Close()
	}
	pub, err := analytics.FromConn(nc, log)
	if err != nil {
		log.Warn("analytics stream unavailable, analytics disabled", zap.Error(err))
		pub = analytics.New(nil, log)
	}

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		Logger:       log,
		RateLimitRPM: cfg.HTTP.RateLimitRPM,
		ReadyFunc: func() error {
			if !ready.Load() {
				return errors.New("progress cache not loaded")
			}
			return nil
		},
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/progress", handlers.UpdateProgress(cache, pub))
		r.Get("/v1/progress/{user_id}/{story_id}", handlers.GetProgress(cache))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})
	flusher := worker.NewFlusher(cache, progressStore, readerCfg.FlushInterval, log)

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		flushed := make(chan struct{})
		go func() {
			flusher.Run(ctx)
			close(flushed)
		}()

		go func() {
			<-ctx.Done()
			healthSrv.Shutdown()
			stopped := make(chan struct{})
			go func() {
				grpcSrv.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(10 * time.Second):
				grpcSrv.Stop()
			}
			_ = srv.Shutdown(context.Background())
		}()

		err := srv.Start(log)
		<-flushed
		return err
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initProgressStore selects the ProgressStore backend.
// In production (APP_ENV=production) it requires a working Postgres connection
// and terminates the process otherwise.
func initProgressStore(cfg config.AppConfig, log *zap.Logger) (store.ProgressStore, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory progress store (development only)")
		return store.NewInMemoryProgressStore(), nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory progress store", zap.Error(err))
		return store.NewInMemoryProgressStore(), nil
	}

	ps := store.NewPostgresProgressStore(pool)
	if err := ps.EnsureSchema(ctx); err != nil {
		pool.Close()
		log.Error("progress schema", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}

	log.Info("progress store: postgres")
	return ps, pool.Close
}
