package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const defaultShutdownTimeout = 15 * time.Second

type Runner struct {
	Logger          *zap.Logger
	ShutdownTimeout time.Duration
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log, ShutdownTimeout: defaultShutdownTimeout}
}

// WithSignals runs start with a context cancelled on SIGINT/SIGTERM and
// returns a process exit code. After a signal, start gets ShutdownTimeout to return.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.Run(ctx, start)
}

// Run is WithSignals without the signal wiring.
func (r *Runner) Run(ctx context.Context, start func(ctx context.Context) error) int {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
		timeout := r.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		select {
		case err := <-errCh:
			return r.exitCode(err)
		case <-time.After(timeout):
			r.Logger.Warn("shutdown timed out", zap.Duration("timeout", timeout))
			return 1
		}
	case err := <-errCh:
		return r.exitCode(err)
	}
}

func (r *Runner) exitCode(err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

func Exit(code int) {
	os.Exit(code)
}
