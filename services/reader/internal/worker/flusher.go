package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/storyhub/services/reader/internal/progress"
)

const (
	DefaultFlushInterval     = 5 * time.Minute
	defaultFinalFlushTimeout = 10 * time.Second
)

// Flusher periodically writes the progress cache back to the store.
// A failed tick is logged and left for the next tick; nothing is retried in between.
type Flusher struct {
	Cache    *progress.Cache
	Sink     progress.Sink
	Interval time.Duration
	Log      *zap.Logger

	// FinalFlushTimeout bounds the flush attempted when Run's context ends.
	FinalFlushTimeout time.Duration
}

func NewFlusher(cache *progress.Cache, sink progress.Sink, interval time.Duration, log *zap.Logger) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{
		Cache:             cache,
		Sink:              sink,
		Interval:          interval,
		Log:               log,
		FinalFlushTimeout: defaultFinalFlushTimeout,
	}
}

// Run blocks until ctx is done, flushing every Interval, then flushes once more.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()

	f.Log.Info("progress flusher started", zap.Duration("interval", f.Interval))
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), f.FinalFlushTimeout)
			f.flushOnce(final, "shutdown")
			cancel()
			return
		case <-ticker.C:
			f.flushOnce(ctx, "tick")
		}
	}
}

func (f *Flusher) flushOnce(ctx context.Context, reason string) {
	n, err := f.Cache.Flush(ctx, f.Sink)
	if err != nil {
		f.Log.Warn("progress flush failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	f.Log.Debug("progress flushed", zap.String("reason", reason), zap.Int("records", n))
}
