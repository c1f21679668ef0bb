package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storyhub/services/reader/internal/progress"
	"github.com/example/storyhub/services/reader/internal/store"
)

func TestFlusher_FlushesOnTick(t *testing.T) {
	cache := progress.NewCache(zap.NewNop())
	db := store.NewInMemoryProgressStore()
	if err := cache.Update(uuid.NewString(), uuid.NewString(), 3); err != nil {
		t.Fatalf("update: %v", err)
	}

	f := NewFlusher(cache, db, 10*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for db.Len() == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("expected a tick to flush the cache")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestFlusher_FinalFlushOnShutdown(t *testing.T) {
	cache := progress.NewCache(zap.NewNop())
	db := store.NewInMemoryProgressStore()

	f := NewFlusher(cache, db, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	if err := cache.Update(uuid.NewString(), uuid.NewString(), 8); err != nil {
		t.Fatalf("update: %v", err)
	}
	cancel()
	<-done

	if db.Len() != 1 {
		t.Fatalf("expected shutdown flush to persist 1 record, got %d", db.Len())
	}
}

func TestFlusher_FailureIsSwallowed(t *testing.T) {
	cache := progress.NewCache(zap.NewNop())
	db := store.NewInMemoryProgressStore()
	db.FailWith = errors.New("store down")
	if err := cache.Update(uuid.NewString(), uuid.NewString(), 2); err != nil {
		t.Fatalf("update: %v", err)
	}

	f := NewFlusher(cache, db, time.Hour, zap.NewNop())
	f.flushOnce(context.Background(), "test")

	if cache.Len() != 1 {
		t.Fatal("cache must keep entries after a failed flush")
	}
}

func TestNewFlusher_DefaultInterval(t *testing.T) {
	f := NewFlusher(progress.NewCache(nil), store.NewInMemoryProgressStore(), 0, zap.NewNop())
	if f.Interval != DefaultFlushInterval {
		t.Fatalf("expected %s, got %s", DefaultFlushInterval, f.Interval)
	}
}
