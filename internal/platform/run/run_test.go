package run

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRun_StartErrorExitsNonZero(t *testing.T) {
	r := New(zap.NewNop())
	code := r.Run(context.Background(), func(context.Context) error { return errors.New("boom") })
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestRun_ServerClosedIsClean(t *testing.T) {
	r := New(zap.NewNop())
	code := r.Run(context.Background(), func(context.Context) error { return http.ErrServerClosed })
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestRun_WaitsForStartAfterCancel(t *testing.T) {
	r := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cleaned := false
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	code := r.Run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		cleaned = true
		return nil
	})
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !cleaned {
		t.Fatal("expected start to finish its cleanup before Run returned")
	}
}

func TestRun_ShutdownTimeout(t *testing.T) {
	r := New(zap.NewNop())
	r.ShutdownTimeout = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := make(chan struct{})
	defer close(block)
	code := r.Run(ctx, func(context.Context) error {
		<-block
		return nil
	})
	if code != 1 {
		t.Fatalf("expected exit code 1 on shutdown timeout, got %d", code)
	}
}
