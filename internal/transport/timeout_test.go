package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Fantasim/vaultscan/internal/config"
)

func TestCallWithTimeout_ReturnsValue(t *testing.T) {
	got, err := CallWithTimeout(context.Background(), time.Second, func(_ context.Context) (string, error) {
		return "0x1", nil
	})
	if err != nil {
		t.Fatalf("CallWithTimeout() error = %v", err)
	}
	if got != "0x1" {
		t.Errorf("CallWithTimeout() = %q, want 0x1", got)
	}
}

func TestCallWithTimeout_PassesThroughError(t *testing.T) {
	want := errors.New("connection refused")
	_, err := CallWithTimeout(context.Background(), time.Second, func(_ context.Context) (int, error) {
		return 0, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("CallWithTimeout() error = %v, want %v", err, want)
	}
	if errors.Is(err, config.ErrProviderTimeout) {
		t.Error("fast failure must not be reported as timeout")
	}
}

func TestCallWithTimeout_AbandonsSlowCall(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := CallWithTimeout(context.Background(), 50*time.Millisecond, func(_ context.Context) (int, error) {
		// Ignores its context on purpose: the call must still be abandoned.
		<-release
		return 1, nil
	})
	elapsed := time.Since(start)

	if !errors.Is(err, config.ErrProviderTimeout) {
		t.Fatalf("CallWithTimeout() error = %v, want ErrProviderTimeout", err)
	}
	if elapsed > time.Second {
		t.Errorf("CallWithTimeout() took %s, expected to return near the 50ms deadline", elapsed)
	}
}

func TestCallWithTimeout_ContextAwareOpReportsTimeout(t *testing.T) {
	_, err := CallWithTimeout(context.Background(), 30*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, config.ErrProviderTimeout) {
		t.Fatalf("CallWithTimeout() error = %v, want ErrProviderTimeout", err)
	}
}

func TestCallWithTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CallWithTimeout(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("CallWithTimeout() error = %v, want context.Canceled", err)
	}
}

func TestCallWithTimeout_RecoversPanic(t *testing.T) {
	_, err := CallWithTimeout(context.Background(), time.Second, func(_ context.Context) (int, error) {
		panic("nil map write")
	})
	if !errors.Is(err, config.ErrProviderUnavailable) {
		t.Fatalf("CallWithTimeout() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestCallWithTimeout_ZeroDurationRunsInline(t *testing.T) {
	got, err := CallWithTimeout(context.Background(), 0, func(_ context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Fatalf("CallWithTimeout() = %d, %v; want 7, nil", got, err)
	}
}
