package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fantasim/vaultscan/internal/config"
)

type callResult[T any] struct {
	value T
	err   error
}

// CallWithTimeout races op against a deadline of d.
//
// If the deadline elapses first, op is abandoned and an error wrapping
// config.ErrProviderTimeout is returned. The context handed to op is cancelled
// at that point, but op's goroutine is not waited for: a request that already
// reached the provider may still complete on the remote side.
// A non-positive d runs op inline with no deadline.
func CallWithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in provider call", "panic", r)
				done <- callResult[T]{err: fmt.Errorf("%w: panic: %v", config.ErrProviderUnavailable, r)}
			}
		}()
		v, err := op(callCtx)
		done <- callResult[T]{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-done:
		// op may notice its own deadline slightly before our timer fires.
		if r.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s: %w", config.ErrProviderTimeout, d, r.err)
		}
		return r.value, r.err
	case <-timer.C:
		slog.Debug("provider call abandoned after timeout", "timeout", d)
		return zero, fmt.Errorf("%w after %s", config.ErrProviderTimeout, d)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
