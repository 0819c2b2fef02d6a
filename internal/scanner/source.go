package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/registry"
	"github.com/Fantasim/vaultscan/internal/transport"
)

// Source runs one descriptor's protocol across its endpoints with
// per-endpoint circuit breakers and rate limiters.
type Source struct {
	desc     registry.SourceDescriptor
	proto    Protocol
	call     transport.Call
	labels   []string // endpoints with credentials masked, for logs
	breakers []*transport.CircuitBreaker
	limiters []*transport.RateLimiter
}

// NewSource wires a protocol to its descriptor.
func NewSource(desc registry.SourceDescriptor, proto Protocol, call transport.Call, rps int) *Source {
	labels := desc.MaskedEndpoints()
	breakers := make([]*transport.CircuitBreaker, len(desc.Endpoints))
	limiters := make([]*transport.RateLimiter, len(desc.Endpoints))
	for i := range desc.Endpoints {
		breakers[i] = transport.NewCircuitBreaker(labels[i], config.CircuitBreakerThreshold, config.CircuitBreakerCooldown)
		limiters[i] = transport.NewRateLimiter(labels[i], rps)
	}

	return &Source{
		desc:     desc,
		proto:    proto,
		call:     call,
		labels:   labels,
		breakers: breakers,
		limiters: limiters,
	}
}

// Name returns the source name.
func (s *Source) Name() string { return s.desc.Name }

// Descriptor returns the source's descriptor.
func (s *Source) Descriptor() registry.SourceDescriptor { return s.desc }

// CircuitState returns the breaker state of the first endpoint that is not
// closed, or closed when all are.
func (s *Source) CircuitState() string {
	for _, snap := range s.Breakers() {
		if snap.State != config.CircuitClosed {
			return snap.State
		}
	}
	return config.CircuitClosed
}

// Breakers returns a snapshot of every endpoint's breaker, in endpoint order.
func (s *Source) Breakers() []transport.BreakerSnapshot {
	snaps := make([]transport.BreakerSnapshot, len(s.breakers))
	for i, cb := range s.breakers {
		snaps[i] = cb.Snapshot()
	}
	return snaps
}

// Fetch queries the source for address and always returns a settled outcome.
//
// Endpoints are tried in order, each through the timeout and retry wrapper.
// The source fails only once every endpoint has failed, with the reason of
// the last error. Panics in the protocol are recovered into a NetworkError.
func (s *Source) Fetch(ctx context.Context, address string) (out models.FetchOutcome) {
	start := time.Now()
	out = models.FetchOutcome{
		Source: s.desc.Name,
		Chain:  s.desc.Chain,
		Kind:   s.desc.Kind,
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in source fetch",
				"source", s.desc.Name,
				"panic", r,
			)
			out.Records = nil
			out.Err = fmt.Errorf("%w: panic: %v", config.ErrProviderUnavailable, r)
			out.Reason = models.ReasonNetworkError
		}
		out.CircuitState = s.CircuitState()
		out.Duration = time.Since(start)
	}()

	if v, ok := s.proto.(AddressValidator); ok && !v.ValidAddress(address) {
		slog.Debug("source skipped, address format not served",
			"source", s.desc.Name,
			"chain", s.desc.Chain,
		)
		out.Skipped = true
		return out
	}

	var lastErr error
	for i, endpoint := range s.desc.Endpoints {
		label := s.labels[i]
		cb := s.breakers[i]

		if err := cb.Acquire(); err != nil {
			slog.Debug("circuit open, skipping endpoint",
				"source", s.desc.Name,
				"endpoint", label,
				"reason", transport.Classify(err),
			)
			lastErr = err
			out.Endpoint = label
			continue
		}

		var calls atomic.Int32
		records, err := s.query(ctx, i, endpoint, address, &calls)
		out.Attempts += int(calls.Load())
		out.Endpoint = label

		if err == nil {
			cb.Success()
			out.Records = records
			if i > 0 {
				slog.Info("source served by fallback endpoint",
					"source", s.desc.Name,
					"endpoint", label,
					"position", i+1,
				)
			}
			return out
		}

		// A cancelled caller says nothing about the endpoint's health.
		if ctx.Err() != nil && !errors.Is(err, config.ErrProviderTimeout) {
			lastErr = err
			break
		}

		reason := cb.Failure(err)
		lastErr = err

		slog.Warn("endpoint failed",
			"source", s.desc.Name,
			"chain", s.desc.Chain,
			"endpoint", label,
			"reason", reason,
			"remaining", len(s.desc.Endpoints)-i-1,
			"error", err,
		)
	}

	if lastErr == nil {
		lastErr = config.ErrNoEndpoints
	}
	out.Reason = transport.Classify(lastErr)
	out.Err = fmt.Errorf("%w: %s: %w", config.ErrAllEndpointsFailed, s.desc.Name, lastErr)
	return out
}

// query runs the protocol against one endpoint. A StagedProtocol gets a
// runner that wraps each of its network operations in the timeout and retry
// policy; any other protocol runs as a single wrapped call.
func (s *Source) query(ctx context.Context, i int, endpoint, address string, calls *atomic.Int32) ([]models.BalanceRecord, error) {
	limiter := s.limiters[i]
	run := func(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
		return transport.Do(ctx, s.call, func(ctx context.Context) (any, error) {
			calls.Add(1)
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return op(ctx)
		})
	}

	if staged, ok := s.proto.(StagedProtocol); ok {
		return staged.QueryStaged(ctx, run, endpoint, address)
	}
	return runAs(ctx, run, func(ctx context.Context) ([]models.BalanceRecord, error) {
		return s.proto.Query(ctx, endpoint, address)
	})
}

// Close releases protocol resources such as ethclient connections.
func (s *Source) Close() {
	if c, ok := s.proto.(interface{ Close() }); ok {
		c.Close()
	}
}
