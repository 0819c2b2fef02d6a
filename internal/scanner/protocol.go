package scanner

import (
	"context"

	"github.com/Fantasim/vaultscan/internal/models"
)

// Protocol queries one endpoint for the balances of an address.
//
// Implementations return only non-zero records and leave timeouts, retries
// and endpoint failover to Source.
type Protocol interface {
	Query(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error)
}

// AddressValidator is implemented by protocols that only understand one
// address format. A source whose protocol rejects the address is skipped.
type AddressValidator interface {
	ValidAddress(address string) bool
}

// Runner executes one network operation under the source's per-call timeout,
// retry policy and rate limit, returning the operation's result.
type Runner func(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error)

// StagedProtocol is implemented by protocols that issue several dependent
// network operations per query. Source calls QueryStaged instead of Query and
// each operation goes through run on its own, so a slow follow-up lookup
// cannot exhaust the deadline of the call that fetched the balances.
type StagedProtocol interface {
	Protocol
	QueryStaged(ctx context.Context, run Runner, endpoint, address string) ([]models.BalanceRecord, error)
}

// runAs runs op through run and restores its result type.
func runAs[T any](ctx context.Context, run Runner, op func(ctx context.Context) (T, error)) (T, error) {
	v, err := run(ctx, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// inline runs op directly, for protocols queried outside a Source.
func inline(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	return op(ctx)
}
