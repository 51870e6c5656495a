package storage

import (
	"context"

	"solana-arb-engine/internal/domain"
)

// OpportunityStore provides access to detected-opportunity storage.
// Opportunities are append-only analysis records; the live engine never
// reads them back on its hot path.
type OpportunityStore interface {
	// Insert adds a new opportunity. Returns ErrDuplicateKey if
	// opportunity_id already exists.
	Insert(ctx context.Context, o *domain.Opportunity) error

	// InsertBulk adds multiple opportunities atomically. Fails the
	// entire batch on any duplicate.
	InsertBulk(ctx context.Context, opportunities []*domain.Opportunity) error

	// GetByID retrieves an opportunity by its ID. Returns ErrNotFound
	// if not exists.
	GetByID(ctx context.Context, opportunityID string) (*domain.Opportunity, error)

	// GetByBaseMint retrieves all opportunities starting at the given
	// mint, ordered by discovery time ASC.
	GetByBaseMint(ctx context.Context, baseMint string) ([]*domain.Opportunity, error)

	// GetByTimeRange retrieves opportunities discovered within
	// [start, end] milliseconds (inclusive), ordered by discovery
	// time ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Opportunity, error)

	// GetTopByProfit retrieves the limit most profitable opportunities
	// discovered within [start, end], best first.
	GetTopByProfit(ctx context.Context, start, end int64, limit int) ([]*domain.Opportunity, error)
}

// RateTimeseriesStore provides access to pool exchange-rate history.
type RateTimeseriesStore interface {
	// InsertBulk appends multiple rate points. Points are raw
	// observations; duplicates are not rejected.
	InsertBulk(ctx context.Context, points []*domain.RatePoint) error

	// GetByPool retrieves all points for a pool, ordered by
	// timestamp ASC.
	GetByPool(ctx context.Context, poolAddress string) ([]*domain.RatePoint, error)

	// GetByTimeRange retrieves points for a pool within [start, end]
	// milliseconds (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, poolAddress string, start, end int64) ([]*domain.RatePoint, error)
}
