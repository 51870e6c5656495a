package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

// OpportunityStore implements storage.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OpportunityStore = (*OpportunityStore)(nil)

const insertOpportunityQuery = `
	INSERT INTO opportunities (
		opportunity_id, base_mint, path, pool_addresses, dexes,
		hop_count, profit_pct, min_liquidity_usd, total_fee_bps,
		slot, discovered_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// Insert adds a new opportunity. Returns ErrDuplicateKey if opportunity_id exists.
func (s *OpportunityStore) Insert(ctx context.Context, o *domain.Opportunity) error {
	_, err := s.pool.Exec(ctx, insertOpportunityQuery,
		o.OpportunityID,
		o.BaseMint,
		o.Path,
		o.PoolAddresses,
		o.Dexes,
		o.HopCount,
		o.ProfitPct,
		int64(o.MinLiquidityUSD),
		int32(o.TotalFeeBps),
		int64(o.Slot),
		o.DiscoveredAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// InsertBulk adds multiple opportunities atomically. Fails entire batch on any duplicate.
func (s *OpportunityStore) InsertBulk(ctx context.Context, opportunities []*domain.Opportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, o := range opportunities {
		_, err := tx.Exec(ctx, insertOpportunityQuery,
			o.OpportunityID,
			o.BaseMint,
			o.Path,
			o.PoolAddresses,
			o.Dexes,
			o.HopCount,
			o.ProfitPct,
			int64(o.MinLiquidityUSD),
			int32(o.TotalFeeBps),
			int64(o.Slot),
			o.DiscoveredAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert opportunity in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

const selectOpportunityColumns = `
	opportunity_id, base_mint, path, pool_addresses, dexes,
	hop_count, profit_pct, min_liquidity_usd, total_fee_bps,
	slot, discovered_at, created_at
`

// GetByID retrieves an opportunity by its ID. Returns ErrNotFound if not exists.
func (s *OpportunityStore) GetByID(ctx context.Context, opportunityID string) (*domain.Opportunity, error) {
	query := `SELECT ` + selectOpportunityColumns + `
		FROM opportunities
		WHERE opportunity_id = $1
	`

	row := s.pool.QueryRow(ctx, query, opportunityID)
	o, err := scanOpportunity(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get opportunity by id: %w", err)
	}
	return o, nil
}

// GetByBaseMint retrieves all opportunities for a base mint, ordered by discovery time ASC.
func (s *OpportunityStore) GetByBaseMint(ctx context.Context, baseMint string) ([]*domain.Opportunity, error) {
	query := `SELECT ` + selectOpportunityColumns + `
		FROM opportunities
		WHERE base_mint = $1
		ORDER BY discovered_at ASC, opportunity_id ASC
	`

	rows, err := s.pool.Query(ctx, query, baseMint)
	if err != nil {
		return nil, fmt.Errorf("get opportunities by base mint: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// GetByTimeRange retrieves opportunities discovered within [start, end] (inclusive).
func (s *OpportunityStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Opportunity, error) {
	query := `SELECT ` + selectOpportunityColumns + `
		FROM opportunities
		WHERE discovered_at >= $1 AND discovered_at <= $2
		ORDER BY discovered_at ASC, opportunity_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get opportunities by time range: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// GetTopByProfit retrieves the limit most profitable opportunities within [start, end].
func (s *OpportunityStore) GetTopByProfit(ctx context.Context, start, end int64, limit int) ([]*domain.Opportunity, error) {
	query := `SELECT ` + selectOpportunityColumns + `
		FROM opportunities
		WHERE discovered_at >= $1 AND discovered_at <= $2
		ORDER BY profit_pct DESC, opportunity_id ASC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("get top opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// scanOpportunity scans a single row.
func scanOpportunity(row pgx.Row) (*domain.Opportunity, error) {
	var o domain.Opportunity
	var minLiquidity, slot int64
	var totalFeeBps int32

	err := row.Scan(
		&o.OpportunityID,
		&o.BaseMint,
		&o.Path,
		&o.PoolAddresses,
		&o.Dexes,
		&o.HopCount,
		&o.ProfitPct,
		&minLiquidity,
		&totalFeeBps,
		&slot,
		&o.DiscoveredAt,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.MinLiquidityUSD = uint64(minLiquidity)
	o.TotalFeeBps = uint32(totalFeeBps)
	o.Slot = uint64(slot)
	return &o, nil
}

// scanOpportunities scans multiple rows into a slice.
func scanOpportunities(rows pgx.Rows) ([]*domain.Opportunity, error) {
	var opportunities []*domain.Opportunity

	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity row: %w", err)
		}
		opportunities = append(opportunities, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunity rows: %w", err)
	}

	return opportunities, nil
}
