package clickhouse

import (
	"context"
	"fmt"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

// RateTimeseriesStore implements storage.RateTimeseriesStore using ClickHouse.
// Points are raw append-only observations; the MergeTree engine does
// not enforce uniqueness and the store does not pretend it does.
type RateTimeseriesStore struct {
	conn *Conn
}

// NewRateTimeseriesStore creates a new RateTimeseriesStore.
func NewRateTimeseriesStore(conn *Conn) *RateTimeseriesStore {
	return &RateTimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RateTimeseriesStore = (*RateTimeseriesStore)(nil)

// InsertBulk appends multiple rate points in one native batch.
func (s *RateTimeseriesStore) InsertBulk(ctx context.Context, points []*domain.RatePoint) error {
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if p == nil || p.PoolAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO rate_timeseries (
			pool_address, source_mint, target_mint, dex,
			exchange_rate, liquidity_usd, slot, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.PoolAddress, p.SourceMint, p.TargetMint, p.Dex,
			p.ExchangeRate, p.LiquidityUSD, p.Slot, uint64(p.TimestampMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPool retrieves all points for a pool, ordered by timestamp ASC.
func (s *RateTimeseriesStore) GetByPool(ctx context.Context, poolAddress string) ([]*domain.RatePoint, error) {
	query := `
		SELECT pool_address, source_mint, target_mint, dex,
		       exchange_rate, liquidity_usd, slot, timestamp_ms
		FROM rate_timeseries
		WHERE pool_address = ?
		ORDER BY timestamp_ms ASC, slot ASC
	`

	rows, err := s.conn.Query(ctx, query, poolAddress)
	if err != nil {
		return nil, fmt.Errorf("query by pool: %w", err)
	}
	defer rows.Close()

	return scanRatePoints(rows)
}

// GetByTimeRange retrieves points for a pool within [start, end] (inclusive).
func (s *RateTimeseriesStore) GetByTimeRange(ctx context.Context, poolAddress string, start, end int64) ([]*domain.RatePoint, error) {
	query := `
		SELECT pool_address, source_mint, target_mint, dex,
		       exchange_rate, liquidity_usd, slot, timestamp_ms
		FROM rate_timeseries
		WHERE pool_address = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, slot ASC
	`

	rows, err := s.conn.Query(ctx, query, poolAddress, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanRatePoints(rows)
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanRatePoints scans multiple rows.
func scanRatePoints(rows chRows) ([]*domain.RatePoint, error) {
	var points []*domain.RatePoint

	for rows.Next() {
		var p domain.RatePoint
		var timestampMs uint64

		err := rows.Scan(
			&p.PoolAddress, &p.SourceMint, &p.TargetMint, &p.Dex,
			&p.ExchangeRate, &p.LiquidityUSD, &p.Slot, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rate point row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rate point rows: %w", err)
	}

	return points, nil
}
