package domain

// RatePoint is one pool exchange-rate observation flattened for the
// rate_timeseries table in ClickHouse. The engine appends a point for
// every accepted price update, giving the reporting tool a full rate
// history per pool.
type RatePoint struct {
	PoolAddress  string
	SourceMint   string
	TargetMint   string
	Dex          string
	ExchangeRate float64
	LiquidityUSD uint64
	Slot         uint64
	TimestampMs  int64
}
