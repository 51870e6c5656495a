package domain

// Cycle is an arbitrage loop discovered over a graph snapshot.
// It is a pure value object: produced once, never mutated, and stale
// the moment the underlying graph changes. Callers must re-validate
// against the live graph before acting on one.
type Cycle struct {
	Path           []string // mints in order; Path[0] == Path[len-1]
	PoolAddresses  []string // pools traversed; len == HopCount
	Dexes          []string // venue per traversed pool
	HopCount       int      // number of legs; len(Path) - 1
	ProfitPct      float64  // (exp(-TotalWeight) - 1) * 100
	TotalWeight    float64  // sum of edge weights; negative means profit
	MinLiquidityUSD uint64  // bottleneck liquidity across the path
	TotalFeeBps    uint32   // summed fees across the path
	EstimatedCU    uint64   // rough compute-unit cost, proportional to hops
}

// IsProfitable reports whether the cycle clears minProfitPct (percent).
func (c *Cycle) IsProfitable(minProfitPct float64) bool {
	return c.ProfitPct >= minProfitPct
}
