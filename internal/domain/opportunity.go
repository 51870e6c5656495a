package domain

// Opportunity is the persisted record of a detected cycle, kept for
// post-trade analysis. Corresponds to the opportunities table in
// PostgreSQL.
type Opportunity struct {
	OpportunityID   string   // deterministic SHA256 id
	BaseMint        string   // start/end token of the cycle
	Path            []string // mints in order
	PoolAddresses   []string // pools traversed
	Dexes           []string // venue per pool
	HopCount        int      // number of legs
	ProfitPct       float64  // theoretical profit at discovery time
	MinLiquidityUSD uint64   // bottleneck liquidity
	TotalFeeBps     uint32   // summed fees
	Slot            uint64   // watermark slot at discovery
	DiscoveredAt    int64    // Unix timestamp in milliseconds
	CreatedAt       int64    // record creation timestamp (ms)
}
