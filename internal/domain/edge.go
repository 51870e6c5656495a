package domain

import "math"

// Known DEX provenance tags.
const (
	DexRaydium = "RAYDIUM"
	DexOrca    = "ORCA"
	DexMeteora = "METEORA"
	DexUnknown = "UNKNOWN"
)

// PoolEdge is one swap direction through one liquidity pool.
// A pool produces exactly two edges, one per direction, each with its
// own exchange rate.
type PoolEdge struct {
	SourceMint     string  // source token mint address
	TargetMint     string  // target token mint address
	PoolAddress    string  // pool/AMM address
	ExchangeRate   float64 // units of target per unit of source, net of fees
	Weight         float64 // -ln(ExchangeRate); +Inf when rate is non-positive
	FeeBps         uint16  // trading fee in basis points
	LiquidityUSD   uint64  // pool liquidity in USD (bottleneck sizing)
	LastUpdateSlot uint64  // slot of the observation that produced this edge
	Dex            string  // venue tag (DexRaydium etc.)
}

// NewPoolEdge builds an edge with its weight derived from the rate.
// A negative cycle in weight space (sum of -ln(rate) < 0) is a
// profitable loop, so a rate above 1.0 yields a negative weight.
func NewPoolEdge(sourceMint, targetMint, poolAddress string, exchangeRate float64, feeBps uint16, liquidityUSD, lastUpdateSlot uint64, dex string) PoolEdge {
	e := PoolEdge{
		SourceMint:     sourceMint,
		TargetMint:     targetMint,
		PoolAddress:    poolAddress,
		ExchangeRate:   exchangeRate,
		FeeBps:         feeBps,
		LiquidityUSD:   liquidityUSD,
		LastUpdateSlot: lastUpdateSlot,
		Dex:            dex,
	}
	e.RecalculateWeight()
	return e
}

// RecalculateWeight rederives Weight from ExchangeRate. Non-positive
// rates get +Inf, which excludes the edge from any profitable cycle.
func (e *PoolEdge) RecalculateWeight() {
	if e.ExchangeRate > 0 {
		e.Weight = -math.Log(e.ExchangeRate)
	} else {
		e.Weight = math.Inf(1)
	}
}

// IsStale reports whether the edge was last updated before minSlot.
func (e *PoolEdge) IsStale(minSlot uint64) bool {
	return e.LastUpdateSlot < minSlot
}
