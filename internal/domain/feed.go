package domain

// PriceUpdate is a parsed pool price observation from one provider.
// The same logical event may arrive from several providers racing each
// other; Provider and TxSignature identify the arrival for consensus.
type PriceUpdate struct {
	SourceMint   string  // source token mint
	TargetMint   string  // target token mint
	PoolAddress  string  // pool address
	ExchangeRate float64 // target per source, net of fees
	FeeBps       uint16  // pool fee in basis points
	LiquidityUSD uint64  // pool liquidity in USD
	Slot         uint64  // slot of the observation
	Dex          string  // venue tag
	Provider     string  // provider that delivered this arrival
	TxSignature  string  // transaction signature of the logical event
}

// Whiff directions.
const (
	WhiffBullish  = "BULLISH"
	WhiffBearish  = "BEARISH"
	WhiffVolatile = "VOLATILE"
)

// WhiffEvent is a low-value intelligence signal (bridge mints, lending
// flows) orthogonal to pool prices. Bursts of these are collapsed by
// the pressure buffer rather than processed individually.
type WhiffEvent struct {
	WhiffType  string  // signal class, e.g. "WHALE_MINT", "LENDING_FLOW"
	Mint       string  // token the signal concerns
	Amount     uint64  // raw amount where the log exposed one
	Confidence float32 // parser confidence in [0, 1]
	Direction  string  // WhiffBullish | WhiffBearish | WhiffVolatile
	Source     string  // provider or program that produced the signal
}
