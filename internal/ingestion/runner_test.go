package ingestion

import (
	"context"
	"math"
	"testing"
	"time"

	"solana-arb-engine/internal/consensus"
	"solana-arb-engine/internal/cycles"
	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/graph"
	"solana-arb-engine/internal/multiverse"
	"solana-arb-engine/internal/pressure"
	"solana-arb-engine/internal/storage/memory"
)

const (
	testBaseMint = "SOL"
	testMintUSDC = "USDC"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()

	finder, err := cycles.NewFinder(cycles.Config{
		MaxHops:            5,
		MinProfitThreshold: 0.002,
		MinLiquidityUSD:    1000,
	})
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}

	scanner, _, err := multiverse.NewScanner(multiverse.Config{
		MinHops:         2,
		MaxHops:         4,
		MinLiquidityUSD: 1000,
	})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}

	gate, err := consensus.NewEngine(1000, 2)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	updates := make(chan domain.PriceUpdate, 16)
	whiffs := make(chan domain.WhiffEvent, 16)

	return NewRunner(RunnerOptions{
		Graph:           graph.New(),
		Finder:          finder,
		Scanner:         scanner,
		Consensus:       gate,
		Pressure:        pressure.New(100),
		Updates:         updates,
		Whiffs:          whiffs,
		Opportunities:   memory.NewOpportunityStore(),
		Rates:           memory.NewRateTimeseriesStore(),
		Metrics:         testMetrics(),
		Log:             testLogger(),
		BaseMint:        testBaseMint,
		MaxEdgeAgeSlots: 100,
	})
}

func priceUpdate(provider, sig string, slot uint64, source, target, pool string, rate float64) domain.PriceUpdate {
	return domain.PriceUpdate{
		SourceMint:   source,
		TargetMint:   target,
		PoolAddress:  pool,
		ExchangeRate: rate,
		FeeBps:       25,
		LiquidityUSD: 100_000,
		Slot:         slot,
		Dex:          domain.DexRaydium,
		Provider:     provider,
		TxSignature:  sig,
	}
}

func TestRunner_HandleUpdateUpsertsEdge(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	r.handleUpdate(ctx, priceUpdate("a", "sig1", 100, testBaseMint, testMintUSDC, "pool1", 1.01))

	if got := r.graph.EdgeCount(); got != 1 {
		t.Fatalf("expected 1 edge, got %d", got)
	}

	edge, ok := r.graph.EdgeByPool("pool1")
	if !ok {
		t.Fatal("edge not found by pool")
	}
	if edge.ExchangeRate != 1.01 || edge.LastUpdateSlot != 100 {
		t.Errorf("unexpected edge: %+v", edge)
	}
}

func TestRunner_HandleUpdateRejectsDuplicate(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	r.handleUpdate(ctx, priceUpdate("a", "sig1", 100, testBaseMint, testMintUSDC, "pool1", 1.01))
	// Same signature from a second provider: the edge must not move.
	r.handleUpdate(ctx, priceUpdate("b", "sig1", 100, testBaseMint, testMintUSDC, "pool1", 2.0))

	edge, ok := r.graph.EdgeByPool("pool1")
	if !ok {
		t.Fatal("edge not found")
	}
	if edge.ExchangeRate != 1.01 {
		t.Errorf("duplicate arrival overwrote edge: rate=%f", edge.ExchangeRate)
	}

	stats := r.consensus.Snapshot()
	if stats.Accepted != 1 || stats.Duplicates != 1 {
		t.Errorf("expected 1 accepted / 1 duplicate, got %d/%d", stats.Accepted, stats.Duplicates)
	}
}

func TestRunner_ScanPersistsOpportunity(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	// SOL -> USDC at 1.02 and back at 1.0: about 2% round trip.
	r.handleUpdate(ctx, priceUpdate("a", "sig1", 100, testBaseMint, testMintUSDC, "pool1", 1.02))
	r.handleUpdate(ctx, priceUpdate("a", "sig2", 100, testMintUSDC, testBaseMint, "pool2", 1.0))

	r.scan(ctx)

	stored, err := r.opportunities.GetByBaseMint(ctx, testBaseMint)
	if err != nil {
		t.Fatalf("GetByBaseMint: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(stored))
	}

	opp := stored[0]
	if opp.HopCount != 2 {
		t.Errorf("expected 2 hops, got %d", opp.HopCount)
	}
	if math.Abs(opp.ProfitPct-2.0) > 0.01 {
		t.Errorf("expected profit about 2%%, got %f", opp.ProfitPct)
	}
	if opp.Slot != 100 {
		t.Errorf("expected discovery slot 100, got %d", opp.Slot)
	}
	if len(opp.PoolAddresses) != 2 {
		t.Errorf("expected 2 pools, got %v", opp.PoolAddresses)
	}

	// The same cycle at the same slot collapses to one record.
	r.scan(ctx)
	stored, err = r.opportunities.GetByBaseMint(ctx, testBaseMint)
	if err != nil {
		t.Fatalf("GetByBaseMint: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("rescan duplicated the opportunity: %d records", len(stored))
	}
}

func TestRunner_ScanEmptyGraph(t *testing.T) {
	r := newTestRunner(t)

	// Must be a no-op, not a panic.
	r.scan(context.Background())

	stored, err := r.opportunities.GetByBaseMint(context.Background(), testBaseMint)
	if err != nil {
		t.Fatalf("GetByBaseMint: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("expected no opportunities, got %d", len(stored))
	}
}

func TestRunner_ScanUnprofitableGraphStoresNothing(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	r.handleUpdate(ctx, priceUpdate("a", "sig1", 100, testBaseMint, testMintUSDC, "pool1", 1.0))
	r.handleUpdate(ctx, priceUpdate("a", "sig2", 100, testMintUSDC, testBaseMint, "pool2", 0.99))

	r.scan(ctx)

	stored, err := r.opportunities.GetByBaseMint(ctx, testBaseMint)
	if err != nil {
		t.Fatalf("GetByBaseMint: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("expected no opportunities, got %d", len(stored))
	}
}

func TestRunner_PruneRemovesAgedEdges(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	r.handleUpdate(ctx, priceUpdate("a", "sig1", 50, testBaseMint, testMintUSDC, "poolOld", 1.0))
	r.handleUpdate(ctx, priceUpdate("a", "sig2", 500, testMintUSDC, "BONK", "poolNew", 1.0))

	r.prune()

	if _, ok := r.graph.EdgeByPool("poolOld"); ok {
		t.Error("aged edge survived prune")
	}
	if _, ok := r.graph.EdgeByPool("poolNew"); !ok {
		t.Error("fresh edge was pruned")
	}
}

func TestRunner_PruneBelowAgeBudgetKeepsAll(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	// Watermark 90 is below the 100-slot age budget: nothing can be
	// old enough to prune yet.
	r.handleUpdate(ctx, priceUpdate("a", "sig1", 90, testBaseMint, testMintUSDC, "pool1", 1.0))

	r.prune()

	if got := r.graph.EdgeCount(); got != 1 {
		t.Errorf("expected 1 edge, got %d", got)
	}
}

func TestRunner_WhiffFlowsIntoPressureBuffer(t *testing.T) {
	r := newTestRunner(t)

	r.handleWhiff(domain.WhiffEvent{
		WhiffType:  "WHALE_MINT",
		Mint:       "BONK",
		Confidence: 1.0,
		Direction:  domain.WhiffBullish,
		Source:     "a",
	})

	if got := r.pressure.Len(); got != 1 {
		t.Fatalf("expected 1 buffered event, got %d", got)
	}

	state := r.pressure.Pressure("BONK")
	if math.Abs(float64(state.Bullish)-0.3) > 1e-6 {
		t.Errorf("expected bullish pressure 0.3, got %f", state.Bullish)
	}
}

func TestRunner_CollapseDrainsWindow(t *testing.T) {
	r := newTestRunner(t)

	for i := 0; i < 3; i++ {
		r.handleWhiff(domain.WhiffEvent{
			WhiffType:  "LENDING_FLOW",
			Mint:       "BONK",
			Confidence: 0.5,
			Direction:  domain.WhiffBearish,
			Source:     "a",
		})
	}

	// Must not panic and must leave the buffer intact for Prune.
	r.collapse()

	if r.pressure.Len() != 3 {
		t.Errorf("collapse must not evict events, got %d", r.pressure.Len())
	}
}

func TestRunner_RateBufferFlushes(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	r.handleUpdate(ctx, priceUpdate("a", "sig1", 100, testBaseMint, testMintUSDC, "pool1", 1.01))
	r.handleUpdate(ctx, priceUpdate("a", "sig2", 101, testMintUSDC, testBaseMint, "pool2", 0.99))

	r.flushRates(ctx)

	points, err := r.rates.GetByPool(ctx, "pool1")
	if err != nil {
		t.Fatalf("GetByPool: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point for pool1, got %d", len(points))
	}
	if points[0].ExchangeRate != 1.01 || points[0].Slot != 100 {
		t.Errorf("unexpected point: %+v", points[0])
	}

	if len(r.rateBuf) != 0 {
		t.Errorf("buffer not cleared after flush: %d", len(r.rateBuf))
	}
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	r := newTestRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}
