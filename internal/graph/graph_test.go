package graph

import (
	"math"
	"sync"
	"testing"

	"solana-arb-engine/internal/domain"
)

func TestUpsertEdge_NewAndInPlace(t *testing.T) {
	g := New()

	g.UpsertEdge(domain.NewPoolEdge("SOL", "USDC", "pool1", 100.0, 25, 1_000_000, 1000, domain.DexRaydium))

	if g.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", g.EdgeCount())
	}
	if !g.HasNode("SOL") || !g.HasNode("USDC") {
		t.Error("both endpoints should be registered as nodes")
	}

	// Re-observe the same pool with a new rate
	g.UpsertEdge(domain.NewPoolEdge("SOL", "USDC", "pool1", 101.0, 25, 1_000_000, 1001, domain.DexRaydium))

	if g.EdgeCount() != 1 {
		t.Errorf("upsert of known pool must not duplicate: got %d edges", g.EdgeCount())
	}
	e, ok := g.EdgeByPool("pool1")
	if !ok {
		t.Fatal("pool1 should be resolvable")
	}
	if math.Abs(e.ExchangeRate-101.0) > 1e-9 {
		t.Errorf("rate not updated in place: got %f", e.ExchangeRate)
	}
	if e.LastUpdateSlot != 1001 {
		t.Errorf("slot not updated: got %d", e.LastUpdateSlot)
	}
}

func TestWeightRateConsistency(t *testing.T) {
	g := New()
	rates := []float64{0.5, 1.0, 1.01, 100.0, 0.0000012}

	for i, rate := range rates {
		pool := string(rune('a' + i))
		g.UpsertEdge(domain.NewPoolEdge("A", "B", pool, rate, 25, 1000, 100, domain.DexOrca))
		e, ok := g.EdgeByPool(pool)
		if !ok {
			t.Fatalf("pool %s missing", pool)
		}
		want := -math.Log(rate)
		if math.Abs(e.Weight-want) > 1e-12 {
			t.Errorf("rate %f: weight %f, want %f", rate, e.Weight, want)
		}
	}
}

func TestWeightInfiniteForNonPositiveRate(t *testing.T) {
	g := New()
	g.UpsertEdge(domain.NewPoolEdge("A", "B", "dead", 0, 25, 1000, 100, domain.DexUnknown))

	e, ok := g.EdgeByPool("dead")
	if !ok {
		t.Fatal("edge should exist")
	}
	if !math.IsInf(e.Weight, 1) {
		t.Errorf("non-positive rate must disable the edge via +Inf weight, got %f", e.Weight)
	}
}

func TestOutboundEdges_UnknownMint(t *testing.T) {
	g := New()
	if edges := g.OutboundEdges("nope"); len(edges) != 0 {
		t.Errorf("unknown mint should yield empty result, got %d edges", len(edges))
	}
	if _, ok := g.EdgeByPool("nope"); ok {
		t.Error("unknown pool should not resolve")
	}
	if g.HasNode("nope") {
		t.Error("unknown mint should not be a node")
	}
}

func TestPruneStale(t *testing.T) {
	g := New()
	g.UpsertEdge(domain.NewPoolEdge("SOL", "USDC", "pool1", 100.0, 25, 1_000_000, 1000, domain.DexRaydium))
	g.UpsertEdge(domain.NewPoolEdge("USDC", "BONK", "pool2", 0.001, 30, 500_000, 2000, domain.DexOrca))

	if g.EdgeCount() != 2 {
		t.Fatalf("expected 2 edges, got %d", g.EdgeCount())
	}

	pruned := g.PruneStale(1500)

	if pruned != 1 {
		t.Errorf("expected 1 pruned, got %d", pruned)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge remaining, got %d", g.EdgeCount())
	}
	if _, ok := g.EdgeByPool("pool1"); ok {
		t.Error("pruned pool must not be resolvable")
	}
	if _, ok := g.EdgeByPool("pool2"); !ok {
		t.Error("fresh pool must survive pruning")
	}
	if len(g.OutboundEdges("SOL")) != 0 {
		t.Error("adjacency for pruned source should be empty")
	}
}

func TestEdgeBetween(t *testing.T) {
	g := New()
	g.UpsertEdge(domain.NewPoolEdge("SOL", "USDC", "pool1", 100.0, 25, 1_000_000, 1000, domain.DexRaydium))

	if _, ok := g.EdgeBetween("SOL", "USDC"); !ok {
		t.Error("edge SOL->USDC should exist")
	}
	if _, ok := g.EdgeBetween("USDC", "SOL"); ok {
		t.Error("reverse direction should not exist")
	}
}

func TestClear(t *testing.T) {
	g := New()
	g.UpsertEdge(domain.NewPoolEdge("SOL", "USDC", "pool1", 100.0, 25, 1_000_000, 1000, domain.DexRaydium))
	g.Clear()

	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Error("clear should drop all state")
	}
}

func TestConcurrentUpsertAndRead(t *testing.T) {
	g := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				slot := uint64(n*1000 + j)
				g.UpsertEdge(domain.NewPoolEdge("SOL", "USDC", "pool1", 100.0+float64(j), 25, 1_000_000, slot, domain.DexRaydium))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				edges := g.OutboundEdges("SOL")
				for _, e := range edges {
					// Weight must always match the rate observed in the same copy.
					want := -math.Log(e.ExchangeRate)
					if math.Abs(e.Weight-want) > 1e-12 {
						t.Errorf("torn read: rate=%f weight=%f", e.ExchangeRate, e.Weight)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge after concurrent upserts, got %d", g.EdgeCount())
	}
}
