// Package cycles implements bounded-depth negative-cycle search over a
// pool graph snapshot.
//
// With edge weight = -ln(rate), a profitable loop satisfies
// rate1 * rate2 * ... * rateN > 1.0, which is exactly a cycle whose
// summed weights are negative. The search is a bounded DFS from the
// base mint, which beats full Bellman-Ford on sparse graphs at the
// small hop counts (3-5) worth executing on-chain.
package cycles

import (
	"context"
	"fmt"
	"math"
	"sort"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/graph"
)

const (
	minHopBound = 3
	maxHopBound = 5
)

// Config controls a Finder.
type Config struct {
	// MaxHops bounds cycle length; must be within [3, 5].
	MaxHops int
	// MinProfitThreshold is a fraction, e.g. 0.002 for 0.2%.
	MinProfitThreshold float64
	// MinLiquidityUSD prunes edges below this floor before they are entered.
	MinLiquidityUSD uint64
}

// Finder searches for simple cycles of 3 to MaxHops legs starting and
// ending at a base mint. It holds no state between calls; every search
// is a query over the graph as it stands.
type Finder struct {
	cfg Config
}

// NewFinder validates the configuration and returns a Finder.
// Out-of-range hop counts are a deployment mistake and fail loudly.
func NewFinder(cfg Config) (*Finder, error) {
	if cfg.MaxHops < minHopBound || cfg.MaxHops > maxHopBound {
		return nil, fmt.Errorf("max hops must be within [%d, %d], got %d", minHopBound, maxHopBound, cfg.MaxHops)
	}
	if cfg.MinProfitThreshold < 0 {
		return nil, fmt.Errorf("min profit threshold must be non-negative, got %f", cfg.MinProfitThreshold)
	}
	return &Finder{cfg: cfg}, nil
}

// Config returns the finder's configuration.
func (f *Finder) Config() Config {
	return f.cfg
}

// searchState carries the mutable DFS buffers. Path and pool buffers
// are shared across the whole traversal and backtracked in place;
// cycles are copied out at the point of emission.
type searchState struct {
	ctx    context.Context
	g      *graph.PoolGraph
	base   string
	path   []string
	pools  []string
	dexes  []string
	cycles []domain.Cycle
}

// FindCycles returns all profitable simple cycles from baseMint, best
// first. An unknown base mint yields an empty result. The context is
// checked inside the recursion so a pathological graph cannot run away
// with the scan; on cancellation the cycles found so far are returned.
func (f *Finder) FindCycles(ctx context.Context, g *graph.PoolGraph, baseMint string) []domain.Cycle {
	if !g.HasNode(baseMint) {
		return nil
	}

	st := &searchState{
		ctx:   ctx,
		g:     g,
		base:  baseMint,
		path:  append(make([]string, 0, f.cfg.MaxHops+1), baseMint),
		pools: make([]string, 0, f.cfg.MaxHops),
		dexes: make([]string, 0, f.cfg.MaxHops),
	}

	f.dfs(st, baseMint, 0, 0, math.MaxUint64, 0)

	// Stable sort keeps discovery order among equal profits deterministic.
	sort.SliceStable(st.cycles, func(i, j int) bool {
		return st.cycles[i].ProfitPct > st.cycles[j].ProfitPct
	})
	return st.cycles
}

// dfs expands one node. depth is the number of legs already taken.
func (f *Finder) dfs(st *searchState, current string, depth int, totalWeight float64, minLiquidity uint64, totalFees uint32) {
	if st.ctx.Err() != nil {
		return
	}

	for _, edge := range st.g.OutboundEdges(current) {
		if edge.LiquidityUSD < f.cfg.MinLiquidityUSD {
			continue
		}
		if math.IsInf(edge.Weight, 1) {
			continue // disabled edge, can never close profitably
		}

		closing := edge.TargetMint == st.base
		if !closing && pathContains(st.path[1:], edge.TargetMint) {
			continue // simple cycles only: never revisit an intermediate mint
		}

		weight := totalWeight + edge.Weight
		liquidity := min(minLiquidity, edge.LiquidityUSD)
		fees := totalFees + uint32(edge.FeeBps)

		if closing {
			// Closing below 3 legs would be a trivial back-and-forth.
			if depth+1 < minHopBound {
				continue
			}
			profitPct := (math.Exp(-weight) - 1) * 100
			if math.IsNaN(profitPct) || profitPct < f.cfg.MinProfitThreshold*100 {
				continue
			}
			st.emit(edge, depth+1, weight, liquidity, fees, profitPct)
			continue // a closed cycle is terminal, never a waypoint
		}

		if depth+1 < f.cfg.MaxHops {
			st.path = append(st.path, edge.TargetMint)
			st.pools = append(st.pools, edge.PoolAddress)
			st.dexes = append(st.dexes, edge.Dex)

			f.dfs(st, edge.TargetMint, depth+1, weight, liquidity, fees)

			st.path = st.path[:len(st.path)-1]
			st.pools = st.pools[:len(st.pools)-1]
			st.dexes = st.dexes[:len(st.dexes)-1]
		}
	}
}

// emit copies the current buffers plus the closing edge into a Cycle.
func (st *searchState) emit(closing domain.PoolEdge, hops int, weight float64, liquidity uint64, fees uint32, profitPct float64) {
	path := make([]string, 0, len(st.path)+1)
	path = append(path, st.path...)
	path = append(path, st.base)

	pools := make([]string, 0, len(st.pools)+1)
	pools = append(pools, st.pools...)
	pools = append(pools, closing.PoolAddress)

	dexes := make([]string, 0, len(st.dexes)+1)
	dexes = append(dexes, st.dexes...)
	dexes = append(dexes, closing.Dex)

	st.cycles = append(st.cycles, domain.Cycle{
		Path:            path,
		PoolAddresses:   pools,
		Dexes:           dexes,
		HopCount:        hops,
		ProfitPct:       profitPct,
		TotalWeight:     weight,
		MinLiquidityUSD: liquidity,
		TotalFeeBps:     fees,
		EstimatedCU:     EstimateComputeUnits(hops),
	})
}

// ValidatePath re-checks an externally supplied candidate path against
// the live graph, hop by hop, with no search. It is the re-validation
// step run immediately before execution: a cycle found milliseconds ago
// may already be gone. Returns false when the path is malformed, any
// hop's edge is missing, or recomputed profit falls below threshold.
func (f *Finder) ValidatePath(g *graph.PoolGraph, path []string) (domain.Cycle, bool) {
	// Two hops is the shortest loop worth revalidating: the multiverse
	// scanner emits 2-hop cycles and funnels them through here too.
	if len(path) < 3 || path[0] != path[len(path)-1] {
		return domain.Cycle{}, false
	}

	var (
		totalWeight  float64
		minLiquidity uint64 = math.MaxUint64
		totalFees    uint32
		pools        = make([]string, 0, len(path)-1)
		dexes        = make([]string, 0, len(path)-1)
	)

	for i := 0; i < len(path)-1; i++ {
		edge, ok := g.EdgeBetween(path[i], path[i+1])
		if !ok {
			return domain.Cycle{}, false
		}
		totalWeight += edge.Weight
		minLiquidity = min(minLiquidity, edge.LiquidityUSD)
		totalFees += uint32(edge.FeeBps)
		pools = append(pools, edge.PoolAddress)
		dexes = append(dexes, edge.Dex)
	}

	profitPct := (math.Exp(-totalWeight) - 1) * 100
	if math.IsNaN(profitPct) || profitPct < f.cfg.MinProfitThreshold*100 {
		return domain.Cycle{}, false
	}

	hops := len(path) - 1
	return domain.Cycle{
		Path:            append([]string(nil), path...),
		PoolAddresses:   pools,
		Dexes:           dexes,
		HopCount:        hops,
		ProfitPct:       profitPct,
		TotalWeight:     totalWeight,
		MinLiquidityUSD: minLiquidity,
		TotalFeeBps:     totalFees,
		EstimatedCU:     EstimateComputeUnits(hops),
	}, true
}

// EstimateComputeUnits returns a rough per-cycle compute budget:
// about 80k CU per swap leg. Net-of-gas profitability is the scorer's
// call, not ours.
func EstimateComputeUnits(hops int) uint64 {
	return uint64(hops) * 80_000
}

func pathContains(path []string, mint string) bool {
	for _, m := range path {
		if m == mint {
			return true
		}
	}
	return false
}
