// Package multiverse scans every hop depth in a configured range (2-5)
// in one pass, with a separate profit bar per depth: short loops face
// the most competition and need the highest bar, deep loops accrue fee
// drag and are allowed a lower one.
package multiverse

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"solana-arb-engine/internal/cycles"
	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/graph"
)

const (
	minHopBound = 2
	maxHopBound = 5
)

// DefaultThresholds are the per-depth profit bars, as fractions.
func DefaultThresholds() map[int]float64 {
	return map[int]float64{
		2: 0.0020, // 2-hop: 0.20%, high competition
		3: 0.0015, // 3-hop: 0.15%
		4: 0.0010, // 4-hop: 0.10%
		5: 0.0008, // 5-hop: 0.08%, deep exploration
	}
}

// Config controls a Scanner.
type Config struct {
	// MinHops and MaxHops bound the scanned depth range; both are
	// clamped into [2, 5]. The clamp is reported by NewScanner's
	// Clamped result so callers can log it.
	MinHops int
	MaxHops int

	// Thresholds maps hop count to the minimum profit fraction for
	// that depth. Missing depths fall back to DefaultThresholds.
	Thresholds map[int]float64

	// MinLiquidityUSD prunes edges below this floor.
	MinLiquidityUSD uint64

	// MaxCyclesPerLevel truncates each depth's results after sorting.
	MaxCyclesPerLevel int

	// OptimisticHopWeight is the assumed best-case weight contribution
	// of one remaining hop (negative; default -0.003, i.e. -0.3%).
	// Branches that cannot reach a negative total even under this
	// assumption are abandoned. Zero disables the heuristic for an
	// exhaustive scan.
	OptimisticHopWeight float64
}

// ScanStats reports search effort for tuning and regression tests.
type ScanStats struct {
	TotalCyclesFound int
	PathsExplored    int
	PathsPruned      int
	// MemoEntries is the peak memo cache size across depth tiers;
	// the cache is cleared between tiers.
	MemoEntries int
	Duration    time.Duration
}

// Result groups cycles by hop count and carries the global best.
type Result struct {
	CyclesByHops map[int][]domain.Cycle
	BestCycle    *domain.Cycle
	Stats        ScanStats
}

// Scanner runs the tiered exact-depth search. It is not safe for
// concurrent use: the memo cache is per-scan scratch state.
type Scanner struct {
	cfg        Config
	thresholds map[int]float64
	clamped    bool
}

// NewScanner builds a Scanner. The returned bool reports whether the
// hop range was clamped into [2, 5], so the caller can log it rather
// than have operator intent silently rewritten.
func NewScanner(cfg Config) (*Scanner, bool, error) {
	clamped := false
	if cfg.MinHops < minHopBound || cfg.MinHops > maxHopBound {
		cfg.MinHops = clamp(cfg.MinHops)
		clamped = true
	}
	if cfg.MaxHops < minHopBound || cfg.MaxHops > maxHopBound {
		cfg.MaxHops = clamp(cfg.MaxHops)
		clamped = true
	}
	if cfg.MinHops > cfg.MaxHops {
		return nil, clamped, fmt.Errorf("min hops %d exceeds max hops %d", cfg.MinHops, cfg.MaxHops)
	}
	if cfg.MaxCyclesPerLevel <= 0 {
		cfg.MaxCyclesPerLevel = 50
	}
	if cfg.OptimisticHopWeight > 0 {
		return nil, clamped, fmt.Errorf("optimistic hop weight must be negative or zero, got %f", cfg.OptimisticHopWeight)
	}

	thresholds := DefaultThresholds()
	for hops, v := range cfg.Thresholds {
		if hops < minHopBound || hops > maxHopBound {
			return nil, clamped, fmt.Errorf("threshold for unsupported hop count %d", hops)
		}
		if v < 0 {
			return nil, clamped, fmt.Errorf("threshold for %d hops must be non-negative, got %f", hops, v)
		}
		thresholds[hops] = v
	}

	return &Scanner{cfg: cfg, thresholds: thresholds, clamped: clamped}, clamped, nil
}

// Config returns the effective (post-clamp) configuration.
func (s *Scanner) Config() Config {
	return s.cfg
}

// Threshold returns the profit bar for a hop depth.
func (s *Scanner) Threshold(hops int) float64 {
	return s.thresholds[hops]
}

// memoKey identifies a visit of current at exactly depth hops from the
// base mint. The base is fixed per scan, so it is not part of the key.
type memoKey struct {
	mint  string
	depth int
}

// scanState is per-scan scratch: the backtracking buffers and the memo
// of best cumulative weight per (mint, depth).
type scanState struct {
	ctx   context.Context
	g     *graph.PoolGraph
	base  string
	path  []string
	pools []string
	dexes []string
	memo  map[memoKey]float64
	stats *ScanStats
}

// Scan explores every depth in [MinHops, MaxHops] from baseMint and
// returns per-depth cycles plus the global best. An unknown base mint
// yields an empty result, not an error.
func (s *Scanner) Scan(ctx context.Context, g *graph.PoolGraph, baseMint string) Result {
	started := time.Now()

	result := Result{CyclesByHops: make(map[int][]domain.Cycle)}
	stats := &result.Stats

	if !g.HasNode(baseMint) {
		stats.Duration = time.Since(started)
		return result
	}

	st := &scanState{
		ctx:   ctx,
		g:     g,
		base:  baseMint,
		path:  append(make([]string, 0, maxHopBound+1), baseMint),
		pools: make([]string, 0, maxHopBound),
		dexes: make([]string, 0, maxHopBound),
		memo:  make(map[memoKey]float64),
		stats: stats,
	}

	for level := s.cfg.MinHops; level <= s.cfg.MaxHops; level++ {
		// Each depth gets a fresh memo: the dominance argument only
		// holds between paths racing toward the same target depth.
		clear(st.memo)

		found := s.scanLevel(st, level)
		if len(found) > 0 {
			result.CyclesByHops[level] = found
		}
		if n := len(st.memo); n > stats.MemoEntries {
			stats.MemoEntries = n
		}
	}

	for _, levelCycles := range result.CyclesByHops {
		stats.TotalCyclesFound += len(levelCycles)
		for i := range levelCycles {
			c := &levelCycles[i]
			if result.BestCycle == nil || c.ProfitPct > result.BestCycle.ProfitPct {
				result.BestCycle = c
			}
		}
	}

	stats.Duration = time.Since(started)
	return result
}

// scanLevel runs one exact-depth traversal and returns its sorted,
// truncated cycles.
func (s *Scanner) scanLevel(st *scanState, targetHops int) []domain.Cycle {
	var found []domain.Cycle
	s.dfsExact(st, st.base, 0, 0, math.MaxUint64, 0, targetHops, &found)

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].ProfitPct > found[j].ProfitPct
	})
	if len(found) > s.cfg.MaxCyclesPerLevel {
		found = found[:s.cfg.MaxCyclesPerLevel]
	}
	return found
}

// dfsExact only accepts cycles that close at exactly targetHops legs.
func (s *Scanner) dfsExact(st *scanState, current string, depth int, totalWeight float64, minLiquidity uint64, totalFees uint32, targetHops int, found *[]domain.Cycle) {
	if st.ctx.Err() != nil {
		return
	}

	st.stats.PathsExplored++

	if depth > 0 {
		// If an earlier path reached this mint at the same depth with
		// less cumulative weight, every closure from here was already
		// explored more cheaply through it.
		key := memoKey{mint: current, depth: depth}
		if best, ok := st.memo[key]; ok && totalWeight > best {
			st.stats.PathsPruned++
			return
		}
		if best, ok := st.memo[key]; !ok || totalWeight < best {
			st.memo[key] = totalWeight
		}
	}

	for _, edge := range st.g.OutboundEdges(current) {
		if edge.LiquidityUSD < s.cfg.MinLiquidityUSD {
			st.stats.PathsPruned++
			continue
		}
		if math.IsInf(edge.Weight, 1) {
			continue
		}

		closing := edge.TargetMint == st.base
		if !closing && contains(st.path[1:], edge.TargetMint) {
			continue
		}

		weight := totalWeight + edge.Weight
		liquidity := min(minLiquidity, edge.LiquidityUSD)
		fees := totalFees + uint32(edge.FeeBps)

		if closing {
			if depth+1 != targetHops {
				continue // wrong depth for this tier
			}
			profitPct := (math.Exp(-weight) - 1) * 100
			if math.IsNaN(profitPct) || profitPct < s.thresholds[targetHops]*100 {
				continue
			}
			*found = append(*found, s.emit(st, edge, depth+1, weight, liquidity, fees, profitPct))
			continue
		}

		if depth+1 >= targetHops {
			continue // cannot close in the remaining budget
		}

		if s.cfg.OptimisticHopWeight < 0 {
			// Even if every remaining hop hit the optimistic best case,
			// a branch this heavy can never close profitably. Trades a
			// sliver of recall for a large cut of the search space.
			remaining := float64(targetHops-depth-1) * s.cfg.OptimisticHopWeight
			if weight+remaining > 0 {
				st.stats.PathsPruned++
				continue
			}
		}

		st.path = append(st.path, edge.TargetMint)
		st.pools = append(st.pools, edge.PoolAddress)
		st.dexes = append(st.dexes, edge.Dex)

		s.dfsExact(st, edge.TargetMint, depth+1, weight, liquidity, fees, targetHops, found)

		st.path = st.path[:len(st.path)-1]
		st.pools = st.pools[:len(st.pools)-1]
		st.dexes = st.dexes[:len(st.dexes)-1]
	}
}

func (s *Scanner) emit(st *scanState, closing domain.PoolEdge, hops int, weight float64, liquidity uint64, fees uint32, profitPct float64) domain.Cycle {
	path := make([]string, 0, len(st.path)+1)
	path = append(path, st.path...)
	path = append(path, st.base)

	pools := make([]string, 0, len(st.pools)+1)
	pools = append(pools, st.pools...)
	pools = append(pools, closing.PoolAddress)

	dexes := make([]string, 0, len(st.dexes)+1)
	dexes = append(dexes, st.dexes...)
	dexes = append(dexes, closing.Dex)

	return domain.Cycle{
		Path:            path,
		PoolAddresses:   pools,
		Dexes:           dexes,
		HopCount:        hops,
		ProfitPct:       profitPct,
		TotalWeight:     weight,
		MinLiquidityUSD: liquidity,
		TotalFeeBps:     fees,
		EstimatedCU:     cycles.EstimateComputeUnits(hops),
	}
}

func clamp(hops int) int {
	if hops < minHopBound {
		return minHopBound
	}
	if hops > maxHopBound {
		return maxHopBound
	}
	return hops
}

func contains(path []string, mint string) bool {
	for _, m := range path {
		if m == mint {
			return true
		}
	}
	return false
}
