// Package graph maintains the live token graph: mints as nodes, pool
// swap directions as weighted edges. A negative cycle in weight space
// is a profitable arbitrage loop.
package graph

import (
	"sync"

	"solana-arb-engine/internal/domain"
)

// PoolGraph is the adjacency-list token graph. Edges are keyed by pool
// address directly, with a secondary index of pool addresses grouped by
// source mint, so pruning never invalidates positions.
//
// Mutation (UpsertEdge, PruneStale, Clear) takes the write lock because
// the edge map and adjacency index must change together. Queries take
// the read lock and return copies, so callers never observe a torn
// update and scans can run concurrently with each other.
type PoolGraph struct {
	mu sync.RWMutex

	// edges keyed by pool address
	edges map[string]*domain.PoolEdge

	// adjacency: source mint -> pool addresses of outgoing edges
	outbound map[string][]string

	// all mints seen as an endpoint of any edge
	nodes map[string]struct{}
}

// New creates an empty PoolGraph.
func New() *PoolGraph {
	return &PoolGraph{
		edges:    make(map[string]*domain.PoolEdge),
		outbound: make(map[string][]string),
		nodes:    make(map[string]struct{}),
	}
}

// UpsertEdge inserts the edge or overwrites the existing edge for the
// same pool address in place. Both endpoints are registered as nodes.
func (g *PoolGraph) UpsertEdge(edge domain.PoolEdge) {
	edge.RecalculateWeight()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[edge.SourceMint] = struct{}{}
	g.nodes[edge.TargetMint] = struct{}{}

	if existing, ok := g.edges[edge.PoolAddress]; ok {
		existing.ExchangeRate = edge.ExchangeRate
		existing.Weight = edge.Weight
		existing.FeeBps = edge.FeeBps
		existing.LiquidityUSD = edge.LiquidityUSD
		existing.LastUpdateSlot = edge.LastUpdateSlot
		return
	}

	stored := edge
	g.edges[edge.PoolAddress] = &stored
	g.outbound[edge.SourceMint] = append(g.outbound[edge.SourceMint], edge.PoolAddress)
}

// OutboundEdges returns copies of all outgoing edges from a mint.
// Unknown mints yield an empty slice, never an error.
func (g *PoolGraph) OutboundEdges(mint string) []domain.PoolEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pools := g.outbound[mint]
	if len(pools) == 0 {
		return nil
	}
	result := make([]domain.PoolEdge, 0, len(pools))
	for _, pool := range pools {
		if e, ok := g.edges[pool]; ok {
			result = append(result, *e)
		}
	}
	return result
}

// EdgeByPool returns a copy of the edge for a pool address.
func (g *PoolGraph) EdgeByPool(poolAddress string) (domain.PoolEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.edges[poolAddress]
	if !ok {
		return domain.PoolEdge{}, false
	}
	return *e, true
}

// EdgeBetween returns a copy of an edge from source to target, if any.
func (g *PoolGraph) EdgeBetween(sourceMint, targetMint string) (domain.PoolEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, pool := range g.outbound[sourceMint] {
		if e, ok := g.edges[pool]; ok && e.TargetMint == targetMint {
			return *e, true
		}
	}
	return domain.PoolEdge{}, false
}

// HasNode reports whether the mint has appeared as an edge endpoint.
func (g *PoolGraph) HasNode(mint string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[mint]
	return ok
}

// Nodes returns all known mints.
func (g *PoolGraph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]string, 0, len(g.nodes))
	for mint := range g.nodes {
		result = append(result, mint)
	}
	return result
}

// NodeCount returns the number of unique mints.
func (g *PoolGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges.
func (g *PoolGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// PruneStale removes edges last updated before minSlot and returns the
// number removed. Adjacency entries are rebuilt from the surviving
// pools, so no dangling references remain.
func (g *PoolGraph) PruneStale(minSlot uint64) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	pruned := 0
	for source, pools := range g.outbound {
		kept := pools[:0]
		for _, pool := range pools {
			e, ok := g.edges[pool]
			if !ok {
				continue
			}
			if e.IsStale(minSlot) {
				delete(g.edges, pool)
				pruned++
				continue
			}
			kept = append(kept, pool)
		}
		if len(kept) == 0 {
			delete(g.outbound, source)
		} else {
			g.outbound[source] = kept
		}
	}
	return pruned
}

// Clear drops all edges and nodes.
func (g *PoolGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges = make(map[string]*domain.PoolEdge)
	g.outbound = make(map[string][]string)
	g.nodes = make(map[string]struct{})
}

// Stats summarizes graph size for logging and metrics.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	SourceCount int
}

// Snapshot returns current graph statistics.
func (g *PoolGraph) Snapshot() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Stats{
		NodeCount:   len(g.nodes),
		EdgeCount:   len(g.edges),
		SourceCount: len(g.outbound),
	}
}
