package ingestion

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"solana-arb-engine/internal/consensus"
	"solana-arb-engine/internal/cycles"
	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/graph"
	"solana-arb-engine/internal/idhash"
	"solana-arb-engine/internal/multiverse"
	"solana-arb-engine/internal/observability"
	"solana-arb-engine/internal/pressure"
	"solana-arb-engine/internal/storage"
)

const rateFlushBatch = 500

// Runner owns the live engine loop: it drains the shared feed
// channels, gates every arrival through consensus, maintains the pool
// graph, and runs the periodic scan, prune, and collapse ticks. It is
// the only goroutine that mutates the graph, so the scan always sees a
// consistent snapshot between events.
type Runner struct {
	graph     *graph.PoolGraph
	finder    *cycles.Finder
	scanner   *multiverse.Scanner
	consensus *consensus.Engine
	pressure  *pressure.Buffer

	updates <-chan domain.PriceUpdate
	whiffs  <-chan domain.WhiffEvent

	opportunities storage.OpportunityStore    // optional
	rates         storage.RateTimeseriesStore // optional
	rateBuf       []*domain.RatePoint

	metrics *observability.Metrics
	log     *logrus.Entry

	baseMint        string
	scanInterval    time.Duration
	pruneInterval   time.Duration
	maxEdgeAgeSlots uint64
	collapseWindow  time.Duration
	maxWhiffAge     time.Duration

	now func() time.Time
}

// RunnerOptions configures a Runner. Graph, Finder, Scanner,
// Consensus, Pressure, Metrics, Log, and the two channels are
// required; both stores are optional and nil disables persistence.
type RunnerOptions struct {
	Graph     *graph.PoolGraph
	Finder    *cycles.Finder
	Scanner   *multiverse.Scanner
	Consensus *consensus.Engine
	Pressure  *pressure.Buffer

	Updates <-chan domain.PriceUpdate
	Whiffs  <-chan domain.WhiffEvent

	Opportunities storage.OpportunityStore
	Rates         storage.RateTimeseriesStore

	Metrics *observability.Metrics
	Log     *logrus.Entry

	BaseMint        string
	ScanInterval    time.Duration
	PruneInterval   time.Duration
	MaxEdgeAgeSlots uint64
	CollapseWindow  time.Duration
	MaxWhiffAge     time.Duration
}

// NewRunner creates a runner with defaults applied to zero-valued
// intervals.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 500 * time.Millisecond
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = 30 * time.Second
	}
	if opts.MaxEdgeAgeSlots == 0 {
		opts.MaxEdgeAgeSlots = 300
	}
	if opts.CollapseWindow <= 0 {
		opts.CollapseWindow = 200 * time.Millisecond
	}
	if opts.MaxWhiffAge <= 0 {
		opts.MaxWhiffAge = 10 * time.Second
	}

	return &Runner{
		graph:           opts.Graph,
		finder:          opts.Finder,
		scanner:         opts.Scanner,
		consensus:       opts.Consensus,
		pressure:        opts.Pressure,
		updates:         opts.Updates,
		whiffs:          opts.Whiffs,
		opportunities:   opts.Opportunities,
		rates:           opts.Rates,
		metrics:         opts.Metrics,
		log:             opts.Log,
		baseMint:        opts.BaseMint,
		scanInterval:    opts.ScanInterval,
		pruneInterval:   opts.PruneInterval,
		maxEdgeAgeSlots: opts.MaxEdgeAgeSlots,
		collapseWindow:  opts.CollapseWindow,
		maxWhiffAge:     opts.MaxWhiffAge,
		now:             time.Now,
	}
}

// Run drives the engine until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.log.WithFields(logrus.Fields{
		"base_mint":     r.baseMint,
		"scan_interval": r.scanInterval,
	}).Info("engine runner started")

	scanTicker := time.NewTicker(r.scanInterval)
	defer scanTicker.Stop()
	pruneTicker := time.NewTicker(r.pruneInterval)
	defer pruneTicker.Stop()
	collapseTicker := time.NewTicker(r.collapseWindow)
	defer collapseTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flushRates(context.WithoutCancel(ctx))
			r.log.Info("engine runner stopping")
			return ctx.Err()

		case update := <-r.updates:
			r.handleUpdate(ctx, update)

		case whiff := <-r.whiffs:
			r.handleWhiff(whiff)

		case <-scanTicker.C:
			r.scan(ctx)

		case <-pruneTicker.C:
			r.prune()
			r.flushRates(ctx)

		case <-collapseTicker.C:
			r.collapse()
		}
	}
}

// handleUpdate gates one arrival and applies it to the graph.
func (r *Runner) handleUpdate(ctx context.Context, update domain.PriceUpdate) {
	switch r.consensus.Evaluate(update.Provider, update.TxSignature, update.Slot) {
	case consensus.Stale:
		r.metrics.EventsStale.Inc()
		return
	case consensus.Duplicate:
		r.metrics.EventsDuplicate.Inc()
		return
	}
	r.metrics.EventsAccepted.Inc()

	watermark := r.consensus.LatestSlot()
	r.metrics.SlotWatermark.Set(float64(watermark))
	if update.Slot <= watermark {
		r.metrics.ProviderSlotLag.WithLabelValues(update.Provider).Set(float64(watermark - update.Slot))
	}

	edge := domain.NewPoolEdge(
		update.SourceMint, update.TargetMint, update.PoolAddress,
		update.ExchangeRate, update.FeeBps, update.LiquidityUSD,
		update.Slot, update.Dex,
	)
	r.graph.UpsertEdge(edge)
	r.metrics.EdgesUpserted.Inc()

	stats := r.graph.Snapshot()
	r.metrics.GraphEdges.Set(float64(stats.EdgeCount))
	r.metrics.GraphNodes.Set(float64(stats.NodeCount))

	if r.rates != nil {
		r.rateBuf = append(r.rateBuf, &domain.RatePoint{
			PoolAddress:  update.PoolAddress,
			SourceMint:   update.SourceMint,
			TargetMint:   update.TargetMint,
			Dex:          update.Dex,
			ExchangeRate: update.ExchangeRate,
			LiquidityUSD: update.LiquidityUSD,
			Slot:         update.Slot,
			TimestampMs:  r.now().UnixMilli(),
		})
		if len(r.rateBuf) >= rateFlushBatch {
			r.flushRates(ctx)
		}
	}
}

// handleWhiff routes an intelligence signal into the burst buffer.
func (r *Runner) handleWhiff(whiff domain.WhiffEvent) {
	r.pressure.Push(whiff, r.now())
	r.metrics.WhiffEventsBuffered.Inc()
	r.metrics.PressureBufferSize.Set(float64(r.pressure.Len()))
}

// scan runs one multiverse pass and persists the best cycle found.
func (r *Runner) scan(ctx context.Context) {
	if r.graph.NodeCount() == 0 {
		return
	}

	result := r.scanner.Scan(ctx, r.graph, r.baseMint)
	r.metrics.ScanDuration.Observe(result.Stats.Duration.Seconds())
	r.metrics.PathsExplored.Add(float64(result.Stats.PathsExplored))
	r.metrics.PathsPruned.Add(float64(result.Stats.PathsPruned))
	for hops, found := range result.CyclesByHops {
		r.metrics.CyclesFound.WithLabelValues(strconv.Itoa(hops)).Add(float64(len(found)))
	}

	if result.BestCycle == nil {
		r.metrics.ScansTotal.WithLabelValues("empty").Inc()
		r.metrics.BestProfitPct.Set(0)
		return
	}
	r.metrics.ScansTotal.WithLabelValues("found").Inc()
	r.metrics.BestProfitPct.Set(result.BestCycle.ProfitPct)

	// The graph may have moved since the scan snapshot; re-validate
	// the winning path hop by hop before acting on it.
	validated, ok := r.finder.ValidatePath(r.graph, result.BestCycle.Path)
	if !ok {
		r.metrics.ScansTotal.WithLabelValues("gone").Inc()
		return
	}

	r.log.WithFields(logrus.Fields{
		"hops":       validated.HopCount,
		"profit_pct": validated.ProfitPct,
		"path":       validated.Path,
		"liquidity":  validated.MinLiquidityUSD,
	}).Info("arbitrage cycle detected")

	r.persistOpportunity(ctx, validated)
}

func (r *Runner) persistOpportunity(ctx context.Context, c domain.Cycle) {
	if r.opportunities == nil {
		return
	}

	slot := r.consensus.LatestSlot()
	nowMs := r.now().UnixMilli()
	opp := &domain.Opportunity{
		OpportunityID:   idhash.ComputeOpportunityID(r.baseMint, c.Path, c.PoolAddresses, slot),
		BaseMint:        r.baseMint,
		Path:            c.Path,
		PoolAddresses:   c.PoolAddresses,
		Dexes:           c.Dexes,
		HopCount:        c.HopCount,
		ProfitPct:       c.ProfitPct,
		MinLiquidityUSD: c.MinLiquidityUSD,
		TotalFeeBps:     c.TotalFeeBps,
		Slot:            slot,
		DiscoveredAt:    nowMs,
		CreatedAt:       nowMs,
	}

	if err := r.opportunities.Insert(ctx, opp); err != nil {
		// The same cycle rediscovered at the same slot is expected.
		if !errors.Is(err, storage.ErrDuplicateKey) {
			r.metrics.DBQueryErrors.WithLabelValues("postgres", "insert_opportunity").Inc()
			r.log.WithError(err).Error("failed to persist opportunity")
		}
		return
	}
	r.metrics.OpportunitiesStored.Inc()
}

// prune drops edges older than the slot age budget.
func (r *Runner) prune() {
	latest := r.consensus.LatestSlot()
	if latest <= r.maxEdgeAgeSlots {
		return
	}

	removed := r.graph.PruneStale(latest - r.maxEdgeAgeSlots)
	if removed > 0 {
		r.metrics.EdgesPruned.Add(float64(removed))
		r.log.WithField("removed", removed).Debug("pruned stale edges")
	}

	stats := r.graph.Snapshot()
	r.metrics.GraphEdges.Set(float64(stats.EdgeCount))
	r.metrics.GraphNodes.Set(float64(stats.NodeCount))
}

// collapse folds the latest whiff burst into per-mint signals.
func (r *Runner) collapse() {
	now := r.now()
	collapsed := r.pressure.Collapse(r.collapseWindow, now)
	if len(collapsed) > 0 {
		r.metrics.WhiffEventsCollapsed.Add(float64(len(collapsed)))
		for _, ev := range collapsed {
			r.log.WithFields(logrus.Fields{
				"mint":      ev.Mint,
				"type":      ev.WhiffType,
				"direction": ev.Direction,
				"heat":      r.pressure.MarketHeat(ev.Mint),
			}).Debug("collapsed whiff signal")
		}
	}

	r.pressure.Prune(r.maxWhiffAge, now)
	r.metrics.PressureBufferSize.Set(float64(r.pressure.Len()))
}

// flushRates writes the buffered rate points in one batch.
func (r *Runner) flushRates(ctx context.Context) {
	if r.rates == nil || len(r.rateBuf) == 0 {
		return
	}

	if err := r.rates.InsertBulk(ctx, r.rateBuf); err != nil {
		r.metrics.DBQueryErrors.WithLabelValues("clickhouse", "insert_rates").Inc()
		r.log.WithError(err).Error("failed to flush rate points")
	} else {
		r.metrics.RatePointsStored.Add(float64(len(r.rateBuf)))
	}
	r.rateBuf = r.rateBuf[:0]
}
