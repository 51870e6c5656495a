package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"solana-arb-engine/internal/config"
	"solana-arb-engine/internal/consensus"
	"solana-arb-engine/internal/cycles"
	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/graph"
	"solana-arb-engine/internal/ingestion"
	"solana-arb-engine/internal/logging"
	"solana-arb-engine/internal/multiverse"
	"solana-arb-engine/internal/observability"
	"solana-arb-engine/internal/pressure"
	"solana-arb-engine/internal/solana"
	"solana-arb-engine/internal/storage"
	chstore "solana-arb-engine/internal/storage/clickhouse"
	"solana-arb-engine/internal/storage/migrations"
	pgstore "solana-arb-engine/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration file")
	metricsAddr := flag.String("metrics-addr", "", "Override metrics HTTP address from config")
	flag.Parse()

	// DSNs and API keys live in .env in development; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logging: %v\n", err)
		os.Exit(1)
	}
	log := logging.WithComponent(logger, "engine")

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go handleSignals(cancel, done, log)

	err = run(ctx, cfg, metrics, logger, log)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		log.WithError(err).Fatal("engine failed")
	}
	log.Info("shutdown complete")
}

// serveMetrics exposes /metrics and /health.
func serveMetrics(addr string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	log.WithField("addr", addr).Info("starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("metrics server error")
	}
}

// handleSignals cancels on the first signal and force-exits on the
// second or after a grace period.
func handleSignals(cancel context.CancelFunc, done <-chan error, log *logrus.Entry) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("initiating graceful shutdown")
	cancel()

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Warn("second signal, forcing immediate shutdown")
		os.Exit(1)
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timed out after 30s, forcing exit")
		os.Exit(1)
	case <-done:
	}
}

func run(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *logrus.Logger, log *logrus.Entry) error {
	finder, err := cycles.NewFinder(cycles.Config{
		MaxHops:            cfg.Detector.MaxHops,
		MinProfitThreshold: cfg.Detector.MinProfitThreshold,
		MinLiquidityUSD:    cfg.Detector.MinLiquidityUSD,
	})
	if err != nil {
		return fmt.Errorf("create cycle finder: %w", err)
	}

	scanner, clamped, err := multiverse.NewScanner(multiverse.Config{
		MinHops:             cfg.Scanner.MinHops,
		MaxHops:             cfg.Scanner.MaxHops,
		Thresholds:          cfg.Scanner.Thresholds,
		MinLiquidityUSD:     cfg.Scanner.MinLiquidityUSD,
		MaxCyclesPerLevel:   cfg.Scanner.MaxCyclesPerLevel,
		OptimisticHopWeight: cfg.Scanner.OptimisticHopWeight,
	})
	if err != nil {
		return fmt.Errorf("create scanner: %w", err)
	}
	if clamped {
		log.WithFields(logrus.Fields{
			"min_hops": scanner.Config().MinHops,
			"max_hops": scanner.Config().MaxHops,
		}).Warn("scanner hop range clamped into supported bounds")
	}

	gate, err := consensus.NewEngine(cfg.Consensus.MaxSignatures, cfg.Consensus.MaxSlotLag)
	if err != nil {
		return fmt.Errorf("create consensus engine: %w", err)
	}

	poolGraph := graph.New()
	whiffBuffer := pressure.New(cfg.Pressure.BufferCapacity)

	opportunityStore, rateStore, closeStores, err := openStores(ctx, cfg, log)
	defer closeStores()
	if err != nil {
		return err
	}

	updates := make(chan domain.PriceUpdate, 10_000)
	whiffs := make(chan domain.WhiffEvent, 1_000)

	for _, provider := range cfg.Providers {
		if err := startFeed(ctx, provider, gate, metrics, logger, updates, whiffs); err != nil {
			return err
		}
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Graph:           poolGraph,
		Finder:          finder,
		Scanner:         scanner,
		Consensus:       gate,
		Pressure:        whiffBuffer,
		Updates:         updates,
		Whiffs:          whiffs,
		Opportunities:   opportunityStore,
		Rates:           rateStore,
		Metrics:         metrics,
		Log:             logging.WithComponent(logger, "runner"),
		BaseMint:        cfg.Engine.BaseMint,
		ScanInterval:    cfg.Engine.ScanInterval,
		PruneInterval:   cfg.Engine.PruneInterval,
		MaxEdgeAgeSlots: cfg.Engine.MaxEdgeAgeSlots,
		CollapseWindow:  cfg.Pressure.CollapseWindow,
		MaxWhiffAge:     cfg.Pressure.MaxEventAge,
	})

	return runner.Run(ctx)
}

// openStores connects the optional persistence backends. A missing DSN
// disables that backend; the engine core never depends on either.
func openStores(ctx context.Context, cfg *config.Config, log *logrus.Entry) (storage.OpportunityStore, storage.RateTimeseriesStore, func(), error) {
	var (
		opportunities storage.OpportunityStore
		rates         storage.RateTimeseriesStore
		closers       []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, nil, closeAll, fmt.Errorf("run postgres migrations: %w", err)
		}
		opportunities = pgstore.NewOpportunityStore(pool)
		log.Info("opportunity persistence enabled (postgres)")
	}

	if dsn := cfg.Storage.ClickhouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })

		rates = chstore.NewRateTimeseriesStore(conn)
		log.Info("rate timeseries persistence enabled (clickhouse)")
	}

	return opportunities, rates, closeAll, nil
}

// startFeed connects one provider's WebSocket and starts its feed
// goroutine. A configured RPC endpoint gets a startup health probe.
func startFeed(ctx context.Context, provider config.Provider, gate *consensus.Engine, metrics *observability.Metrics, logger *logrus.Logger, updates chan domain.PriceUpdate, whiffs chan domain.WhiffEvent) error {
	log := logging.WithComponent(logger, "feed").WithField("provider", provider.Name)

	if provider.RPC != "" {
		probeRPC(ctx, provider.RPC, metrics, log)
	}

	wsConfig := solana.DefaultWSConfig()
	wsConfig.OnReconnect = func() {
		// Only this provider's mark is suspect after a gap; the
		// shared dedup set and global watermark still hold for the
		// streams that stayed up.
		gate.ResetProvider(provider.Name)
		metrics.WSReconnects.WithLabelValues(provider.Name).Inc()
	}

	ws, err := solana.NewWSClient(ctx, provider.WSURL, &wsConfig, log)
	if err != nil {
		return fmt.Errorf("connect provider %s: %w", provider.Name, err)
	}
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	feed := ingestion.NewFeed(provider.Name, ws, ingestion.DefaultPrograms(), updates, whiffs, metrics, logging.WithComponent(logger, "feed"))
	go func() {
		if err := feed.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("feed stopped")
		}
	}()

	return nil
}

// probeRPC checks the node before trusting its WebSocket stream.
func probeRPC(ctx context.Context, endpoint string, metrics *observability.Metrics, log *logrus.Entry) {
	rpc := solana.NewHTTPClient(endpoint)

	start := time.Now()
	if err := rpc.GetHealth(ctx); err != nil {
		log.WithError(err).Warn("provider RPC health probe failed")
		return
	}
	metrics.RPCCallLatency.WithLabelValues("getHealth").Observe(time.Since(start).Seconds())

	start = time.Now()
	slot, err := rpc.GetSlot(ctx)
	if err != nil {
		log.WithError(err).Warn("provider RPC slot probe failed")
		return
	}
	metrics.RPCCallLatency.WithLabelValues("getSlot").Observe(time.Since(start).Seconds())

	log.WithField("slot", slot).Info("provider RPC probe ok")
}
