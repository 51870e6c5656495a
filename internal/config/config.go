// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"solana-arb-engine/internal/logging"
)

// Config is the full configuration for the arbitrage engine.
type Config struct {
	Logging   logging.Config  `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Engine    EngineConfig    `yaml:"engine"`
	Detector  DetectorConfig  `yaml:"detector"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Consensus ConsensusConfig `yaml:"consensus"`
	Pressure  PressureConfig  `yaml:"pressure"`
	Providers []Provider      `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr      string `yaml:"addr"`      // empty disables the metrics server
	Namespace string `yaml:"namespace"` // metric namespace, defaults internally
}

// EngineConfig controls the live scan loop.
type EngineConfig struct {
	BaseMint        string        `yaml:"base_mint"`
	ScanInterval    time.Duration `yaml:"scan_interval"`
	PruneInterval   time.Duration `yaml:"prune_interval"`
	MaxEdgeAgeSlots uint64        `yaml:"max_edge_age_slots"`
}

// DetectorConfig configures the single-depth cycle detector.
type DetectorConfig struct {
	MaxHops            int     `yaml:"max_hops"`
	MinProfitThreshold float64 `yaml:"min_profit_threshold"`
	MinLiquidityUSD    uint64  `yaml:"min_liquidity_usd"`
}

// ScannerConfig configures the multi-hop scanner.
type ScannerConfig struct {
	MinHops             int             `yaml:"min_hops"`
	MaxHops             int             `yaml:"max_hops"`
	Thresholds          map[int]float64 `yaml:"thresholds"` // per hop count, as fractions
	MinLiquidityUSD     uint64          `yaml:"min_liquidity_usd"`
	MaxCyclesPerLevel   int             `yaml:"max_cycles_per_level"`
	OptimisticHopWeight float64         `yaml:"optimistic_hop_weight"` // 0 disables pruning
}

// ConsensusConfig configures the multi-provider event gate.
type ConsensusConfig struct {
	MaxSignatures int    `yaml:"max_signatures"`
	MaxSlotLag    uint64 `yaml:"max_slot_lag"`
}

// PressureConfig configures the whiff burst buffer.
type PressureConfig struct {
	BufferCapacity int           `yaml:"buffer_capacity"`
	CollapseWindow time.Duration `yaml:"collapse_window"`
	MaxEventAge    time.Duration `yaml:"max_event_age"`
}

// Provider is one redundant notification source.
type Provider struct {
	Name  string `yaml:"name"`
	WSURL string `yaml:"ws_url"`
	RPC   string `yaml:"rpc_url"`
}

// StorageConfig holds backend DSNs. Both are optional; the engine runs
// without persistence.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Load reads a YAML config file, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated with working defaults for
// everything except provider endpoints.
func Default() *Config {
	return &Config{
		Logging: logging.Config{Level: "info", Format: "json", Output: "stdout"},
		Metrics: MetricsConfig{Addr: ":9090"},
		Engine: EngineConfig{
			BaseMint:        "So11111111111111111111111111111111111111112",
			ScanInterval:    500 * time.Millisecond,
			PruneInterval:   30 * time.Second,
			MaxEdgeAgeSlots: 300,
		},
		Detector: DetectorConfig{
			MaxHops:            5,
			MinProfitThreshold: 0.002,
			MinLiquidityUSD:    10_000,
		},
		Scanner: ScannerConfig{
			MinHops:             2,
			MaxHops:             5,
			MinLiquidityUSD:     10_000,
			MaxCyclesPerLevel:   50,
			OptimisticHopWeight: -0.003,
		},
		Consensus: ConsensusConfig{
			MaxSignatures: 10_000,
			MaxSlotLag:    2,
		},
		Pressure: PressureConfig{
			BufferCapacity: 1000,
			CollapseWindow: 200 * time.Millisecond,
			MaxEventAge:    10 * time.Second,
		},
	}
}

// applyEnv overrides DSNs from the environment, where deployments
// usually keep credentials.
func (c *Config) applyEnv() {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		c.Storage.PostgresDSN = dsn
	}
	if dsn := os.Getenv("CLICKHOUSE_DSN"); dsn != "" {
		c.Storage.ClickhouseDSN = dsn
	}
}

// Validate fails fast on deployment mistakes.
func (c *Config) Validate() error {
	if c.Engine.BaseMint == "" {
		return fmt.Errorf("engine.base_mint must not be empty")
	}
	if c.Engine.ScanInterval <= 0 {
		return fmt.Errorf("engine.scan_interval must be positive, got %v", c.Engine.ScanInterval)
	}
	if c.Engine.PruneInterval <= 0 {
		return fmt.Errorf("engine.prune_interval must be positive, got %v", c.Engine.PruneInterval)
	}
	if c.Detector.MaxHops < 3 || c.Detector.MaxHops > 5 {
		return fmt.Errorf("detector.max_hops must be in [3, 5], got %d", c.Detector.MaxHops)
	}
	if c.Detector.MinProfitThreshold < 0 {
		return fmt.Errorf("detector.min_profit_threshold must not be negative, got %v", c.Detector.MinProfitThreshold)
	}
	if c.Scanner.MinHops > c.Scanner.MaxHops {
		return fmt.Errorf("scanner.min_hops %d exceeds scanner.max_hops %d", c.Scanner.MinHops, c.Scanner.MaxHops)
	}
	for hops, threshold := range c.Scanner.Thresholds {
		if hops < 2 || hops > 5 {
			return fmt.Errorf("scanner.thresholds: unsupported hop count %d", hops)
		}
		if threshold < 0 {
			return fmt.Errorf("scanner.thresholds[%d] must not be negative, got %v", hops, threshold)
		}
	}
	if c.Scanner.OptimisticHopWeight > 0 {
		return fmt.Errorf("scanner.optimistic_hop_weight must be zero or negative, got %v", c.Scanner.OptimisticHopWeight)
	}
	if c.Consensus.MaxSignatures <= 0 {
		return fmt.Errorf("consensus.max_signatures must be positive, got %d", c.Consensus.MaxSignatures)
	}
	if c.Pressure.BufferCapacity <= 0 {
		return fmt.Errorf("pressure.buffer_capacity must be positive, got %d", c.Pressure.BufferCapacity)
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name must not be empty", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.WSURL == "" {
			return fmt.Errorf("provider %q: ws_url must not be empty", p.Name)
		}
	}
	return nil
}
