// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Consensus metrics
	EventsAccepted   prometheus.Counter
	EventsDuplicate  prometheus.Counter
	EventsStale      prometheus.Counter
	SlotWatermark    prometheus.Gauge
	ProviderSlotLag  *prometheus.GaugeVec
	ParseErrors      *prometheus.CounterVec

	// Graph metrics
	EdgesUpserted prometheus.Counter
	EdgesPruned   prometheus.Counter
	GraphEdges    prometheus.Gauge
	GraphNodes    prometheus.Gauge

	// Scan metrics
	ScansTotal      *prometheus.CounterVec
	ScanDuration    prometheus.Histogram
	CyclesFound     *prometheus.CounterVec
	BestProfitPct   prometheus.Gauge
	PathsExplored   prometheus.Counter
	PathsPruned     prometheus.Counter

	// Pressure metrics
	WhiffEventsBuffered prometheus.Counter
	WhiffEventsCollapsed prometheus.Counter
	PressureBufferSize  prometheus.Gauge

	// Feed metrics
	WSMessagesReceived *prometheus.CounterVec
	WSReconnects       *prometheus.CounterVec
	RPCCallLatency     *prometheus.HistogramVec

	// Database metrics
	OpportunitiesStored prometheus.Counter
	RatePointsStored    prometheus.Counter
	DBQueryErrors       *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with the default
// Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers all metrics with the given registerer.
// Tests pass a fresh registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_arb_engine"
	}

	factory := promauto.With(reg)

	return &Metrics{
		// Consensus metrics
		EventsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "events_accepted_total",
			Help:      "Total number of events accepted by the consensus gate",
		}),
		EventsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "events_duplicate_total",
			Help:      "Total number of duplicate events rejected",
		}),
		EventsStale: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "events_stale_total",
			Help:      "Total number of stale-slot events rejected",
		}),
		SlotWatermark: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "slot_watermark",
			Help:      "Highest Solana slot number accepted across all providers",
		}),
		ProviderSlotLag: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "provider_slot_lag",
			Help:      "Slots each provider trails the global watermark by",
		}, []string{"provider"}),
		ParseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "parse_errors_total",
			Help:      "Total number of notification parse errors by type",
		}, []string{"error_type"}),

		// Graph metrics
		EdgesUpserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges_upserted_total",
			Help:      "Total number of edge upserts applied to the pool graph",
		}),
		EdgesPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges_pruned_total",
			Help:      "Total number of stale edges removed from the pool graph",
		}),
		GraphEdges: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Current number of directed edges in the pool graph",
		}),
		GraphNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Current number of token nodes in the pool graph",
		}),

		// Scan metrics
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scans_total",
			Help:      "Total number of cycle scans by status",
		}, []string{"status"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scan_duration_seconds",
			Help:      "Multi-hop scan duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		CyclesFound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "cycles_found_total",
			Help:      "Total number of profitable cycles found by hop count",
		}, []string{"hops"}),
		BestProfitPct: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "best_profit_pct",
			Help:      "Profit percentage of the best cycle in the latest scan",
		}),
		PathsExplored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "paths_explored_total",
			Help:      "Total number of DFS branches explored",
		}),
		PathsPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "paths_pruned_total",
			Help:      "Total number of DFS branches abandoned by pruning",
		}),

		// Pressure metrics
		WhiffEventsBuffered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pressure",
			Name:      "whiff_events_buffered_total",
			Help:      "Total number of whiff events pushed into the burst buffer",
		}),
		WhiffEventsCollapsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pressure",
			Name:      "whiff_events_collapsed_total",
			Help:      "Total number of collapsed events handed to the consumer",
		}),
		PressureBufferSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pressure",
			Name:      "buffer_size",
			Help:      "Current number of raw events in the burst buffer",
		}),

		// Feed metrics
		WSMessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ws_messages_received_total",
			Help:      "Total number of WebSocket messages received by provider",
		}, []string{"provider"}),
		WSReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnects by provider",
		}, []string{"provider"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		OpportunitiesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "opportunities_stored_total",
			Help:      "Total number of opportunities persisted",
		}),
		RatePointsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "rate_points_stored_total",
			Help:      "Total number of rate timeseries points persisted",
		}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
