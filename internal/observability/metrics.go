// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Market data metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CoalescedCalls   prometheus.Counter
	QueueRejections  *prometheus.CounterVec

	// Discovery metrics
	TokensDiscovered  prometheus.Counter
	TokensRejected    *prometheus.CounterVec
	LiquidityWaits    *prometheus.CounterVec
	ScanCycles        *prometheus.CounterVec
	KnownTokens       prometheus.Gauge

	// Position metrics
	PositionsOpen    prometheus.Gauge
	PositionsClosed  *prometheus.CounterVec
	SnipesTotal      *prometheus.CounterVec
	PersistenceFails prometheus.Counter

	// Connection metrics
	WSReconnects   prometheus.Counter
	SubscriptionUp prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_sniper"
	}

	return &Metrics{
		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "provider_requests_total",
			Help:      "Total upstream provider requests by provider, kind and status",
		}, []string{"provider", "kind", "status"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "provider_latency_seconds",
			Help:      "Upstream provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "cache_hits_total",
			Help:      "Cache hits by data kind",
		}, []string{"kind"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "cache_misses_total",
			Help:      "Cache misses by data kind",
		}, []string{"kind"}),
		CoalescedCalls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "coalesced_calls_total",
			Help:      "Calls served by an already in-flight request",
		}),
		QueueRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "queue_rejections_total",
			Help:      "Requests rejected because a provider queue was full",
		}, []string{"provider"}),

		TokensDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "tokens_discovered_total",
			Help:      "Total new tokens that passed discovery filters",
		}),
		TokensRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "tokens_rejected_total",
			Help:      "Tokens dropped during discovery by reason",
		}, []string{"reason"}),
		LiquidityWaits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "liquidity_waits_total",
			Help:      "Liquidity wait outcomes",
		}, []string{"outcome"}),
		ScanCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "scan_cycles_total",
			Help:      "Discovery scan cycles by status",
		}, []string{"status"}),
		KnownTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "known_tokens",
			Help:      "Size of the persisted known-token set",
		}),

		PositionsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "open",
			Help:      "Number of positions currently monitored",
		}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "closed_total",
			Help:      "Positions closed by exit reason",
		}, []string{"reason"}),
		SnipesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "snipes_total",
			Help:      "Snipe attempts by outcome",
		}, []string{"outcome"}),
		PersistenceFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "persistence_failures_total",
			Help:      "Failed position file writes",
		}),

		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "ws_reconnects_total",
			Help:      "WebSocket subscription re-establishments",
		}),
		SubscriptionUp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "subscription_up",
			Help:      "Whether the account event subscription is live (1) or down (0)",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
