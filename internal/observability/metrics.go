package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for FlightSurety.
type Metrics struct {
	// --- Core Processing ---
	CoreCallsApplied  *prometheus.CounterVec
	CoreCallsRejected *prometheus.CounterVec
	CoreCallDuration  *prometheus.HistogramVec
	CoreJournals      *prometheus.CounterVec
	CoreSequence      prometheus.Gauge
	CoreNotifications *prometheus.CounterVec

	// --- Domain ---
	TotalFunds          prometheus.Gauge
	OracleFeesCollected prometheus.Gauge
	FundedAirlines      prometheus.Gauge
	RegisteredOracles   prometheus.Gauge
	OpenOracleRequests  prometheus.Gauge
	InsureesCredited    prometheus.Counter
	PayoutsTotal        prometheus.Counter

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ProjectionDrops     prometheus.Counter
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge

	// --- Ingestion ---
	IngestMessages *prometheus.CounterVec
	IngestToApply  *prometheus.HistogramVec

	// --- Persistence ---
	PersistCallsWritten    prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayCallsTotal  prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them on reg. A nil reg
// creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Core Processing
		CoreCallsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_core_calls_applied_total",
			Help: "Calls successfully applied by core",
		}, []string{"call_type"}),

		CoreCallsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_core_calls_rejected_total",
			Help: "Calls rejected (duplicate, validation)",
		}, []string{"call_type", "reason"}),

		CoreCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightsurety_core_call_apply_duration_seconds",
			Help:    "Time to apply a single call in core",
			Buckets: latencyBuckets,
		}, []string{"call_type"}),

		CoreJournals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_core_sequence",
			Help: "Current global sequence number",
		}),

		CoreNotifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_core_notifications_total",
			Help: "Notifications appended to the outbox",
		}, []string{"notification_type"}),

		// Domain
		TotalFunds: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_total_funds",
			Help: "Airline pool balance (fixed-point, 6 decimals)",
		}),

		OracleFeesCollected: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_oracle_fees",
			Help: "Oracle registration fees held (fixed-point, 6 decimals)",
		}),

		FundedAirlines: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_funded_airlines",
			Help: "Airlines in the Funded state",
		}),

		RegisteredOracles: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_registered_oracles",
			Help: "Registered oracles",
		}),

		OpenOracleRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_open_oracle_requests",
			Help: "Oracle requests still collecting responses",
		}),

		InsureesCredited: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_insurees_credited_total",
			Help: "Passenger credits issued by creditInsurees",
		}),

		PayoutsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_payouts_total",
			Help: "Successful pay calls",
		}),

		// Channel & Backpressure
		ChannelSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flightsurety_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ProjectionDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}),

		PublishDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_publish_drops_total",
			Help: "Notifications that failed to publish",
		}),

		PersistBackpressure: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		// Idempotency
		IdempotencyDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"call_type", "tier"}),

		DedupLRUSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_dedup_lru_size",
			Help: "Entries in the idempotency LRU",
		}),

		// Ingestion
		IngestMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_ingest_messages_total",
			Help: "Calls received over NATS by outcome",
		}, []string{"call_type", "outcome"}),

		IngestToApply: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightsurety_ingest_to_apply_seconds",
			Help:    "NATS receive to core apply complete",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"call_type"}),

		// Persistence
		PersistCallsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_persist_calls_written_total",
			Help: "Call envelopes written to the event log",
		}),

		PersistJournalsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_persist_journals_written_total",
			Help: "Journal rows written",
		}),

		PersistBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flightsurety_persist_batch_size",
			Help:    "Outputs per persistence transaction",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flightsurety_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_persist_errors_total",
			Help: "Persistence failures by stage",
		}, []string{"stage"}),

		PersistLastSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_persist_last_sequence",
			Help: "Last sequence committed to Postgres",
		}),

		// Snapshot
		SnapshotTaken: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_snapshot_taken_total",
			Help: "Snapshots written",
		}),

		SnapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flightsurety_snapshot_duration_seconds",
			Help:    "Snapshot write duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		SnapshotSizeBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_snapshot_size_bytes",
			Help: "Size of the latest snapshot",
		}),

		SnapshotLastSeq: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_snapshot_last_sequence",
			Help: "Sequence of the latest snapshot",
		}),

		ReplayCallsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_replay_calls_total",
			Help: "Calls replayed from the event log on startup",
		}),

		// Query API
		QueryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_query_requests_total",
			Help: "Query API requests",
		}, []string{"method"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightsurety_query_duration_seconds",
			Help:    "Query API latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"method"}),

		QueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_query_errors_total",
			Help: "Query API errors by code",
		}, []string{"method", "code"}),
	}
}
