package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_streams_active",
		Help: "Currently open chat streams",
	})

	StreamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_streams_total",
		Help: "Chat streams by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"stage"})

	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage"})

	GuardrailBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_guardrail_blocks_total",
		Help: "Blocked messages by direction",
	}, []string{"direction"})

	SnapshotEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_cache_entries",
		Help: "Subjects currently held in the snapshot cache",
	})

	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_persist_failures_total",
		Help: "Assistant messages that failed to persist after streaming",
	})
)

// Stream outcomes.
const (
	OutcomeDone         = "done"
	OutcomeError        = "error"
	OutcomeDisconnected = "disconnected"
)
