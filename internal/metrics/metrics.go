package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoundsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voltfed",
		Name:      "rounds_started_total",
		Help:      "Training rounds started, by model.",
	}, []string{"model"})

	RoundsAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voltfed",
		Name:      "rounds_aborted_total",
		Help:      "Training rounds aborted on timeout, by model.",
	}, []string{"model"})

	UpdatesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voltfed",
		Name:      "updates_received_total",
		Help:      "Client updates accepted into a round buffer, by model.",
	}, []string{"model"})

	UpdatesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voltfed",
		Name:      "updates_rejected_total",
		Help:      "Client updates rejected before buffering, by model and reason.",
	}, []string{"model", "reason"})

	AggregationsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voltfed",
		Name:      "aggregations_completed_total",
		Help:      "Aggregations that produced a new global model version, by model.",
	}, []string{"model"})

	ActiveRounds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voltfed",
		Name:      "active_rounds",
		Help:      "Rounds currently open across all models.",
	})

	ModelVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "voltfed",
		Name:      "model_version",
		Help:      "Latest committed version per model.",
	}, []string{"model"})
)
