// Package observability holds the Prometheus instruments shared by the engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forest_welfare",
		Subsystem: "participation",
		Name:      "registrations_total",
		Help:      "Registration attempts by outcome.",
	}, []string{"outcome"})
	cancellationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forest_welfare",
		Subsystem: "participation",
		Name:      "cancellations_total",
		Help:      "Cancellation attempts by outcome.",
	}, []string{"outcome"})
	completionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forest_welfare",
		Subsystem: "participation",
		Name:      "completions_total",
		Help:      "Completion attempts by outcome.",
	}, []string{"outcome"})
	scoringDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "forest_welfare",
		Subsystem: "recommendation",
		Name:      "scoring_duration_seconds",
		Help:      "Latency of scoring collaborator calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})
	recommendationBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forest_welfare",
		Subsystem: "recommendation",
		Name:      "batches_total",
		Help:      "Recommendation generation attempts by outcome.",
	}, []string{"outcome"})
	participationPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forest_welfare",
		Subsystem: "persistence",
		Name:      "last_participation_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent participation write.",
	})
)

func init() {
	prometheus.MustRegister(
		registrationsTotal,
		cancellationsTotal,
		completionsTotal,
		scoringDuration,
		recommendationBatches,
		participationPersistGauge,
	)
}

// RecordRegistration counts one registration attempt.
func RecordRegistration(outcome string) {
	registrationsTotal.WithLabelValues(outcome).Inc()
}

// RecordCancellation counts one cancellation attempt.
func RecordCancellation(outcome string) {
	cancellationsTotal.WithLabelValues(outcome).Inc()
}

// RecordCompletion counts one completion attempt.
func RecordCompletion(outcome string) {
	completionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveScoringDuration records one scoring collaborator round trip.
func ObserveScoringDuration(d time.Duration) {
	scoringDuration.Observe(d.Seconds())
}

// RecordRecommendationBatch counts one generation attempt.
func RecordRecommendationBatch(outcome string) {
	recommendationBatches.WithLabelValues(outcome).Inc()
}

// RecordParticipationPersisted updates the persistence watermark gauge.
func RecordParticipationPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	participationPersistGauge.Set(float64(ts.Unix()))
}
