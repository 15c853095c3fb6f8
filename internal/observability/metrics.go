package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "training_service",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted to Postgres.",
	})
	refreshGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "training_service",
		Subsystem: "refresh",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed refresh run.",
	})
	pullOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "refresh",
		Name:      "pull_outcomes_total",
		Help:      "Provider pull outcomes by source and terminal state.",
	}, []string{"source", "outcome"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, refreshGauge, pullOutcomes)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordRefreshRun updates the refresh watermark gauge.
func RecordRefreshRun(ts time.Time) {
	if ts.IsZero() {
		return
	}
	refreshGauge.Set(float64(ts.Unix()))
}

// RecordPullOutcome counts one provider pull's terminal state.
func RecordPullOutcome(source, outcome string) {
	pullOutcomes.WithLabelValues(source, outcome).Inc()
}
