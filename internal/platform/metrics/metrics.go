// Package metrics holds the Prometheus collectors shared by storyhub services.
// They register on the default registry and are served by the router's /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// ProgressCacheEntries is the number of (user, story) pairs held in memory.
	ProgressCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storyhub_progress_cache_entries",
		Help: "Reading-progress entries currently cached",
	})

	ProgressFlushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyhub_progress_flush_total",
			Help: "Progress cache flushes by outcome",
		},
		[]string{"outcome"},
	)

	ProgressFlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storyhub_progress_flush_duration_seconds",
		Help:    "Duration of progress cache flushes in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	})

	ProgressLoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyhub_progress_load_total",
			Help: "Progress cache loads by outcome",
		},
		[]string{"outcome"},
	)

	StorySearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyhub_story_search_total",
			Help: "Advanced story searches by sort order",
		},
		[]string{"sort"},
	)

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyhub_outbox_published_total",
		Help: "Catalog outbox events published to NATS",
	})

	StoryEventsHandledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyhub_story_events_handled_total",
			Help: "Catalog story events consumed by the social service, by outcome",
		},
		[]string{"outcome"},
	)

	AnalyticsBatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyhub_analytics_batch_total",
			Help: "Analytics consumer batches by outcome",
		},
		[]string{"outcome"},
	)

	AnalyticsEventsStoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyhub_analytics_events_stored_total",
		Help: "New analytics events written to the sink",
	})
)

// RecordFlush records one flush attempt.
func RecordFlush(d time.Duration, err error) {
	ProgressFlushDuration.Observe(d.Seconds())
	ProgressFlushTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordLoad records one cache load attempt.
func RecordLoad(err error) {
	ProgressLoadTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordStoryEvent records one consumed catalog story event.
func RecordStoryEvent(err error) {
	StoryEventsHandledTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordAnalyticsBatch records one sink write of stored new events.
func RecordAnalyticsBatch(stored int, err error) {
	AnalyticsBatchTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		AnalyticsEventsStoredTotal.Add(float64(stored))
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
