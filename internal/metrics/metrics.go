package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesFetched counts messages fetched and parsed.
	MessagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtriage_messages_fetched_total",
			Help: "Total number of messages fetched and parsed",
		},
	)

	// MessagesSkipped counts messages left out of a fetch pass.
	MessagesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtriage_messages_skipped_total",
			Help: "Total number of messages skipped during fetch",
		},
		[]string{"reason"}, // reason: fetch, parse, duplicate, claimed
	)

	// EmailsEnriched counts enrichment outcomes.
	EmailsEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtriage_emails_enriched_total",
			Help: "Total number of emails run through enrichment",
		},
		[]string{"status"}, // status: processed, error
	)

	// BackendCallLatency records language-model call latency.
	BackendCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailtriage_backend_call_latency_ms",
			Help:    "Language-model backend call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 12),
		},
		[]string{"endpoint", "status"},
	)

	// FollowUpsSent counts follow-up send attempts.
	FollowUpsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtriage_followups_sent_total",
			Help: "Total number of follow-up send attempts",
		},
		[]string{"status"}, // status: sent, error
	)
)

// RecordBackendCall records the latency of one backend call.
func RecordBackendCall(endpoint, status string, duration time.Duration) {
	BackendCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}
