package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignaturesValidated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epetitions_signatures_validated_total",
			Help: "Total signatures that completed email validation.",
		},
	)
	ThresholdCrossings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epetitions_threshold_crossings_total",
			Help: "Total petition threshold crossings by threshold.",
		},
		[]string{"threshold"},
	)
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epetitions_emails_sent_total",
			Help: "Total notification email send attempts by kind and status.",
		},
		[]string{"kind", "status"},
	)
	DeliveriesEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epetitions_deliveries_enqueued_total",
			Help: "Total email deliveries enqueued by kind.",
		},
		[]string{"kind"},
	)
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epetitions_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern and status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"pattern", "status"},
	)
)
