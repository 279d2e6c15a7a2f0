// Package metrics holds the Prometheus collectors shared by the HTTP layer
// and the webhook dispatcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook outcomes.
const (
	OutcomeAccepted     = "accepted"
	OutcomeRejected     = "rejected"
	OutcomeDuplicate    = "duplicate"
	OutcomeHandled      = "handled"
	OutcomeFailed       = "failed"
	OutcomeNotifyFailed = "notify_failed"
	OutcomeDropped      = "dropped"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: []float64{.005, .01, .025, .05, .1, .2, .5, 1, 2.5, 5},
	}, []string{"method", "route"})

	WebhookUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telegram_webhook_updates_total",
		Help: "Telegram webhook updates by outcome.",
	}, []string{"outcome"})

	UpdateHandlingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "telegram_update_handling_seconds",
		Help:    "Time spent in the asynchronous update handler.",
		Buckets: prometheus.DefBuckets,
	})
)
