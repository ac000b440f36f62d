package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "criollolist_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "criollolist_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "criollolist_messages_sent_total",
			Help: "Total messages sent",
		},
	)

	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "criollolist_conversations_created_total",
			Help: "Total conversations created",
		},
	)

	FeedSubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "criollolist_feed_subscriptions_active",
			Help: "Currently open realtime message feeds",
		},
	)

	ServicesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "criollolist_services_created_total",
			Help: "Total service listings created",
		},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "criollolist_search_queries_total",
			Help: "Total service search queries",
		},
	)

	// Infrastructure metrics
	IndexTasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "criollolist_index_tasks_processed_total",
			Help: "Search index tasks processed",
		},
		[]string{"status"}, // "ok" or "error"
	)
)
