package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyqueue",
			Subsystem: "worker",
			Name:      "cache_requests_total",
			Help:      "Intercepted GET requests by result (hit, miss, fallback, network_error).",
		},
		[]string{"result"},
	)

	precacheAssetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyqueue",
			Subsystem: "worker",
			Name:      "precache_assets_total",
			Help:      "Manifest assets fetched during install by result.",
		},
		[]string{"result"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyqueue",
			Subsystem: "worker",
			Name:      "notifications_total",
			Help:      "Notification requests by outcome (shown, denied, failed).",
		},
		[]string{"outcome"},
	)
)
