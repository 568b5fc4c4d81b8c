package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyqueue",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Sync passes by outcome.",
		},
		[]string{"outcome"},
	)

	syncDraftsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyqueue",
			Subsystem: "sync",
			Name:      "drafts_total",
			Help:      "Drafts submitted during sync passes by result.",
		},
		[]string{"result"},
	)

	connectivityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyqueue",
			Subsystem: "connectivity",
			Name:      "transitions_total",
			Help:      "Observed connectivity transitions by new status.",
		},
		[]string{"to"},
	)
)
