package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quoteOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_quote_outcomes_total",
			Help: "Quote cycle outcomes by terminal state.",
		},
		[]string{"outcome"},
	)

	intentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_intent_outcomes_total",
			Help: "Payment intent creation outcomes.",
		},
		[]string{"outcome"},
	)

	finalizeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_finalize_outcomes_total",
			Help: "Order finalization outcomes.",
		},
		[]string{"outcome"},
	)

	staleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_stale_results_discarded_total",
			Help: "Async quote or intent results discarded because newer inputs superseded them.",
		},
	)
)
