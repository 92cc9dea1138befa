// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenteval_evaluations_started_total",
			Help: "Evaluations started, by mode",
		},
		[]string{"mode"},
	)

	EvaluationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenteval_evaluations_completed_total",
			Help: "Evaluations that emitted a complete event, by mode",
		},
		[]string{"mode"},
	)

	EvaluationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenteval_evaluations_failed_total",
			Help: "Evaluations that ended with an error event, by mode",
		},
		[]string{"mode"},
	)

	ModelQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenteval_model_queries_total",
			Help: "Model queries, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	QueryRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenteval_model_query_retries_total",
			Help: "Retries after transient provider errors, by provider",
		},
		[]string{"provider"},
	)

	QueryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agenteval_model_query_seconds",
			Help:    "Model query latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		},
		[]string{"provider"},
	)

	JudgeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenteval_judge_fallbacks_total",
			Help: "Judge scores replaced by the fallback score set, by judge",
		},
		[]string{"judge"},
	)

	WeightedScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agenteval_weighted_score",
			Help: "Most recent weighted score, by model",
		},
		[]string{"model"},
	)
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)
