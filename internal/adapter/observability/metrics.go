// Package observability provides logging, metrics, and tracing for the
// generation pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of generative backend requests by model and outcome",
		},
		[]string{"model", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Generative backend request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"model"},
	)
	AITokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Total tokens consumed by direction (prompt/completion)",
		},
		[]string{"model", "direction"},
	)

	FallbackHopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_fallback_hops_total",
			Help: "Times the fallback chain moved past a model, by reason",
		},
		[]string{"tier", "reason"},
	)

	GenerationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_attempts_total",
			Help: "Pipeline attempts by outcome (accepted/retried/failed)",
		},
		[]string{"outcome"},
	)
	GenerationVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_verdicts_total",
			Help: "Quality verdicts rendered per attempt",
		},
		[]string{"verdict"},
	)
	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generation_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	QualityOverallHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generation_quality_overall",
			Help:    "Distribution of overall quality scores (0-100)",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
	UniquenessScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generation_uniqueness_score",
			Help:    "Distribution of uniqueness scores (0-100)",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

// InitMetrics registers all pipeline metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(AITokensTotal)
	prometheus.MustRegister(FallbackHopsTotal)
	prometheus.MustRegister(GenerationAttemptsTotal)
	prometheus.MustRegister(GenerationVerdictsTotal)
	prometheus.MustRegister(GenerationDuration)
	prometheus.MustRegister(QualityOverallHistogram)
	prometheus.MustRegister(UniquenessScoreHistogram)
}
