package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yt_audit_pipeline_run_duration_seconds",
			Help:    "End-to-end pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	ReconcileSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_audit_reconcile_source_total",
			Help: "Reconciliation runs by selected metrics source",
		},
		[]string{"source"},
	)

	RuleTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_audit_insight_rule_triggered_total",
			Help: "Heuristic rule firings by action type",
		},
		[]string{"type"},
	)

	ActionsGenerated = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yt_audit_actions_generated",
			Help:    "Action items produced per run",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	NarrativeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "yt_audit_narrative_failures_total",
			Help: "Narrative summarizer failures (degraded to empty narrative)",
		},
	)

	AlignmentScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_audit_alignment_scored_total",
			Help: "Title/caption alignment outcomes",
		},
		[]string{"outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_audit_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yt_audit_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	VideosIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "yt_audit_videos_ingested_total",
			Help: "Videos ingested from the platform API",
		},
	)
)

func Init() {
	prometheus.MustRegister(PipelineRunDuration)
	prometheus.MustRegister(ReconcileSource)
	prometheus.MustRegister(RuleTriggered)
	prometheus.MustRegister(ActionsGenerated)
	prometheus.MustRegister(NarrativeFailures)
	prometheus.MustRegister(AlignmentScored)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(VideosIngested)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
