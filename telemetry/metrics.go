// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing for
// the reply pipeline. Init must be called once at startup before any metric is
// touched.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	initOnce sync.Once

	// CyclesTotal counts processing cycles started, including ones that later
	// fail mid-flight.
	CyclesTotal prometheus.Counter

	// CommentsFetched counts comments returned by the source across the sweep,
	// before dedup.
	CommentsFetched prometheus.Counter

	// NewComments is the number of unseen comments found by the last cycle.
	NewComments prometheus.Gauge

	// CommentsProcessed counts comments driven to a terminal status.
	CommentsProcessed prometheus.Counter

	// CommentsSkipped counts comments recorded as skipped by the eligibility
	// filter.
	CommentsSkipped prometheus.Counter

	// RepliesPosted counts replies actually posted upstream.
	RepliesPosted prometheus.Counter

	// RepliesSimulated counts replies recorded in read-only mode.
	RepliesSimulated prometheus.Counter

	// RepliesFailed counts comments that ended in error status, whether at
	// generation or at post time.
	RepliesFailed prometheus.Counter

	// GenerationDuration observes the latency of a single reply generation.
	GenerationDuration prometheus.Histogram

	// CycleDuration observes end-to-end cycle latency.
	CycleDuration prometheus.Histogram
)

// Init registers all pipeline metrics on the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "replyt_cycles_total",
			Help: "Total processing cycles started.",
		})
		CommentsFetched = promauto.NewCounter(prometheus.CounterOpts{
			Name: "replyt_comments_fetched_total",
			Help: "Comments fetched from the source before dedup.",
		})
		NewComments = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "replyt_new_comments",
			Help: "Unseen comments found by the most recent cycle.",
		})
		CommentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
			Name: "replyt_comments_processed_total",
			Help: "Comments driven to a terminal status.",
		})
		CommentsSkipped = promauto.NewCounter(prometheus.CounterOpts{
			Name: "replyt_comments_skipped_total",
			Help: "Comments skipped by the eligibility filter.",
		})
		RepliesPosted = promauto.NewCounter(prometheus.CounterOpts{
			Name: "replyt_replies_posted_total",
			Help: "Replies posted to the source.",
		})
		RepliesSimulated = promauto.NewCounter(prometheus.CounterOpts{
			Name: "replyt_replies_simulated_total",
			Help: "Replies generated but not posted (read-only mode).",
		})
		RepliesFailed = promauto.NewCounter(prometheus.CounterOpts{
			Name: "replyt_replies_failed_total",
			Help: "Comments that ended in error status.",
		})
		GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "replyt_generation_duration_seconds",
			Help:    "Latency of a single reply generation.",
			Buckets: prometheus.DefBuckets,
		})
		CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "replyt_cycle_duration_seconds",
			Help:    "End-to-end processing cycle latency.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		})
	})
}

// SetNewComments records the new-comment count for the last cycle. No-op
// before Init so callers need not guard startup ordering.
func SetNewComments(n int) {
	if NewComments != nil {
		NewComments.Set(float64(n))
	}
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a context carrying the given correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger carrying the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
