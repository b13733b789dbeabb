// Package telemetry provides OpenTelemetry instrumentation for the complaint
// engine. It exports Prometheus metrics and provides tracing capabilities.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/complaint-engine/internal/domain"
)

const serviceName = "complaint-engine"

// Metrics holds all complaint engine Prometheus metrics
type Metrics struct {
	// Intake metrics
	SubmissionsTotal   *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	SubmissionFailed   *prometheus.CounterVec

	// Classifier metrics
	ClassificationsTotal   *prometheus.CounterVec
	ClassificationDuration prometheus.Histogram
	LowConfidenceTotal     prometheus.Counter
	KeywordMatchDuration   prometheus.Histogram
	KeywordRulesMatched    prometheus.Counter
	ModelReloads           *prometheus.CounterVec

	// Dedup metrics
	DuplicatesMerged   *prometheus.CounterVec
	SimilarityDuration prometheus.Histogram
	CandidatesScanned  prometheus.Histogram

	// Registry metrics
	VotesRecorded      prometheus.Counter
	DuplicateVotes     prometheus.Counter
	RegistryTimeouts   *prometheus.CounterVec
	OpenComplaints     *prometheus.GaugeVec
	TransitionsTotal   *prometheus.CounterVec
	TransitionsDenied  *prometheus.CounterVec
	CategoryOverrides  prometheus.Counter

	// Ranking metrics
	RankingDuration prometheus.Histogram
	RankingSize     prometheus.Histogram

	// Batch processor metrics
	BatchSize     prometheus.Histogram
	QueueDepth    prometheus.Gauge
	ActiveWorkers prometheus.Gauge

	// Search index sync metrics
	IndexedTotal *prometheus.CounterVec
	IndexBacklog prometheus.Gauge
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics
func NewProvider() *Provider {
	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: initMetrics(),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initIntakeMetrics(m)
	initClassifierMetrics(m)
	initDedupMetrics(m)
	initRegistryMetrics(m)
	initRankingMetrics(m)
	initProcessorMetrics(m)
	initSearchMetrics(m)
	return m
}

func initIntakeMetrics(m *Metrics) {
	m.SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_submissions_total",
		Help: "Total submissions by outcome (created, merged, already_voted)",
	}, []string{"outcome"})

	m.SubmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "complaints_submission_duration_seconds",
		Help:    "End-to-end time for one submission through intake",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	})

	m.SubmissionFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_submissions_failed_total",
		Help: "Total submissions that failed, by error kind",
	}, []string{"error_kind"})
}

func initClassifierMetrics(m *Metrics) {
	m.ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_classifications_total",
		Help: "Total classifications by category and prediction source",
	}, []string{"category", "source"})

	m.ClassificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "complaints_classification_duration_seconds",
		Help:    "Time to classify a single complaint text",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	m.LowConfidenceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "complaints_low_confidence_total",
		Help: "Classifications flagged for authority review",
	})

	m.KeywordMatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "complaints_keyword_match_duration_seconds",
		Help:    "Time spent in keyword matching (Aho-Corasick)",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	m.KeywordRulesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "complaints_keyword_rules_matched_total",
		Help: "Total keyword rules that cleared their score threshold",
	})

	m.ModelReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_model_reloads_total",
		Help: "Model hot reload attempts by result (success, failure)",
	}, []string{"result"})
}

func initDedupMetrics(m *Metrics) {
	m.DuplicatesMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_duplicates_merged_total",
		Help: "Submissions merged into an existing complaint, by category",
	}, []string{"category"})

	m.SimilarityDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "complaints_similarity_duration_seconds",
		Help:    "Time spent scoring a submission against its candidate set",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	m.CandidatesScanned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "complaints_dedup_candidates_scanned",
		Help:    "Number of open candidates compared per submission",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	})
}

func initRegistryMetrics(m *Metrics) {
	m.VotesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "complaints_votes_recorded_total",
		Help: "Votes successfully recorded",
	})

	m.DuplicateVotes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "complaints_duplicate_votes_total",
		Help: "Votes absorbed as no-ops because the citizen already voted",
	})

	m.RegistryTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_registry_timeouts_total",
		Help: "Registry operations that exceeded their deadline, by operation",
	}, []string{"op"})

	m.OpenComplaints = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "complaints_open",
		Help: "Open (non-terminal) complaints by category",
	}, []string{"category"})

	m.TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_transitions_total",
		Help: "Status transitions applied, by edge",
	}, []string{"from", "to"})

	m.TransitionsDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_transitions_denied_total",
		Help: "Status transitions denied, by reason (illegal, terminal)",
	}, []string{"reason"})

	m.CategoryOverrides = promauto.NewCounter(prometheus.CounterOpts{
		Name: "complaints_category_overrides_total",
		Help: "Authority category corrections",
	})
}

func initRankingMetrics(m *Metrics) {
	m.RankingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "complaints_ranking_duration_seconds",
		Help:    "Time to rank the open complaint set",
		Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	})

	m.RankingSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "complaints_ranking_size",
		Help:    "Number of complaints per ranking pass",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
	})
}

func initProcessorMetrics(m *Metrics) {
	m.BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "complaints_batch_size",
		Help:    "Number of submissions per processed batch",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500},
	})

	m.QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "complaints_queue_depth",
		Help: "Current pending submissions in the batch work queue",
	})

	m.ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "complaints_active_workers",
		Help: "Currently active batch worker goroutines",
	})
}

func initSearchMetrics(m *Metrics) {
	m.IndexedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_indexed_total",
		Help: "Complaints mirrored to the search index, by result",
	}, []string{"result"})

	m.IndexBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "complaints_index_backlog",
		Help: "Complaints waiting to be mirrored to the search index",
	})
}

// RecordSubmission records one intake outcome with its duration.
func (p *Provider) RecordSubmission(ctx context.Context, outcome string, duration time.Duration) {
	p.Metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	p.Metrics.SubmissionDuration.Observe(duration.Seconds())
}

// RecordSubmissionFailure records a failed submission by error kind.
func (p *Provider) RecordSubmissionFailure(ctx context.Context, errorKind string) {
	p.Metrics.SubmissionFailed.WithLabelValues(errorKind).Inc()
}

// RecordClassification records a successful classification.
func (p *Provider) RecordClassification(ctx context.Context, category domain.Category, source string, lowConfidence bool, duration time.Duration) {
	p.Metrics.ClassificationsTotal.WithLabelValues(string(category), source).Inc()
	p.Metrics.ClassificationDuration.Observe(duration.Seconds())
	if lowConfidence {
		p.Metrics.LowConfidenceTotal.Inc()
	}
}

// RecordKeywordMatch records keyword engine metrics.
func (p *Provider) RecordKeywordMatch(ctx context.Context, duration time.Duration, rulesMatched int) {
	p.Metrics.KeywordMatchDuration.Observe(duration.Seconds())
	p.Metrics.KeywordRulesMatched.Add(float64(rulesMatched))
}

// RecordModelReload records a hot reload attempt.
func (p *Provider) RecordModelReload(ctx context.Context, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	p.Metrics.ModelReloads.WithLabelValues(result).Inc()
}

// RecordSimilarity records one dedup scoring pass.
func (p *Provider) RecordSimilarity(ctx context.Context, duration time.Duration, candidates int) {
	p.Metrics.SimilarityDuration.Observe(duration.Seconds())
	p.Metrics.CandidatesScanned.Observe(float64(candidates))
}

// RecordMerge records a submission merged into an existing complaint.
func (p *Provider) RecordMerge(ctx context.Context, category domain.Category) {
	p.Metrics.DuplicatesMerged.WithLabelValues(string(category)).Inc()
}

// RecordVote records a vote outcome.
func (p *Provider) RecordVote(ctx context.Context, duplicate bool) {
	if duplicate {
		p.Metrics.DuplicateVotes.Inc()
		return
	}
	p.Metrics.VotesRecorded.Inc()
}

// RecordRegistryTimeout records a registry deadline overrun.
func (p *Provider) RecordRegistryTimeout(ctx context.Context, op string) {
	p.Metrics.RegistryTimeouts.WithLabelValues(op).Inc()
}

// RecordTransition records an applied status transition.
func (p *Provider) RecordTransition(ctx context.Context, from, to domain.Status) {
	p.Metrics.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

// RecordTransitionDenied records a denied transition (illegal or terminal).
func (p *Provider) RecordTransitionDenied(ctx context.Context, reason string) {
	p.Metrics.TransitionsDenied.WithLabelValues(reason).Inc()
}

// RecordCategoryOverride records an authority category correction.
func (p *Provider) RecordCategoryOverride(ctx context.Context) {
	p.Metrics.CategoryOverrides.Inc()
}

// RecordRanking records one ranking pass.
func (p *Provider) RecordRanking(ctx context.Context, duration time.Duration, size int) {
	p.Metrics.RankingDuration.Observe(duration.Seconds())
	p.Metrics.RankingSize.Observe(float64(size))
}

// RecordIndexed records search index sync results.
func (p *Provider) RecordIndexed(ctx context.Context, result string, count int) {
	p.Metrics.IndexedTotal.WithLabelValues(result).Add(float64(count))
}

// SetIndexBacklog sets the current search index backlog.
func (p *Provider) SetIndexBacklog(backlog int) {
	p.Metrics.IndexBacklog.Set(float64(backlog))
}

// SetOpenComplaints sets the open complaint gauge for a category.
func (p *Provider) SetOpenComplaints(category domain.Category, count int) {
	p.Metrics.OpenComplaints.WithLabelValues(string(category)).Set(float64(count))
}

// SetQueueDepth sets the current batch queue depth.
func (p *Provider) SetQueueDepth(depth int) {
	p.Metrics.QueueDepth.Set(float64(depth))
}

// SetActiveWorkers sets the current active worker count.
func (p *Provider) SetActiveWorkers(count int) {
	p.Metrics.ActiveWorkers.Set(float64(count))
}

// RecordBatchSize records the size of a processed batch.
func (p *Provider) RecordBatchSize(size int) {
	p.Metrics.BatchSize.Observe(float64(size))
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
