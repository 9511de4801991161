package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricPipelineRuns      = "workrecap.pipeline.runs.total"
	metricPhaseDuration     = "workrecap.pipeline.phase.duration.seconds"
	metricLLMRequests       = "workrecap.llm.requests.total"
	metricLLMTokens         = "workrecap.llm.tokens.total"
	metricSchedulerJobs     = "workrecap.scheduler.jobs.total"
	metricBatchMissing      = "workrecap.batch.missing_results.total"
	metricInflightJobs      = "workrecap.jobs.inflight"
	metricSearchCalls       = "workrecap.github.search_calls.total"
	metricRateLimitHeadroom = "workrecap.github.rate_limit.remaining"

	attrPhase    = "phase"
	attrStatus   = "status"
	attrProvider = "provider"
	attrModel    = "model"
	attrKind     = "kind"
	attrJob      = "job"
	attrTask     = "task"
)

// durationBucketBoundaries covers 10ms to 600s: a single-date normalize pass
// finishes in milliseconds while a month of LLM summaries can take minutes.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// Metrics holds the OTel instruments for pipeline, LLM, and scheduler
// telemetry. All record methods are safe on a nil receiver so CLI runs can
// carry a nil *Metrics and skip collection entirely.
type Metrics struct {
	pipelineRuns  metric.Int64Counter
	phaseDuration metric.Float64Histogram
	llmRequests   metric.Int64Counter
	llmTokens     metric.Int64Counter
	schedulerJobs metric.Int64Counter
	batchMissing  metric.Int64Counter
	inflightJobs  metric.Int64UpDownCounter
	searchCalls   metric.Int64Counter

	rateLimitGauge metric.Int64ObservableGauge
	rateLimitValue atomic.Int64
	rateLimitSeen  atomic.Bool
}

// NewMetrics creates all pipeline, LLM, and scheduler instruments from the
// given meter.
func NewMetrics(mt metric.Meter) (*Metrics, error) {
	b := newMetricBuilder(mt)

	m := &Metrics{
		pipelineRuns:  b.counter(metricPipelineRuns, "Total per-date pipeline phase runs", "{run}"),
		phaseDuration: b.histogram(metricPhaseDuration, "Pipeline phase duration in seconds", "s", durationBucketBoundaries...),
		llmRequests:   b.counter(metricLLMRequests, "Total LLM chat requests", "{request}"),
		llmTokens:     b.counter(metricLLMTokens, "Total LLM tokens consumed", "{token}"),
		schedulerJobs: b.counter(metricSchedulerJobs, "Total scheduled job executions", "{job}"),
		batchMissing:  b.counter(metricBatchMissing, "Batch results missing an expected custom_id", "{result}"),
		inflightJobs:  b.upDownCounter(metricInflightJobs, "Background API jobs currently running", "{job}"),
		searchCalls:   b.counter(metricSearchCalls, "Total GitHub search API calls", "{call}"),
	}

	m.rateLimitGauge = b.gauge(metricRateLimitHeadroom, "Last observed GitHub core rate limit remaining", "{request}")

	if b.err != nil {
		return nil, b.err
	}

	_, err := mt.RegisterCallback(m.observeRateLimit, m.rateLimitGauge)
	if err != nil {
		return nil, fmt.Errorf("register rate limit callback: %w", err)
	}

	return m, nil
}

// observeRateLimit reports the last quota reading. Nothing is reported until
// a value was seen, so an idle process does not export a misleading zero.
func (m *Metrics) observeRateLimit(_ context.Context, obs metric.Observer) error {
	if m.rateLimitSeen.Load() {
		obs.ObserveInt64(m.rateLimitGauge, m.rateLimitValue.Load())
	}

	return nil
}

// RecordPhase records one per-date phase execution with its outcome and duration.
// Status is one of success, skipped, failed.
func (m *Metrics) RecordPhase(ctx context.Context, phase, status string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrPhase, phase),
		attribute.String(attrStatus, status),
	)

	m.pipelineRuns.Add(ctx, 1, attrs)
	m.phaseDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLLMRequest records one completed chat call against a provider/model.
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, model, status string) {
	if m == nil {
		return
	}

	m.llmRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrModel, model),
		attribute.String(attrStatus, status),
	))
}

// AddTokens accumulates token usage of one kind (input, output, cache_read,
// cache_write) for a provider/model pair.
func (m *Metrics) AddTokens(ctx context.Context, provider, model, kind string, count int64) {
	if m == nil || count == 0 {
		return
	}

	m.llmTokens.Add(ctx, count, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrModel, model),
		attribute.String(attrKind, kind),
	))
}

// RecordSchedulerJob records one scheduled job execution with its outcome.
func (m *Metrics) RecordSchedulerJob(ctx context.Context, job, status string) {
	if m == nil {
		return
	}

	m.schedulerJobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrJob, job),
		attribute.String(attrStatus, status),
	))
}

// AddBatchMissingResults counts batch result entries that never arrived for
// a submitted custom_id, labeled by the task that submitted the batch.
func (m *Metrics) AddBatchMissingResults(ctx context.Context, task string, count int64) {
	if m == nil || count == 0 {
		return
	}

	m.batchMissing.Add(ctx, count, metric.WithAttributes(
		attribute.String(attrTask, task),
	))
}

// TrackJob increments the in-flight job gauge and returns a function to
// decrement it when the job finishes.
func (m *Metrics) TrackJob(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}

	m.inflightJobs.Add(ctx, 1)

	return func() {
		m.inflightJobs.Add(ctx, -1)
	}
}

// RecordSearchCall counts one GitHub search API request.
func (m *Metrics) RecordSearchCall(ctx context.Context) {
	if m == nil {
		return
	}

	m.searchCalls.Add(ctx, 1)
}

// SetRateLimitRemaining stores the latest GitHub core quota reading for the
// rate limit gauge.
func (m *Metrics) SetRateLimitRemaining(remaining int64) {
	if m == nil {
		return
	}

	m.rateLimitValue.Store(remaining)
	m.rateLimitSeen.Store(true)
}
