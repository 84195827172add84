// Package observe provides the observability primitives for narrata:
// OpenTelemetry metrics, tracing, span-correlated structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// scraping by the Prometheus exporter set up in [Setup]. Tests should
// use [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution; production code can use [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all narrata metrics.
const meterName = "github.com/MrWong99/narrata"

// Metrics holds all metric instruments. The underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// AnalysisDuration tracks each signal producer. Attribute: analyzer.
	AnalysisDuration metric.Float64Histogram

	// FusionDuration tracks combining the four signals into a profile.
	FusionDuration metric.Float64Histogram

	// MappingDuration tracks turning a profile into prosody parameters.
	MappingDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// SynthesisDuration tracks per-sentence TTS latency.
	SynthesisDuration metric.Float64Histogram

	// PipelineDuration tracks a whole document run. Attribute: mode.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// Segments counts segments that went through fusion. Attribute: type.
	Segments metric.Int64Counter

	// SegmentsRejected counts segments dropped before analysis. Attribute:
	// reason.
	SegmentsRejected metric.Int64Counter

	// DominantEmotions counts the strongest emotion per profile. Attribute:
	// emotion.
	DominantEmotions metric.Int64Counter

	// SarcasticSegments counts profiles past the sarcasm reversal threshold.
	SarcasticSegments metric.Int64Counter

	// ProviderRequests counts provider calls. Attributes: provider, kind,
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// provider, state.
	BreakerTransitions metric.Int64Counter

	// AudioSeconds accumulates narrated audio length.
	AudioSeconds metric.Float64Counter

	// --- Gauges ---

	// ActiveNarrations tracks documents currently in the pipeline.
	ActiveNarrations metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// stageBuckets are histogram boundaries (seconds) for in-process stages.
var stageBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// latencyBuckets are histogram boundaries (seconds) for network calls and
// whole documents.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst     *metric.Float64Histogram
		name    string
		desc    string
		buckets []float64
	}{
		{&met.AnalysisDuration, "narrata.analysis.duration", "Latency of a single signal producer.", latencyBuckets},
		{&met.FusionDuration, "narrata.fusion.duration", "Latency of combining signals into an emotion profile.", stageBuckets},
		{&met.MappingDuration, "narrata.mapping.duration", "Latency of mapping a profile to prosody.", stageBuckets},
		{&met.LLMDuration, "narrata.llm.duration", "Latency of LLM inference.", latencyBuckets},
		{&met.SynthesisDuration, "narrata.tts.duration", "Latency of synthesizing one sentence.", latencyBuckets},
		{&met.PipelineDuration, "narrata.pipeline.duration", "Latency of processing a whole document.", latencyBuckets},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(h.buckets...),
		); err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.Segments, "narrata.segments", "Segments fused into emotion profiles by type."},
		{&met.SegmentsRejected, "narrata.segments.rejected", "Segments dropped before analysis by reason."},
		{&met.DominantEmotions, "narrata.emotions.dominant", "Dominant emotion per profile."},
		{&met.SarcasticSegments, "narrata.sarcasm.segments", "Profiles whose sarcasm probability reversed their polarity."},
		{&met.ProviderRequests, "narrata.provider.requests", "Provider API requests by provider, kind and status."},
		{&met.ProviderErrors, "narrata.provider.errors", "Provider errors by provider and kind."},
		{&met.BreakerTransitions, "narrata.breaker.transitions", "Circuit breaker state changes by provider and new state."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.AudioSeconds, err = m.Float64Counter("narrata.audio.duration",
		metric.WithDescription("Total narrated audio."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.ActiveNarrations, err = m.Int64UpDownCounter("narrata.active_narrations",
		metric.WithDescription("Documents currently being processed."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("narrata.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAnalysis records one analyzer run.
func (m *Metrics) RecordAnalysis(ctx context.Context, analyzer string, d time.Duration) {
	m.AnalysisDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("analyzer", analyzer)))
}

// RecordSegment records a fused segment and its dominant emotion, if any.
func (m *Metrics) RecordSegment(ctx context.Context, segType, dominant string, sarcastic bool) {
	m.Segments.Add(ctx, 1, metric.WithAttributes(Attr("type", segType)))
	if dominant != "" {
		m.DominantEmotions.Add(ctx, 1, metric.WithAttributes(Attr("emotion", dominant)))
	}
	if sarcastic {
		m.SarcasticSegments.Add(ctx, 1)
	}
}

// RecordRejected records a segment dropped before analysis.
func (m *Metrics) RecordRejected(ctx context.Context, reason string) {
	m.SegmentsRejected.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordProviderRequest records a provider call with its outcome. A non-nil
// err also bumps the error counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
		Attr("status", status),
	))
}

// RecordBreakerTransition records a circuit breaker entering state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("state", state)))
}
