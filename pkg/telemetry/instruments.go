package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer and meter used by the resolver.
const InstrumentationName = "github.com/Asenturisk/asentu-browser/resolver"

var (
	metricsOnce        sync.Once
	metricsInitErr     error
	resolveCounter     metric.Int64Counter
	resolveHistogram   metric.Float64Histogram
	fallbackUseCounter metric.Int64Counter
)

// ResolveMetrics captures the fields recorded for a single resolve call.
type ResolveMetrics struct {
	Outcome  string
	Source   string
	Duration time.Duration
}

// RecordResolveMetrics emits OpenTelemetry counters and histograms for a resolve call.
func RecordResolveMetrics(ctx context.Context, metrics ResolveMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("resolve.outcome", metrics.Outcome),
		attribute.String("mapping.source", metrics.Source),
	}

	resolveCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if metrics.Duration > 0 {
		resolveHistogram.Record(ctx, float64(metrics.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if metrics.Source == "fallback" {
		fallbackUseCounter.Add(ctx, 1)
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(InstrumentationName)

		resolveCounter, metricsInitErr = meter.Int64Counter(
			"asentu.resolve.total",
			metric.WithDescription("Resolve calls partitioned by outcome and mapping source"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		resolveHistogram, metricsInitErr = meter.Float64Histogram(
			"asentu.resolve.duration_ms",
			metric.WithDescription("Observed resolve latency including any mapping fetch"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		fallbackUseCounter, metricsInitErr = meter.Int64Counter(
			"asentu.fallback.uses_total",
			metric.WithDescription("Lookups answered from the hardcoded fallback table"),
			metric.WithUnit("{count}"),
		)
	})

	return metricsInitErr
}

// Tracer returns the resolver tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// RecordFetchEvent attaches the outcome of a mapping fetch to span.
func RecordFetchEvent(span trace.Span, source string, entries int, err error) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("mapping.source", source),
		attribute.Int("mapping.entries", entries),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("mapping.fetch_error", err.Error()))
	}

	span.AddEvent("mapping.fetch", trace.WithAttributes(attrs...))
}
