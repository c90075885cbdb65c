package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRecordResolveMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		ResetMetricsForTest()
	})

	ResetMetricsForTest()

	RecordResolveMetrics(ctx, ResolveMetrics{
		Outcome:  "resolved",
		Source:   "fallback",
		Duration: 150 * time.Millisecond,
	})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	metrics := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}

	total, ok := metrics["asentu.resolve.total"]
	require.True(t, ok, "missing asentu.resolve.total metric")
	totalData, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, totalData.DataPoints, 1)
	assert.Equal(t, int64(1), totalData.DataPoints[0].Value)
	value, ok := totalData.DataPoints[0].Attributes.Value(attribute.Key("mapping.source"))
	require.True(t, ok)
	assert.Equal(t, "fallback", value.AsString())

	hist, ok := metrics["asentu.resolve.duration_ms"]
	require.True(t, ok, "missing asentu.resolve.duration_ms metric")
	histData := hist.Data.(metricdata.Histogram[float64])
	assert.Equal(t, uint64(1), histData.DataPoints[0].Count)
	assert.Equal(t, float64(150), histData.DataPoints[0].Sum)

	fallback, ok := metrics["asentu.fallback.uses_total"]
	require.True(t, ok, "missing asentu.fallback.uses_total metric")
	fallbackData := fallback.Data.(metricdata.Sum[int64])
	assert.Equal(t, int64(1), fallbackData.DataPoints[0].Value)
}

func TestRecordFetchEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	tracer := tp.Tracer("test")

	_, span := tracer.Start(context.Background(), "fetch")
	RecordFetchEvent(span, "stale", 3, errors.New("unexpected status: 503 Service Unavailable"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "mapping.fetch", events[0].Name)

	attrs := attribute.NewSet(events[0].Attributes...)
	value, ok := attrs.Value(attribute.Key("mapping.source"))
	require.True(t, ok)
	assert.Equal(t, "stale", value.AsString())
	value, ok = attrs.Value(attribute.Key("mapping.entries"))
	require.True(t, ok)
	assert.Equal(t, int64(3), value.AsInt64())
	_, ok = attrs.Value(attribute.Key("mapping.fetch_error"))
	assert.True(t, ok)

	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestRecordFetchEvent_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordFetchEvent(nil, "network", 1, nil)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordResolution("resolved")
	m.RecordResolution("resolved")
	m.RecordResolution("not_found")
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordFetch("error", 20*time.Millisecond)
	m.RecordMappingSource("stale")
	m.RecordConfigReload("success")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("resolved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("not_found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.fetchesTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mappingSource.WithLabelValues("stale")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.configReloads.WithLabelValues("success")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordResolution("resolved")
		m.RecordFetch("ok", time.Second)
		m.RecordCacheLookup(true)
		m.RecordMappingSource("network")
		m.RecordConfigReload("error")
		m.RecordHTTPRequest("GET", "resolve", "200", time.Millisecond)
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
	assert.NotNil(t, m.Middleware("resolve", next))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := NewMetrics()

	h := m.Middleware("resolve", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/resolve?address=x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "resolve", "404")))

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "asentu_http_requests_total")
}

func TestSetupProvider_NoEndpoint(t *testing.T) {
	shutdown, err := SetupProvider(context.Background(), Config{ServiceName: "asentu-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
