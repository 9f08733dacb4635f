package otel

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	tenantauth "github.com/crmforge/tenantauth"
)

type fakeSource struct {
	snapshot tenantauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() tenantauth.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                        { return f.dropped }

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: not an int64 sum: %T", m.Name, m.Data)
	}
	if len(sum.DataPoints) != 1 {
		t.Fatalf("%s: datapoints = %d", m.Name, len(sum.DataPoints))
	}
	return sum.DataPoints[0].Value
}

func gaugeValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	g, ok := m.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("%s: not an int64 gauge: %T", m.Name, m.Data)
	}
	if len(g.DataPoints) != 1 {
		t.Fatalf("%s: datapoints = %d", m.Name, len(g.DataPoints))
	}
	return g.DataPoints[0].Value
}

func TestExporterObservesSnapshot(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	source := &fakeSource{
		snapshot: tenantauth.MetricsSnapshot{
			Counters: map[tenantauth.MetricID]uint64{
				tenantauth.MetricLoginSuccess:         7,
				tenantauth.MetricLoginFailure:         3,
				tenantauth.MetricRefreshReuseDetected: 1,
			},
			Histograms: map[tenantauth.MetricID][]uint64{
				// One sample in the 5ms bucket, two in the 25ms bucket.
				tenantauth.MetricValidateLatency: {1, 0, 2, 0, 0, 0, 0, 0},
			},
		},
		dropped: 4,
	}

	exporter, err := NewExporterFromSource(provider.Meter("test"), source)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	t.Cleanup(func() { _ = exporter.Close() })

	metrics := collect(t, reader)

	success, ok := metrics["tenantauth_login_success_total"]
	if !ok {
		t.Fatal("login success counter not exported")
	}
	if got := sumValue(t, success); got != 7 {
		t.Fatalf("login success = %d, want 7", got)
	}
	if got := sumValue(t, metrics["tenantauth_refresh_reuse_detected_total"]); got != 1 {
		t.Fatalf("reuse detected = %d, want 1", got)
	}

	// Histogram buckets export cumulatively.
	if got := gaugeValue(t, metrics["tenantauth_validate_latency_seconds_bucket_le_0_005"]); got != 1 {
		t.Fatalf("le_0_005 = %d, want 1", got)
	}
	if got := gaugeValue(t, metrics["tenantauth_validate_latency_seconds_bucket_le_0_025"]); got != 3 {
		t.Fatalf("le_0_025 = %d, want 3", got)
	}
	if got := gaugeValue(t, metrics["tenantauth_validate_latency_seconds_bucket_le_inf"]); got != 3 {
		t.Fatalf("le_inf = %d, want 3", got)
	}
	if got := gaugeValue(t, metrics["tenantauth_validate_latency_seconds_count"]); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}

	if got := sumValue(t, metrics["tenantauth_audit_dropped_total"]); got != 4 {
		t.Fatalf("audit dropped = %d, want 4", got)
	}

	// A later snapshot shows on the next collection cycle.
	source.snapshot.Counters[tenantauth.MetricLoginSuccess] = 12
	metrics = collect(t, reader)
	if got := sumValue(t, metrics["tenantauth_login_success_total"]); got != 12 {
		t.Fatalf("login success after update = %d, want 12", got)
	}
}

func TestExporterInputValidation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("nil meter: %v", err)
	}
	if _, err := NewExporterFromSource(provider.Meter("test"), nil); err != ErrNilSource {
		t.Fatalf("nil source: %v", err)
	}
}

func TestExporterClose(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	exporter, err := NewExporterFromSource(provider.Meter("test"), &fakeSource{})
	if err != nil {
		t.Fatal(err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var nilExporter *Exporter
	if err := nilExporter.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}
