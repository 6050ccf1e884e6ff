package otelmetrics

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := New(provider.Meter("syncpipe"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	m.AddRecorded(2)
	m.AddRecorded(1)
	m.AddDead(0)
	m.SetBacklog(7)
	m.ObserveDrainDuration(250 * time.Millisecond)

	data := collect(t, reader)

	recorded, ok := data["syncpipe.recorded"].(metricdata.Sum[int64])
	if !ok || len(recorded.DataPoints) != 1 || recorded.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected recorded counter: %+v", data["syncpipe.recorded"])
	}
	backlog, ok := data["syncpipe.backlog"].(metricdata.Gauge[int64])
	if !ok || len(backlog.DataPoints) != 1 || backlog.DataPoints[0].Value != 7 {
		t.Fatalf("unexpected backlog gauge: %+v", data["syncpipe.backlog"])
	}
	hist, ok := data["syncpipe.drain.duration"].(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected drain histogram: %+v", data["syncpipe.drain.duration"])
	}
}
