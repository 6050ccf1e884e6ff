// Package otelmetrics adapts syncpipe.Metrics to an OpenTelemetry meter.
package otelmetrics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/velmie/syncpipe"
)

// Metrics records pipeline telemetry through OpenTelemetry instruments.
type Metrics struct {
	drainDuration metric.Float64Histogram
	synced        metric.Int64Counter
	syncErrors    metric.Int64Counter
	retries       metric.Int64Counter
	recorded      metric.Int64Counter
	drained       metric.Int64Counter
	dead          metric.Int64Counter
	backlog       atomic.Int64
}

var _ syncpipe.Metrics = (*Metrics)(nil)

// New creates the instruments on meter. The backlog gauge reports the last SetBacklog value.
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error
	if m.drainDuration, err = meter.Float64Histogram("syncpipe.drain.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of a drain pass."),
	); err != nil {
		return nil, fmt.Errorf("syncpipe otelmetrics: drain duration: %w", err)
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.synced, "syncpipe.synced", "Payloads delivered inline by the executor."},
		{&m.syncErrors, "syncpipe.sync.errors", "Failed sink calls."},
		{&m.retries, "syncpipe.retries", "Executor retries."},
		{&m.recorded, "syncpipe.recorded", "Sync failures persisted."},
		{&m.drained, "syncpipe.drained", "Sync failures delivered by drain passes."},
		{&m.dead, "syncpipe.dead", "Sync failures dead-lettered."},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("syncpipe otelmetrics: %s: %w", c.name, err)
		}
	}

	if _, err = meter.Int64ObservableGauge("syncpipe.backlog",
		metric.WithDescription("Pending sync failures."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.backlog.Load())
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("syncpipe otelmetrics: backlog: %w", err)
	}

	return m, nil
}

// ObserveDrainDuration implements syncpipe.Metrics.
func (m *Metrics) ObserveDrainDuration(d time.Duration) {
	m.drainDuration.Record(context.Background(), d.Seconds())
}

// AddSynced implements syncpipe.Metrics.
func (m *Metrics) AddSynced(n int) { add(m.synced, n) }

// AddSyncErrors implements syncpipe.Metrics.
func (m *Metrics) AddSyncErrors(n int) { add(m.syncErrors, n) }

// AddRetries implements syncpipe.Metrics.
func (m *Metrics) AddRetries(n int) { add(m.retries, n) }

// AddRecorded implements syncpipe.Metrics.
func (m *Metrics) AddRecorded(n int) { add(m.recorded, n) }

// AddDrained implements syncpipe.Metrics.
func (m *Metrics) AddDrained(n int) { add(m.drained, n) }

// AddDead implements syncpipe.Metrics.
func (m *Metrics) AddDead(n int) { add(m.dead, n) }

// SetBacklog implements syncpipe.Metrics.
func (m *Metrics) SetBacklog(n int) { m.backlog.Store(int64(n)) }

func add(c metric.Int64Counter, n int) {
	if n <= 0 {
		return
	}
	c.Add(context.Background(), int64(n))
}
