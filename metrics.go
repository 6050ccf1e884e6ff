package syncpipe

import "time"

// Metrics captures pipeline telemetry.
type Metrics interface {
	// ObserveDrainDuration records the time to run one drain pass.
	ObserveDrainDuration(duration time.Duration)
	// AddSynced increments the count of payloads delivered by the executor.
	AddSynced(count int)
	// AddSyncErrors increments the count of failed sink calls.
	AddSyncErrors(count int)
	// AddRetries increments the count of executor retries.
	AddRetries(count int)
	// AddRecorded increments the count of persisted sync failures.
	AddRecorded(count int)
	// AddDrained increments the count of failures delivered by a drain pass.
	AddDrained(count int)
	// AddDead increments the count of dead-lettered failures.
	AddDead(count int)
	// SetBacklog updates the current pending failure count.
	SetBacklog(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// ObserveDrainDuration implements Metrics.
func (NopMetrics) ObserveDrainDuration(time.Duration) {}

// AddSynced implements Metrics.
func (NopMetrics) AddSynced(int) {}

// AddSyncErrors implements Metrics.
func (NopMetrics) AddSyncErrors(int) {}

// AddRetries implements Metrics.
func (NopMetrics) AddRetries(int) {}

// AddRecorded implements Metrics.
func (NopMetrics) AddRecorded(int) {}

// AddDrained implements Metrics.
func (NopMetrics) AddDrained(int) {}

// AddDead implements Metrics.
func (NopMetrics) AddDead(int) {}

// SetBacklog implements Metrics.
func (NopMetrics) SetBacklog(int) {}
