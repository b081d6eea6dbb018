package manager

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// metrics instruments the commit critical section, grounded on the
// teacher's internal/storage/dolt/access_lock.go pattern of recording
// lock-wait time with otel histograms around an exclusive-access
// acquisition.
type metrics struct {
	mutexWaitMs metric.Float64Histogram
	commits     metric.Int64Counter
	commitFails metric.Int64Counter
}

func newMetrics(meter metric.Meter) *metrics {
	if meter == nil {
		meter = noop.Meter{}
	}
	mutexWaitMs, _ := meter.Float64Histogram("itemstate.manager.mutex_wait_ms")
	commits, _ := meter.Int64Counter("itemstate.manager.commits")
	commitFails, _ := meter.Int64Counter("itemstate.manager.commit_failures")
	return &metrics{mutexWaitMs: mutexWaitMs, commits: commits, commitFails: commitFails}
}

func (m *metrics) recordMutexWait(ctx context.Context, waited time.Duration) {
	if m.mutexWaitMs == nil {
		return
	}
	m.mutexWaitMs.Record(ctx, float64(waited.Microseconds())/1000.0)
}

func (m *metrics) recordCommit(ctx context.Context, ok bool) {
	attrs := metric.WithAttributes(attribute.Bool("itemstate.commit.ok", ok))
	if ok && m.commits != nil {
		m.commits.Add(ctx, 1, attrs)
	} else if !ok && m.commitFails != nil {
		m.commitFails.Add(ctx, 1, attrs)
	}
}
