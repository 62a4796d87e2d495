package profiler

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type staticCollector map[string]float64

func (c staticCollector) CollectMetrics() map[string]float64 { return c }

// TestReport_FPS divides the frames of a window by its duration.
func TestReport_FPS(t *testing.T) {
	mock := clock.NewMock()
	rp := NewRuntimeProfiler(ProfilingOptions{Clock: mock}, nil)

	for i := 0; i < 10; i++ {
		rp.MarkFrame()
	}
	mock.Add(2 * time.Second)

	r := rp.Report()
	assert.Equal(t, int64(10), r.Frames)
	assert.InDelta(t, 5.0, r.FPS, 1e-9)
	assert.Equal(t, 2*time.Second, r.Uptime)

	// A new window starts after each report.
	rp.MarkFrame()
	mock.Add(time.Second)
	r = rp.Report()
	assert.Equal(t, int64(11), r.Frames)
	assert.InDelta(t, 1.0, r.FPS, 1e-9)
}

// TestReport_Operations aggregates operation timings.
func TestReport_Operations(t *testing.T) {
	mock := clock.NewMock()
	rp := NewRuntimeProfiler(ProfilingOptions{Clock: mock}, nil)

	for i := 1; i <= 20; i++ {
		rp.RecordOperation(OperationInference, time.Duration(i)*time.Millisecond)
	}

	done := rp.StartOperation(OperationPostprocess)
	mock.Add(3 * time.Millisecond)
	done()

	r := rp.Report()

	inference := r.Operations[OperationInference]
	assert.Equal(t, 20, inference.Count)
	assert.Equal(t, 10500*time.Microsecond, inference.Mean)
	assert.Equal(t, time.Millisecond, inference.Min)
	assert.Equal(t, 20*time.Millisecond, inference.Max)
	assert.GreaterOrEqual(t, inference.P95, 18*time.Millisecond)
	assert.LessOrEqual(t, inference.P95, 20*time.Millisecond)

	post := r.Operations[OperationPostprocess]
	assert.Equal(t, 1, post.Count)
	assert.Equal(t, 3*time.Millisecond, post.Mean)
	assert.Equal(t, 3*time.Millisecond, post.P95)
}

// TestReport_MaxSamples keeps only the most recent samples.
func TestReport_MaxSamples(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{Clock: clock.NewMock(), MaxSamples: 3}, nil)

	for i := 1; i <= 5; i++ {
		rp.RecordMetric("detections", float64(i))
	}

	m := rp.Report().Metrics["detections"]
	assert.Equal(t, 3, m.Count)
	assert.Equal(t, 3.0, m.Min)
	assert.Equal(t, 5.0, m.Max)
	assert.Equal(t, 4.0, m.Mean)
}

// TestReport_Collectors polls registered collectors.
func TestReport_Collectors(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{Clock: clock.NewMock()}, nil)
	rp.AddMetricsCollector(staticCollector{"queue": 2})

	r := rp.Report()
	require.Contains(t, r.Metrics, "queue")
	assert.Equal(t, 2.0, r.Metrics["queue"].Mean)
}

// TestStart_EmitsReports logs a report every interval until stopped.
func TestStart_EmitsReports(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mock := clock.NewMock()
	rp := NewRuntimeProfiler(ProfilingOptions{Clock: mock, ReportInterval: time.Second}, zap.New(core).Sugar())

	rp.Start()
	rp.Start()
	rp.MarkFrame()
	rp.RecordOperation(OperationFrame, 30*time.Millisecond)

	mock.Add(time.Second)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("performance").Len() >= 1
	}, time.Second, 5*time.Millisecond)

	rp.Stop()
	rp.Stop()

	entry := logs.FilterMessage("performance").All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, int64(1), fields["frames"])
	assert.Contains(t, fields, OperationFrame)
}

// TestFormatBytes renders binary units.
func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(1536*1024))
}
