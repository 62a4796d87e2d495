// Package profiler - frame rate and operation timing reports.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/robpickerill/elegoo-conquerer-vision/detector"
)

// Operation names recorded by the frame loop.
const (
	OperationFrame       = "frame"
	OperationInference   = detector.StageInference
	OperationPostprocess = detector.StagePostprocess
	OperationRender      = "render"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 2s)
	ReportInterval time.Duration
	// MaxSamples specifies maximum number of samples to keep per series (default: 600)
	MaxSamples int
	// Clock is the time source (default: wall clock)
	Clock clock.Clock
}

// OperationStats summarizes the recent durations of one operation.
type OperationStats struct {
	Count int
	Mean  time.Duration
	P95   time.Duration
	Min   time.Duration
	Max   time.Duration
}

// MetricStats summarizes the recent values of one metric.
type MetricStats struct {
	Count int
	Mean  float64
	Min   float64
	Max   float64
}

// Report is a snapshot of the profiler.
type Report struct {
	Uptime     time.Duration
	Frames     int64
	FPS        float64
	Goroutines int
	HeapAlloc  uint64
	Operations map[string]OperationStats
	Metrics    map[string]MetricStats
}

// RuntimeProfiler tracks frame rate, operation timings and custom metrics
// and logs a summary every report interval. It is safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	maxSamples     int
	clock          clock.Clock
	logger         *zap.SugaredLogger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	startTime      time.Time
	lastReport     time.Time
	frames         int64
	framesAtReport int64
	operationTimes map[string][]float64
	customMetrics  map[string][]float64
	collectors     []MetricsCollector
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//   - logger: Receives the periodic reports.
//
// Returns:
//   - A configured RuntimeProfiler instance.
func NewRuntimeProfiler(opts ProfilingOptions, logger *zap.SugaredLogger) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 2 * time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := opts.Clock.Now()

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		clock:          opts.Clock,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      now,
		lastReport:     now,
		operationTimes: make(map[string][]float64),
		customMetrics:  make(map[string][]float64),
	}
}

// Start begins emitting periodic reports. Calling it twice is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true

	ticker := rp.clock.Ticker(rp.reportInterval)

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-ticker.C:
				rp.emitStatusReport()
			}
		}
	}()
}

// Stop stops reporting and waits for the reporter to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// AddMetricsCollector registers a collector polled at every report.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// MarkFrame counts one processed frame.
func (rp *RuntimeProfiler) MarkFrame() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.frames++
}

// RecordMetric records a custom metric value.
//
// Arguments:
//   - name: The name of the metric.
//   - value: The metric value to record.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.customMetrics[name] = rp.appendSample(rp.customMetrics[name], value)
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - A function to call when the operation completes.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := rp.clock.Now()
	return func() {
		rp.RecordOperation(name, rp.clock.Since(start))
	}
}

// RecordOperation records the duration of one operation.
func (rp *RuntimeProfiler) RecordOperation(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.operationTimes[name] = rp.appendSample(rp.operationTimes[name], float64(duration))
}

func (rp *RuntimeProfiler) appendSample(samples []float64, v float64) []float64 {
	samples = append(samples, v)
	if len(samples) > rp.maxSamples {
		samples = samples[len(samples)-rp.maxSamples:]
	}
	return samples
}

// Report returns a snapshot and starts a new frame rate window.
//
// FPS is the number of frames marked since the previous report divided by
// the time elapsed since then.
func (rp *RuntimeProfiler) Report() Report {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.customMetrics[name] = rp.appendSample(rp.customMetrics[name], value)
		}
	}

	now := rp.clock.Now()
	var fps float64
	if elapsed := now.Sub(rp.lastReport); elapsed > 0 {
		fps = float64(rp.frames-rp.framesAtReport) / elapsed.Seconds()
	}
	rp.lastReport = now
	rp.framesAtReport = rp.frames

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := Report{
		Uptime:     now.Sub(rp.startTime),
		Frames:     rp.frames,
		FPS:        fps,
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		Operations: make(map[string]OperationStats, len(rp.operationTimes)),
		Metrics:    make(map[string]MetricStats, len(rp.customMetrics)),
	}

	for name, samples := range rp.operationTimes {
		if len(samples) == 0 {
			continue
		}
		data := stats.Float64Data(samples)
		mean, _ := stats.Mean(data)
		p95, _ := stats.Percentile(data, 95)
		lo, _ := stats.Min(data)
		hi, _ := stats.Max(data)
		report.Operations[name] = OperationStats{
			Count: len(samples),
			Mean:  time.Duration(mean),
			P95:   time.Duration(p95),
			Min:   time.Duration(lo),
			Max:   time.Duration(hi),
		}
	}

	for name, samples := range rp.customMetrics {
		if len(samples) == 0 {
			continue
		}
		data := stats.Float64Data(samples)
		mean, _ := stats.Mean(data)
		lo, _ := stats.Min(data)
		hi, _ := stats.Max(data)
		report.Metrics[name] = MetricStats{Count: len(samples), Mean: mean, Min: lo, Max: hi}
	}

	return report
}

// emitStatusReport logs one report.
func (rp *RuntimeProfiler) emitStatusReport() {
	r := rp.Report()

	fields := []interface{}{
		"uptime", r.Uptime.Truncate(time.Millisecond),
		"frames", r.Frames,
		"fps", fmt.Sprintf("%.1f", r.FPS),
		"goroutines", r.Goroutines,
		"heap", formatBytes(r.HeapAlloc),
	}

	names := make([]string, 0, len(r.Operations))
	for name := range r.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		op := r.Operations[name]
		fields = append(fields, name, fmt.Sprintf("avg=%v p95=%v max=%v n=%d",
			op.Mean.Truncate(time.Microsecond),
			op.P95.Truncate(time.Microsecond),
			op.Max.Truncate(time.Microsecond),
			op.Count))
	}

	for name, m := range r.Metrics {
		fields = append(fields, name, fmt.Sprintf("avg=%.2f min=%.2f max=%.2f", m.Mean, m.Min, m.Max))
	}

	rp.logger.Infow("performance", fields...)
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
