// Package telemetry records pipeline and agent execution events, keeping an
// in-process snapshot and exporting Prometheus metrics.
package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StageEvent is one agent stage execution inside a pipeline run.
type StageEvent struct {
	Stage    string
	Duration time.Duration
	Success  bool
	Error    string
}

// RunEvent is one complete pipeline run.
type RunEvent struct {
	ID             string
	Objective      string
	Duration       time.Duration
	Success        bool
	DocumentsFound int
	Warnings       int
	Error          string
}

// Metrics is a point-in-time snapshot.
type Metrics struct {
	TotalRuns       int64
	SuccessfulRuns  int64
	FailedRuns      int64
	AverageRunTime  time.Duration
	StageExecutions map[string]int64
	StageFailures   map[string]int64
	StageAvgTimes   map[string]time.Duration
}

// Telemetry is safe for concurrent use.
type Telemetry struct {
	mu      sync.RWMutex
	logger  *log.Logger
	metrics Metrics

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stagesTotal   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil registry keeps telemetry
// process-local only.
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: Metrics{
			StageExecutions: map[string]int64{},
			StageFailures:   map[string]int64{},
			StageAvgTimes:   map[string]time.Duration{},
		},
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquest_runs_total",
			Help: "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inquest_run_duration_seconds",
			Help:    "End-to-end pipeline run duration.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		stagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquest_stage_executions_total",
			Help: "Agent stage executions by stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inquest_stage_duration_seconds",
			Help:    "Agent stage duration by stage.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(t.runsTotal, t.runDuration, t.stagesTotal, t.stageDuration)
	}
	return t
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordStage records one agent stage execution.
func (t *Telemetry) RecordStage(ev StageEvent) {
	t.stagesTotal.WithLabelValues(ev.Stage, outcome(ev.Success)).Inc()
	t.stageDuration.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.StageExecutions[ev.Stage]++
	if !ev.Success {
		t.metrics.StageFailures[ev.Stage]++
	}
	n := t.metrics.StageExecutions[ev.Stage]
	if n == 1 {
		t.metrics.StageAvgTimes[ev.Stage] = ev.Duration
	} else {
		total := t.metrics.StageAvgTimes[ev.Stage] * time.Duration(n-1)
		t.metrics.StageAvgTimes[ev.Stage] = (total + ev.Duration) / time.Duration(n)
	}
	if !ev.Success {
		t.logger.Printf("Stage %s failed after %v: %s", ev.Stage, ev.Duration, ev.Error)
	}
}

// RecordRun records one complete pipeline run.
func (t *Telemetry) RecordRun(ev RunEvent) {
	t.runsTotal.WithLabelValues(outcome(ev.Success)).Inc()
	t.runDuration.Observe(ev.Duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.TotalRuns++
	if ev.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}
	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunTime = ev.Duration
	} else {
		total := t.metrics.AverageRunTime * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunTime = (total + ev.Duration) / time.Duration(t.metrics.TotalRuns)
	}
	t.logger.Printf("Run %s: success=%t duration=%v documents=%d warnings=%d",
		ev.ID, ev.Success, ev.Duration, ev.DocumentsFound, ev.Warnings)
}

// Snapshot returns a copy of the current metrics.
func (t *Telemetry) Snapshot() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.metrics
	out.StageExecutions = make(map[string]int64, len(t.metrics.StageExecutions))
	out.StageFailures = make(map[string]int64, len(t.metrics.StageFailures))
	out.StageAvgTimes = make(map[string]time.Duration, len(t.metrics.StageAvgTimes))
	for k, v := range t.metrics.StageExecutions {
		out.StageExecutions[k] = v
	}
	for k, v := range t.metrics.StageFailures {
		out.StageFailures[k] = v
	}
	for k, v := range t.metrics.StageAvgTimes {
		out.StageAvgTimes[k] = v
	}
	return out
}
