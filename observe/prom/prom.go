// Package prom provides a Prometheus-backed Observer for the conc
// evaluator. All collectors are registered on the Registerer supplied by
// the caller, so the observer works with both the default registry and
// per-test registries.
package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NetPo4ki/go-conc/conc"
)

// Observer exports evaluation metrics. It implements conc.Observer.
type Observer struct {
	runsStarted   prometheus.Counter
	runsFinished  prometheus.Counter
	runErrors     prometheus.Counter
	runDuration   prometheus.Histogram
	tasksActive   prometheus.Gauge
	tasksStarted  prometheus.Counter
	tasksFinished prometheus.Counter
	tasksErrored  prometheus.Counter
	tasksPanicked prometheus.Counter
	taskDuration  prometheus.Histogram
	branchCancels prometheus.Counter
}

var _ conc.Observer = (*Observer)(nil)

// New creates an Observer and registers its collectors on reg.
func New(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_runs_started_total",
			Help: "Evaluations started.",
		}),
		runsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_runs_finished_total",
			Help: "Evaluations finished, on any exit path.",
		}),
		runErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_run_errors_total",
			Help: "Evaluations that finished with an error.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conc_run_duration_seconds",
			Help:    "Wall-clock duration of evaluations.",
			Buckets: prometheus.DefBuckets,
		}),
		tasksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "conc_tasks_active",
			Help: "Leaf tasks currently running.",
		}),
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_tasks_started_total",
			Help: "Leaf tasks started.",
		}),
		tasksFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_tasks_finished_total",
			Help: "Leaf tasks finished, including cancelled ones.",
		}),
		tasksErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_task_errors_total",
			Help: "Leaf tasks that finished with an error.",
		}),
		tasksPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_task_panics_total",
			Help: "Leaf tasks that panicked.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conc_task_duration_seconds",
			Help:    "Wall-clock duration of leaf tasks.",
			Buckets: prometheus.DefBuckets,
		}),
		branchCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_branch_cancellations_total",
			Help: "Branches cancelled because a sibling failed or won a race.",
		}),
	}
	for _, c := range []prometheus.Collector{
		o.runsStarted, o.runsFinished, o.runErrors, o.runDuration,
		o.tasksActive, o.tasksStarted, o.tasksFinished, o.tasksErrored,
		o.tasksPanicked, o.taskDuration, o.branchCancels,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// MustNew is New, panicking on registration failure.
func MustNew(reg prometheus.Registerer) *Observer {
	o, err := New(reg)
	if err != nil {
		panic(err)
	}
	return o
}

// RunStarted records the start of an evaluation.
func (o *Observer) RunStarted(_ context.Context) {
	o.runsStarted.Inc()
}

// RunFinished records an evaluation's duration and outcome.
func (o *Observer) RunFinished(_ context.Context, dur time.Duration, err error) {
	o.runsFinished.Inc()
	o.runDuration.Observe(dur.Seconds())
	if err != nil {
		o.runErrors.Inc()
	}
}

// TaskStarted increments the active and started counters.
func (o *Observer) TaskStarted(_ context.Context) {
	o.tasksActive.Inc()
	o.tasksStarted.Inc()
}

// TaskFinished decrements active and tracks error/panic and duration.
func (o *Observer) TaskFinished(_ context.Context, dur time.Duration, err error, panicked bool) {
	o.tasksActive.Dec()
	o.tasksFinished.Inc()
	o.taskDuration.Observe(dur.Seconds())
	if err != nil {
		o.tasksErrored.Inc()
	}
	if panicked {
		o.tasksPanicked.Inc()
	}
}

// BranchCancelled records a cancellation of a losing or failed sibling.
func (o *Observer) BranchCancelled(_ context.Context, _ error) {
	o.branchCancels.Inc()
}
