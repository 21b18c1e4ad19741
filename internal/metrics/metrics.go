package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Item outcome labels.
const (
	OutcomeAlerted      = "alerted"
	OutcomeNotifyFailed = "notify_failed"
	OutcomeFetchFailed  = "fetch_failed"
	OutcomeNoAction     = "no_action"
)

// Recorder holds the sweep metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	Sweeps        *prometheus.CounterVec
	SweepDuration prometheus.Histogram
	Items         *prometheus.CounterVec
	DeleteErrors  prometheus.Counter
	LastSweep     prometheus.Gauge
	TrackedItems  prometheus.Gauge
	Submissions   *prometheus.CounterVec
}

// NewRecorder creates and registers all pricewatch metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		Sweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_sweeps_total",
				Help: "Total number of price check sweeps by result",
			},
			[]string{"result"},
		),

		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pricewatch_sweep_duration_seconds",
				Help:    "Wall-clock duration of completed sweeps",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
		),

		Items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_items_checked_total",
				Help: "Tracked items processed, by outcome",
			},
			[]string{"outcome"},
		),

		DeleteErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pricewatch_delete_errors_total",
				Help: "Alerted items that could not be removed from the store",
			},
		),

		LastSweep: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricewatch_last_sweep_timestamp_seconds",
				Help: "Unix time the last sweep finished",
			},
		),

		TrackedItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricewatch_tracked_items",
				Help: "Items in the store at the start of the last sweep",
			},
		),

		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_submissions_total",
				Help: "Tracking requests received, by result",
			},
			[]string{"result"},
		),
	}

	r.registry.MustRegister(
		r.Sweeps,
		r.SweepDuration,
		r.Items,
		r.DeleteErrors,
		r.LastSweep,
		r.TrackedItems,
		r.Submissions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveSweep records a finished sweep. A nil Recorder is a no-op.
func (r *Recorder) ObserveSweep(total int, counts map[string]int, deleteErrors int, duration time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.Sweeps.WithLabelValues("completed").Inc()
	r.SweepDuration.Observe(duration.Seconds())
	r.TrackedItems.Set(float64(total))
	for outcome, n := range counts {
		r.Items.WithLabelValues(outcome).Add(float64(n))
	}
	r.DeleteErrors.Add(float64(deleteErrors))
	r.LastSweep.Set(float64(finished.Unix()))
}

// SweepAborted records a sweep that could not list the store.
func (r *Recorder) SweepAborted() {
	if r == nil {
		return
	}
	r.Sweeps.WithLabelValues("aborted").Inc()
}

// SweepSkipped records a sweep skipped because another process held the lock.
func (r *Recorder) SweepSkipped() {
	if r == nil {
		return
	}
	r.Sweeps.WithLabelValues("skipped").Inc()
}

// Submitted counts one tracking request.
func (r *Recorder) Submitted(result string) {
	if r == nil {
		return
	}
	r.Submissions.WithLabelValues(result).Inc()
}
