// Package metrics exposes judge counters and histograms to Prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "codejudge"

// Recorder implements observer.MetricsRecorder on Prometheus collectors.
type Recorder struct {
	compiles    *prometheus.CounterVec
	compileTime *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	runTime     *prometheus.HistogramVec
	verdicts    *prometheus.CounterVec
	tests       *prometheus.CounterVec
	inFlight    prometheus.Gauge
	cacheHits   *prometheus.CounterVec
}

// NewRecorder registers the judge collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	timeBuckets := []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 15000}
	return &Recorder{
		compiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_total",
			Help:      "Compilations by language and outcome.",
		}, []string{"language", "outcome"}),
		compileTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_ms",
			Help:      "Compilation wall time in milliseconds.",
			Buckets:   timeBuckets,
		}, []string{"language"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_total",
			Help:      "Program runs by language and classification.",
		}, []string{"language", "classification"}),
		runTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_ms",
			Help:      "Program run wall time in milliseconds.",
			Buckets:   timeBuckets,
		}, []string{"language"}),
		verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdict_total",
			Help:      "Final verdicts by language and status.",
		}, []string{"language", "status"}),
		tests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_executed_total",
			Help:      "Test cases executed by language.",
		}, []string{"language"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Judge requests holding a pool slot.",
		}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"outcome"}),
	}
}

func (r *Recorder) ObserveCompile(_ context.Context, language string, ok bool, timeMs int64) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	r.compiles.WithLabelValues(language, outcome).Inc()
	r.compileTime.WithLabelValues(language).Observe(float64(timeMs))
}

func (r *Recorder) ObserveRun(_ context.Context, language, classification string, timeMs int64) {
	r.runs.WithLabelValues(language, classification).Inc()
	r.runTime.WithLabelValues(language).Observe(float64(timeMs))
}

func (r *Recorder) ObserveVerdict(_ context.Context, language, status string, tests int) {
	r.verdicts.WithLabelValues(language, status).Inc()
	if tests > 0 {
		r.tests.WithLabelValues(language).Add(float64(tests))
	}
}

// SlotAcquired and SlotReleased track the judge pool.
func (r *Recorder) SlotAcquired() { r.inFlight.Inc() }

func (r *Recorder) SlotReleased() { r.inFlight.Dec() }

// ObserveCache counts a cache lookup; outcome is "hit", "miss" or "error".
func (r *Recorder) ObserveCache(outcome string) {
	r.cacheHits.WithLabelValues(outcome).Inc()
}
