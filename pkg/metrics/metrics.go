// Package metrics records batch outcomes as Prometheus metrics. Batch
// runs are short-lived, so metrics are written to a textfile for the node
// exporter rather than served.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cadbench"

// Outcome labels. Every outcome but valid is an undefined case; failed
// marks a script that did not evaluate or build, undefined the rest.
const (
	OutcomeValid     = "valid"
	OutcomeUndefined = "undefined"
	OutcomeTimeout   = "timeout"
	OutcomeFailed    = "failed"
)

// Recorder owns a private registry so concurrent runs and tests do not
// collide on the global one.
type Recorder struct {
	reg *prometheus.Registry

	cases        *prometheus.CounterVec
	caseDuration *prometheus.HistogramVec
	iou          prometheus.Histogram
	generated    *prometheus.CounterVec
	lastRun      prometheus.Gauge
}

// New returns a Recorder with all collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		cases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "cases_total",
			Help:      "Scored cases by outcome",
		}, []string{"model", "outcome"}),
		caseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "case_duration_seconds",
			Help:      "Time to evaluate and align one case",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model"}),
		iou: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "iou",
			Help:      "Distribution of defined IoU scores",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		generated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "records_total",
			Help:      "Generated records by the furthest stage they reached",
		}, []string{"model", "stage"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// ObserveCase records one scored case. iou is ignored unless the outcome
// is valid.
func (r *Recorder) ObserveCase(model, outcome string, iou float64, d time.Duration) {
	r.cases.WithLabelValues(model, outcome).Inc()
	r.caseDuration.WithLabelValues(model).Observe(d.Seconds())
	if outcome == OutcomeValid {
		r.iou.Observe(iou)
	}
}

// ObserveGenerated records how far one generated record got: "none",
// "code", "stl" or "point_cloud".
func (r *Recorder) ObserveGenerated(model, stage string) {
	r.generated.WithLabelValues(model, stage).Inc()
}

// MarkRunFinished sets the last-run gauge to t.
func (r *Recorder) MarkRunFinished(t time.Time) {
	r.lastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes all metrics in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
