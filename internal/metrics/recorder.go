// Package metrics records context-manager activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements contextmgr.Recorder on Prometheus collectors.
type Recorder struct {
	prepareTotal      *prometheus.CounterVec
	contextUsage      *prometheus.GaugeVec
	summarizeDuration *prometheus.HistogramVec
	summarizeErrors   *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its collectors on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		prepareTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatwindow_prepare_total",
				Help: "Context preparations by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		contextUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chatwindow_context_usage_percent",
				Help: "Estimated context window usage of the last prepared history",
			},
			[]string{"model"},
		),
		summarizeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatwindow_summarize_duration_seconds",
				Help:    "Duration of summarization calls",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),
		summarizeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatwindow_summarize_errors_total",
				Help: "Summarization calls that returned an error",
			},
			[]string{"model"},
		),
	}

	for _, c := range []prometheus.Collector{r.prepareTotal, r.contextUsage, r.summarizeDuration, r.summarizeErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObservePrepare records the outcome and input usage of a preparation.
func (r *Recorder) ObservePrepare(model, outcome string, usagePercent int) {
	r.prepareTotal.WithLabelValues(model, outcome).Inc()
	r.contextUsage.WithLabelValues(model).Set(float64(usagePercent))
}

// ObserveSummarize records a summarization call.
func (r *Recorder) ObserveSummarize(model string, elapsed time.Duration, err error) {
	r.summarizeDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	if err != nil {
		r.summarizeErrors.WithLabelValues(model).Inc()
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
