// Package metrics exposes clustering pipeline metrics to prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

const namespace = "clusterer"

type Metrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	phrases   prometheus.Histogram
	fallbacks *prometheus.CounterVec
}

// New registers the collectors in reg. Use prometheus.DefaultRegisterer
// to serve them from promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of clustering runs",
			},
			[]string{"mode", "source"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of clustering runs in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode", "source"},
		),
		phrases: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_phrases",
				Help:      "Distribution of input sizes",
				Buckets:   []float64{5, 10, 25, 50, 100, 200, 500, 1000, 2500},
			},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generative_fallbacks_total",
				Help:      "Generative runs replaced by local clustering",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) ObserveClustering(mode core.Mode, source core.Source, phrases int, took time.Duration) {
	m.runs.WithLabelValues(string(mode), string(source)).Inc()
	m.duration.WithLabelValues(string(mode), string(source)).Observe(took.Seconds())
	m.phrases.Observe(float64(phrases))
}

func (m *Metrics) GenerativeFallback(reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}
