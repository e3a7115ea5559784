package poller

import (
	"github.com/clambin/adax-monitor/pkg/adax"
	"github.com/prometheus/client_golang/prometheus"
	"time"
)

var _ prometheus.Collector = &Metrics{}

// Metrics records the outcome of each poll.
type Metrics struct {
	failures    *prometheus.CounterVec
	lastSuccess prometheus.Gauge
}

func NewMetrics(namespace, subsystem string, labels prometheus.Labels) *Metrics {
	return &Metrics{
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "failures_total",
			Help:        "Number of failed polls, by kind of failure",
			ConstLabels: labels,
		}, []string{"kind"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "last_success_timestamp_seconds",
			Help:        "Time of the last successful poll",
			ConstLabels: labels,
		}),
	}
}

func (m *Metrics) failed(err error) {
	if m != nil {
		m.failures.WithLabelValues(adax.FailureKind(err)).Inc()
	}
}

func (m *Metrics) succeeded(timestamp time.Time) {
	if m != nil {
		m.lastSuccess.Set(float64(timestamp.UnixNano()) / float64(time.Second))
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.failures.Describe(ch)
	m.lastSuccess.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.failures.Collect(ch)
	m.lastSuccess.Collect(ch)
}
