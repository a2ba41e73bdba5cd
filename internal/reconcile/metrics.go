package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "depmerger"

const resultLabel = "result"

type metricCollector struct {
	sweeps            *prometheus.CounterVec
	sweepDuration     prometheus.Gauge
	lastSweepTime     prometheus.Gauge
	sweepPullRequests prometheus.Gauge
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		sweeps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "reconciliation_sweeps_total",
				Help:      "count of reconciliation sweeps",
			},
			[]string{resultLabel},
		),
		sweepDuration: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      "reconciliation_sweep_duration_seconds",
				Help:      "duration of the last finished reconciliation sweep",
			},
		),
		lastSweepTime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      "reconciliation_sweep_last_finished_timestamp_seconds",
				Help:      "unix time when the last reconciliation sweep finished",
			},
		),
		sweepPullRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      "reconciliation_sweep_pull_requests",
				Help:      "number of pull requests evaluated by the last finished reconciliation sweep",
			},
		),
	}
}

func (m *metricCollector) SweepFailedInc() {
	m.sweeps.With(prometheus.Labels{resultLabel: "failure"}).Inc()
}

func (m *metricCollector) SweepInc(report *SweepReport) {
	m.sweeps.With(prometheus.Labels{resultLabel: "success"}).Inc()
	m.sweepDuration.Set(report.EndTime.Sub(report.StartTime).Seconds())
	m.lastSweepTime.Set(float64(report.EndTime.Unix()))
	m.sweepPullRequests.Set(float64(report.Counts().PullRequests))
}
