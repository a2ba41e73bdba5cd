package merge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
)

const metricNamespace = "depmerger"

const (
	evaluationsMetricName        = "pull_request_evaluations_total"
	evaluationDurationMetricName = "pull_request_evaluation_duration_seconds"
	mergesMetricName             = "merged_pull_requests_total"
)

const (
	outcomeLabel    = "outcome"
	gateLabel       = "gate"
	repositoryLabel = "repository"
)

type metricCollector struct {
	logger             *zap.Logger
	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	merges             *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      evaluationsMetricName,
				Help:      "count of pull request evaluations by outcome and the gate that stopped them",
			},
			[]string{outcomeLabel, gateLabel},
		),
		evaluationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      evaluationDurationMetricName,
				Help:      "duration of pull request evaluations",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 120},
			},
		),
		merges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      mergesMetricName,
				Help:      "count of merged pull requests",
			},
			[]string{repositoryLabel},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) EvaluationInc(result *Result) {
	cnt, err := m.evaluations.GetMetricWith(prometheus.Labels{
		outcomeLabel: result.Outcome.String(),
		gateLabel:    result.Gate.String(),
	})
	if err != nil {
		m.logGetMetricFailed(evaluationsMetricName, err)
		return
	}

	cnt.Inc()

	if result.Outcome != OutcomeMerged {
		return
	}

	cnt, err = m.merges.GetMetricWith(prometheus.Labels{
		repositoryLabel: result.PullRequest.Owner + "/" + result.PullRequest.Repository,
	})
	if err != nil {
		m.logGetMetricFailed(mergesMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) EvaluationDurationObserve(d time.Duration) {
	m.evaluationDuration.Observe(d.Seconds())
}
