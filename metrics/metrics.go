// Package metrics exposes Prometheus instruments for name resolution,
// row outcomes, runs and helper pools. A *Metrics satisfies both
// roster.Observer and incentive.Recorder.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "incentive"

type Metrics struct {
	Resolutions *prometheus.CounterVec
	Rows        *prometheus.CounterVec
	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
	Records     prometheus.Counter
	PoolTotal   prometheus.Histogram
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "name_resolutions_total",
			Help:      "Agent and helper name resolutions by outcome.",
		}, []string{"outcome"}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Sales rows processed by outcome.",
		}, []string{"outcome"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Engine runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of an engine run.",
			Buckets:   prometheus.DefBuckets,
		}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Incentive records committed to the ledger.",
		}),
		PoolTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "helper_pool_rupees",
			Help:      "Per-date helper pool totals at distribution.",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 2500},
		}),
	}

	for _, c := range []prometheus.Collector{m.Resolutions, m.Rows, m.Runs, m.RunDuration, m.Records, m.PoolTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveResolution(outcome string) {
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRow(outcome string) {
	m.Rows.WithLabelValues(outcome).Inc()
}

// ObserveRun counts records only for completed runs; anything else rolled back.
func (m *Metrics) ObserveRun(status string, elapsed time.Duration, records int) {
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	if status == "completed" {
		m.Records.Add(float64(records))
	}
}

func (m *Metrics) ObservePool(total decimal.Decimal) {
	m.PoolTotal.Observe(total.InexactFloat64())
}
