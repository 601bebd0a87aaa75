package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics carries the counters and histograms the payroll and stamping
// pipelines report into.
type Metrics struct {
	Registry *prometheus.Registry

	CalculationRuns     *prometheus.CounterVec
	CalculationDuration prometheus.Histogram
	EmployeeFailures    prometheus.Counter
	StampAttempts       *prometheus.CounterVec
	CancelAttempts      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		CalculationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nomina",
			Name:      "payroll_calculation_runs_total",
			Help:      "Payroll calculation runs by outcome.",
		}, []string{"outcome"}),
		CalculationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nomina",
			Name:      "payroll_calculation_duration_seconds",
			Help:      "Wall time of a full payroll calculation run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		EmployeeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nomina",
			Name:      "payroll_employee_failures_total",
			Help:      "Per-employee formula failures recorded during runs.",
		}),
		StampAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nomina",
			Name:      "fiscal_stamp_attempts_total",
			Help:      "PAC stamping attempts by outcome.",
		}, []string{"outcome"}),
		CancelAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nomina",
			Name:      "fiscal_cancel_attempts_total",
			Help:      "PAC cancellation attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.CalculationRuns,
		m.CalculationDuration,
		m.EmployeeFailures,
		m.StampAttempts,
		m.CancelAttempts,
	)
	return m
}
