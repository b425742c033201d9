// Package metrics declares the Prometheus collectors of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agency_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	ComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_computations_total",
			Help: "Total number of derived views computed",
		},
		[]string{"view"},
	)

	ComputationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agency_computation_duration_seconds",
			Help:    "Duration of derived view computation in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"view"},
	)

	IntegrityErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_integrity_errors_total",
			Help: "Snapshots that failed referential integrity or hit an invariant",
		},
		[]string{"view"},
	)

	OpenDemands = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agency_open_demands",
			Help: "Open demands per SLA state at the last sweep",
		},
		[]string{"sla"},
	)

	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_sla_sweeps_total",
			Help: "SLA sweeps by outcome",
		},
		[]string{"outcome"},
	)
)

// View names used as label values.
const (
	ViewCosts         = "costs"
	ViewClientCosts   = "client_costs"
	ViewProfitability = "profitability"
	ViewSummary       = "summary"
	ViewRoster        = "roster"
	ViewMember        = "member"
	ViewBoard         = "board"
	ViewStats         = "stats"
	ViewPayments      = "design_payments"
)
