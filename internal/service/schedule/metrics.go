package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	receivablesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bizledger",
			Name:      "receivables_generated_total",
			Help:      "Total number of receivables materialized from invoiced sales",
		},
	)
	salesInvoiced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bizledger",
			Name:      "sales_invoiced_total",
			Help:      "Invoicing attempts by outcome",
		},
		[]string{"outcome"},
	)
)
