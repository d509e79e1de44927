package metering

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pdf_gateway"

var (
	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metering",
			Name:      "credential_resolutions_total",
			Help:      "Credential resolution attempts by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	pagesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metering",
			Name:      "pages_recorded_total",
			Help:      "Billable pages recorded by provider",
		},
		[]string{"provider"},
	)

	// Revenue and provider cost are tracked separately because profit may be
	// negative (the free tier charges zero while the provider still bills us)
	// and counters only go up. Profit is derived at query time.
	revenueRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metering",
			Name:      "revenue_usd_total",
			Help:      "Amounts charged to tenants in USD by provider",
		},
		[]string{"provider"},
	)

	providerCostRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metering",
			Name:      "provider_cost_usd_total",
			Help:      "Operator cost of upstream provider calls in USD by provider",
		},
		[]string{"provider"},
	)
)
