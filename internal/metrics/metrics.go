package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DashboardMetrics covers the gateway calls and the user-facing actions.
type DashboardMetrics struct {
	GatewayRequestsTotal    *prometheus.CounterVec
	GatewayRequestDuration  *prometheus.HistogramVec
	StatusUpdatesTotal      *prometheus.CounterVec
	RefundsInitiatedTotal   *prometheus.CounterVec
	RefundAmountTotal       prometheus.Counter
	SummaryRecomputesTotal  prometheus.Counter
	MerchantSelectionsTotal prometheus.Counter
}

func New(reg prometheus.Registerer) *DashboardMetrics {
	factory := promauto.With(reg)
	return &DashboardMetrics{
		GatewayRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Gateway calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		GatewayRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "Gateway call latency by operation",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"operation"},
		),
		StatusUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "status_updates_total",
				Help: "Confirmed return status updates by new status",
			},
			[]string{"status"},
		),
		RefundsInitiatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refunds_initiated_total",
				Help: "Refund initiations by outcome",
			},
			[]string{"outcome"},
		),
		RefundAmountTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "refund_amount_total",
				Help: "Total amount of confirmed refunds",
			},
		),
		SummaryRecomputesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "summary_recomputes_total",
				Help: "Summary derivations from the raw returns collection",
			},
		),
		MerchantSelectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "merchant_selections_total",
				Help: "Merchant selection changes",
			},
		),
	}
}

func (m *DashboardMetrics) RecordGatewayCall(operation string, durationSeconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GatewayRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.GatewayRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

func (m *DashboardMetrics) RecordStatusUpdate(status string) {
	m.StatusUpdatesTotal.WithLabelValues(status).Inc()
}

func (m *DashboardMetrics) RecordRefund(amount float64, err error) {
	if err != nil {
		m.RefundsInitiatedTotal.WithLabelValues("error").Inc()
		return
	}
	m.RefundsInitiatedTotal.WithLabelValues("ok").Inc()
	m.RefundAmountTotal.Add(amount)
}
