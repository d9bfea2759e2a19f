package execution

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	mtxOrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exec_orders_submitted_total",
			Help: "Orders submitted to the counter, by side and offset.",
		},
		[]string{"side", "offset"},
	)

	mtxOrdersFilled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exec_orders_filled_total",
			Help: "Orders fully filled.",
		},
	)

	mtxOrdersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exec_orders_cancelled_total",
			Help: "Orders confirmed cancelled by the counter.",
		},
	)

	mtxOrderResubmits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exec_order_resubmits_total",
			Help: "Timeout-driven order resubmissions.",
		},
	)

	mtxOrderRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exec_order_rejections_total",
			Help: "Venue order rejections by error code.",
		},
		[]string{"code"},
	)

	mtxGuardSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exec_guard_suppressed_total",
			Help: "Submissions suppressed by the cooldown guard.",
		},
	)

	mtxReconPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exec_reconciliation_passes_total",
			Help: "Completed position reconciliation passes.",
		},
	)

	mtxReconMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exec_reconciliation_mismatches_total",
			Help: "Position fields where counter snapshots diverged from local state.",
		},
	)

	mtxPendingOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exec_pending_orders",
			Help: "Working orders currently tracked.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxOrdersSubmitted,
		mtxOrdersFilled,
		mtxOrdersCancelled,
		mtxOrderResubmits,
		mtxOrderRejections,
		mtxGuardSuppressed,
		mtxReconPasses,
		mtxReconMismatches,
		mtxPendingOrders,
	)
}
