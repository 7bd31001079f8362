package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesCompletedTotal counts completed sales by primary payment method.
	SalesCompletedTotal *prometheus.CounterVec
	// SalesVoidedTotal counts voided drafts.
	SalesVoidedTotal prometheus.Counter
	// SalesRefundedTotal counts refunded transactions.
	SalesRefundedTotal prometheus.Counter
	// SaleAmount records grand totals of completed sales in minor units.
	SaleAmount prometheus.Histogram
	// ShiftClosedTotal counts closed register shifts.
	ShiftClosedTotal prometheus.Counter
	// ReportSnapshotTotal counts Z report snapshot outcomes.
	ReportSnapshotTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_completed_total",
			Help:      "Count of completed sales by primary payment method.",
		}, []string{"method"})
		SalesVoidedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_voided_total",
			Help:      "Count of voided draft sales.",
		})
		SalesRefundedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_refunded_total",
			Help:      "Count of refunded sales.",
		})
		SaleAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_amount_minor_units",
			Help:      "Grand totals of completed sales in currency minor units.",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		})
		ShiftClosedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shifts_closed_total",
			Help:      "Count of closed register shifts.",
		})
		ReportSnapshotTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_snapshot_total",
			Help:      "Count of Z report snapshot outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, SalesCompletedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SalesCompletedTotal = v
			}
		})
		mustRegisterCollector(reg, SalesVoidedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SalesVoidedTotal = v
			}
		})
		mustRegisterCollector(reg, SalesRefundedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SalesRefundedTotal = v
			}
		})
		mustRegisterCollector(reg, SaleAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				SaleAmount = v
			}
		})
		mustRegisterCollector(reg, ShiftClosedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ShiftClosedTotal = v
			}
		})
		mustRegisterCollector(reg, ReportSnapshotTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReportSnapshotTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
