package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// CheckoutMetrics records order placement outcomes.
type CheckoutMetrics struct {
	placed     *prometheus.CounterVec
	duration   prometheus.Histogram
	orderValue prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of the checkout transaction in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	orderValue := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_order_total",
		Help:    "Order totals placed through checkout.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000},
	})
	reg.MustRegister(placed, duration, orderValue)
	return &CheckoutMetrics{placed: placed, duration: duration, orderValue: orderValue}
}

// ObservePlaced records a successful checkout.
func (c *CheckoutMetrics) ObservePlaced(total decimal.Decimal, took time.Duration) {
	if c == nil || c.placed == nil {
		return
	}
	c.placed.WithLabelValues("placed").Inc()
	c.duration.Observe(took.Seconds())
	c.orderValue.Observe(total.InexactFloat64())
}

// IncRejected counts a checkout refused for the given reason (empty_cart, not_found, ...).
func (c *CheckoutMetrics) IncRejected(reason string) {
	if c == nil || c.placed == nil {
		return
	}
	c.placed.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
