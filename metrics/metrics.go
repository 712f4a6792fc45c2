package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout results
const (
	ResultConfirmed         = "confirmed"
	ResultEmptyCart         = "empty_cart"
	ResultInsufficientStock = "insufficient_stock"
	ResultInvalidContact    = "invalid_contact"
	ResultConflict          = "conflict"
	ResultError             = "error"
)

// StoreMetrics holds the domain counters of the storefront.
type StoreMetrics struct {
	registry         *prometheus.Registry
	CartMutations    *prometheus.CounterVec
	Checkouts        *prometheus.CounterVec
	CheckoutLatency  prometheus.Histogram
	StockDebited     prometheus.Counter
	EventPublishFail *prometheus.CounterVec
}

// NewStoreMetrics registers the collectors on a fresh registry, together
// with the Go runtime and process collectors.
func NewStoreMetrics(service string) *StoreMetrics {
	reg := prometheus.NewRegistry()

	m := &StoreMetrics{
		registry: reg,
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation and outcome.",
		}, []string{"op", "result"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"result"}),
		CheckoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "checkout_duration_ms",
			Help:      "Checkout latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		StockDebited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "stock_debited_units_total",
			Help:      "Units removed from stock by confirmed orders.",
		}),
		EventPublishFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "event_publish_failures_total",
			Help:      "Order events that could not be delivered, by sink.",
		}, []string{"sink"}),
	}

	reg.MustRegister(
		m.CartMutations,
		m.Checkouts,
		m.CheckoutLatency,
		m.StockDebited,
		m.EventPublishFail,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *StoreMetrics) CartMutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.CartMutations.WithLabelValues(op, result).Inc()
}

func (m *StoreMetrics) Checkout(result string, elapsed time.Duration, units int) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
	m.CheckoutLatency.Observe(float64(elapsed.Milliseconds()))
	if result == ResultConfirmed {
		m.StockDebited.Add(float64(units))
	}
}

func (m *StoreMetrics) PublishFailed(sink string) {
	if m == nil {
		return
	}
	m.EventPublishFail.WithLabelValues(sink).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *StoreMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *StoreMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
