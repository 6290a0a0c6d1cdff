// Package metrics holds the Prometheus collectors exported by the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "partshop"

// Metrics records HTTP and shop activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cartMutations *prometheus.CounterVec
	orders        *prometheus.CounterVec
	orderAmount   *prometheus.CounterVec
	retries       *prometheus.CounterVec
	degradedReads *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg returns a no-op Metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation.",
		}, []string{"operation"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order lifecycle operations by event.",
		}, []string{"event"}),
		orderAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_amount_total",
			Help:      "Sum of created order totals by currency.",
		}, []string{"currency"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retries_total",
			Help:      "Operations retried after a transient store error.",
		}, []string{"operation"}),
		degradedReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_reads_total",
			Help:      "Reads answered with an empty result because the store was unavailable.",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.cartMutations,
		m.orders,
		m.orderAmount,
		m.retries,
		m.degradedReads,
	)

	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// IncCartMutation counts a successful cart mutation.
func (m *Metrics) IncCartMutation(operation string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncOrder counts an order lifecycle event.
func (m *Metrics) IncOrder(event string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(event)).Inc()
}

// AddOrderAmount adds a created order's total.
func (m *Metrics) AddOrderAmount(currency string, amount float64) {
	if m == nil || amount < 0 {
		return
	}
	m.orderAmount.WithLabelValues(normalizeLabel(currency)).Add(amount)
}

// IncRetry counts a retried operation.
func (m *Metrics) IncRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncDegradedRead counts a read served empty because the store was unavailable.
func (m *Metrics) IncDegradedRead(operation string) {
	if m == nil {
		return
	}
	m.degradedReads.WithLabelValues(normalizeLabel(operation)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
