// Package metrics holds the Prometheus collectors of the storefront.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

// NewServerMetrics registers the HTTP collectors on reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Observe records one finished request. Safe on a nil receiver.
func (m *ServerMetrics) Observe(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
}

// Pipeline counts checkout and reconciliation outcomes. All methods are safe
// on a nil receiver so services can run without metrics in tests.
type Pipeline struct {
	checkouts       *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	stockShortfalls prometheus.Counter
	ordersSwept     prometheus.Counter
	outboxPublished *prometheus.CounterVec
}

func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout sessions by outcome.",
		}, []string{"outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound webhook events by source and outcome.",
		}, []string{"source", "outcome"}),
		stockShortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_shortfalls_total",
			Help:      "Paid order lines whose stock decrement was clamped at zero.",
		}),
		ordersSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_swept_total",
			Help:      "Pending orders cancelled because no payment was ever recorded.",
		}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Domain events relayed to the broker.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.checkouts, m.webhooks, m.stockShortfalls, m.ordersSwept, m.outboxPublished)
	return m
}

func (m *Pipeline) Checkout(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
}

func (m *Pipeline) Webhook(source, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(source, outcome).Inc()
}

func (m *Pipeline) StockShortfall() {
	if m == nil {
		return
	}
	m.stockShortfalls.Inc()
}

func (m *Pipeline) OrdersSwept(n int) {
	if m == nil {
		return
	}
	m.ordersSwept.Add(float64(n))
}

func (m *Pipeline) OutboxPublished(eventType string) {
	if m == nil {
		return
	}
	m.outboxPublished.WithLabelValues(eventType).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
