package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPipeline_NilIsNoop(t *testing.T) {
	var m *Pipeline
	assert.NotPanics(t, func() {
		m.Checkout("ok")
		m.Webhook("payment", "ok")
		m.StockShortfall()
		m.OrdersSwept(2)
		m.OutboxPublished("order.paid")
	})

	var s *ServerMetrics
	assert.NotPanics(t, func() { s.Observe("/cart", 200, time.Millisecond) })
}

func TestPipeline_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipeline(reg)

	m.Checkout("ok")
	m.Checkout("ok")
	m.Checkout("out_of_stock")
	m.OrdersSwept(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkouts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("out_of_stock")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ordersSwept))
}

func TestServerMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServerMetrics(reg)

	s.Observe("/checkout", 201, 30*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Requests.WithLabelValues("/checkout", "201")))
}
