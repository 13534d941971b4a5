package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	Checkouts         *prometheus.CounterVec
	SubOrdersCreated  prometheus.Counter
	Payments          *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	StockRejections   prometheus.Counter
	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "checkouts_total",
			Help:      "Checkouts by result.",
		}, []string{"result"}),
		SubOrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "sub_orders_created_total",
			Help:      "Sub-orders created at checkout.",
		}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "payments_total",
			Help:      "Payment submissions by method and result.",
		}, []string{"method", "result"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "status_transitions_total",
			Help:      "Committed sub-order status transitions.",
		}, []string{"from", "to"}),
		StockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "stock_rejections_total",
			Help:      "Confirmations rejected for insufficient stock.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
	}
	reg.MustRegister(m.Checkouts, m.SubOrdersCreated, m.Payments, m.StatusTransitions, m.StockRejections, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) Checkout(result string, subOrders int) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
	m.SubOrdersCreated.Add(float64(subOrders))
}

func (m *Metrics) Payment(method, result string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(method, result).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) StockRejected() {
	if m == nil {
		return
	}
	m.StockRejections.Inc()
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			m.Requests.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
			return nil
		}
	}
}
