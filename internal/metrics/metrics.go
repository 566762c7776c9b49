// Package metrics exposes Prometheus counters for the HTTP surface and the
// expiry sweeper on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/notify"
	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	Registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	sweeps        prometheus.Counter
	sweptOrders   prometheus.Counter
	releasedUnits prometheus.Counter
	sweepErrors   prometheus.Counter
	notifications *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sweeps_total", Help: "Completed expiry sweeps.",
		}),
		sweptOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_expired_total", Help: "Orders expired by the sweeper.",
		}),
		releasedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sweep_units_released_total", Help: "Stock units returned by the sweeper.",
		}),
		sweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sweep_order_errors_total", Help: "Orders the sweeper failed to expire.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total", Help: "Customer notifications by kind and result.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(
		m.requests, m.duration, m.sweeps, m.sweptOrders, m.releasedUnits, m.sweepErrors, m.notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records every request under its chi route pattern, so ids in
// the path do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) ObserveSweep(sum orders.SweepSummary) {
	m.sweeps.Inc()
	m.sweptOrders.Add(float64(sum.Processed))
	m.releasedUnits.Add(float64(sum.UnitsReleased))
	m.sweepErrors.Add(float64(len(sum.Errors)))
}

func (m *Metrics) ObserveNotification(kind notify.Kind, ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(string(kind), result).Inc()
}

// CountNotifications consumes outcomes until the channel is closed.
func (m *Metrics) CountNotifications(outcomes <-chan notify.Outcome) {
	for o := range outcomes {
		m.ObserveNotification(o.Message.Kind, o.Result.Success)
	}
}
