package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amoylab/skirmish/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry   *prometheus.Registry
	namespace  string
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec
	wsConns    prometheus.Gauge
	notifyCnt  *prometheus.CounterVec
	opCnt      *prometheus.CounterVec
	opDur      *prometheus.HistogramVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	wsConns := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "ws_connections"})
	notifyCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "notifications_total"}, []string{"event", "outcome"})
	r.MustRegister(wsConns, notifyCnt)

	opCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "session_operations_total"}, []string{"op", "status"})
	opDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "session_operation_duration_seconds", Buckets: cfg.Buckets}, []string{"op"})
	r.MustRegister(opCnt, opDur)

	return &Metrics{
		registry:   r,
		namespace:  ns,
		httpReqCnt: httpReqCnt,
		httpDur:    httpDur,
		httpInfl:   httpInfl,
		wsConns:    wsConns,
		notifyCnt:  notifyCnt,
		opCnt:      opCnt,
		opDur:      opDur,
	}
}

func (m *Metrics) ConnOpened() { m.wsConns.Inc() }

func (m *Metrics) ConnClosed() { m.wsConns.Dec() }

// Notified records one push attempt; delivered is false when the target had
// no live registration.
func (m *Metrics) Notified(event string, delivered bool) {
	outcome := "delivered"
	if !delivered {
		outcome = "missed"
	}
	m.notifyCnt.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) SessionOpDone(op string, since time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.opCnt.WithLabelValues(op, status).Inc()
	m.opDur.WithLabelValues(op).Observe(time.Since(since).Seconds())
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = routeFromURL(c.Request.URL.Path)
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// routeFromURL keeps label cardinality bounded for requests gin could not route.
func routeFromURL(path string) string {
	switch {
	case strings.HasPrefix(path, "/session/close/"):
		return "/session/close/:id"
	case strings.HasPrefix(path, "/session/disconnect/"):
		return "/session/disconnect/:userId"
	case strings.HasPrefix(path, "/api/scenarios/"):
		return "/api/scenarios/:id"
	case strings.HasPrefix(path, "/session/"):
		return "/session/:id"
	}
	return path
}

func httpStatus(code int) string { return strconv.Itoa(code) }
