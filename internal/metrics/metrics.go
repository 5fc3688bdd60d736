// Package metrics holds the Prometheus collectors of the service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	adViews         *prometheus.CounterVec
	rewardMicros    prometheus.Counter
	pushSent        *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	schedulerRun    prometheus.Histogram
	wsConnections   prometheus.Gauge
}

// New registers every collector on a fresh registry. db may be nil.
func New(db *sql.DB) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if db != nil {
		reg.MustRegister(collectors.NewDBStatsCollector(db, "spotx"))
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spotx_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spotx_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		adViews: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spotx_ad_views_total",
			Help: "Recorded ad views, by verification outcome.",
		}, []string{"outcome"}),
		rewardMicros: f.NewCounter(prometheus.CounterOpts{
			Name: "spotx_rewards_issued_micros_total",
			Help: "Sum of rewards credited, in micro currency units.",
		}),
		pushSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spotx_push_notifications_total",
			Help: "Push notifications attempted, by channel and result.",
		}, []string{"channel", "result"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spotx_cache_lookups_total",
			Help: "Cache fallback lookups, by key and result.",
		}, []string{"key", "result"}),
		schedulerRun: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "spotx_scheduler_run_duration_seconds",
			Help:    "Duration of one reminder scheduler tick.",
			Buckets: prometheus.DefBuckets,
		}),
		wsConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "spotx_websocket_connections",
			Help: "Open websocket connections.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) AdView(verified bool, rewardMicros int64) {
	if m == nil {
		return
	}
	outcome := "unverified"
	if verified {
		outcome = "verified"
	}
	m.adViews.WithLabelValues(outcome).Inc()
	if rewardMicros > 0 {
		m.rewardMicros.Add(float64(rewardMicros))
	}
}

func (m *Metrics) PushResult(channel string, sent, failed int) {
	if m == nil {
		return
	}
	m.pushSent.WithLabelValues(channel, "sent").Add(float64(sent))
	m.pushSent.WithLabelValues(channel, "failed").Add(float64(failed))
}

func (m *Metrics) CacheLookup(key string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(key, result).Inc()
}

func (m *Metrics) SchedulerRun(d time.Duration) {
	if m == nil {
		return
	}
	m.schedulerRun.Observe(d.Seconds())
}

func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.wsConnections.Add(float64(delta))
}
