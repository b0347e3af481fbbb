package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-translator/internal/domain"
)

const namespace = "media_translator"

// Collector records job, artifact, and API activity on its own registry.
type Collector struct {
	registry      *prometheus.Registry
	notifications *prometheus.CounterVec
	jobsFinished  *prometheus.CounterVec
	jobProgress   prometheus.Gauge
	waiting       prometheus.Gauge
	transfers     *prometheus.CounterVec
	requests      *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications emitted, by kind and failure category.",
		}, []string{"kind", "category"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status.",
		}, []string{"status"}),
		jobProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_job_progress",
			Help:      "Overall progress of the followed job, 0 to 100.",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_job_waiting_attempts",
			Help:      "Consecutive polls that did not find the followed job.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_transfers_total",
			Help:      "Finished artifact transfers, by kind and result.",
		}, []string{"kind", "result"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Control API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.notifications,
		c.jobsFinished,
		c.jobProgress,
		c.waiting,
		c.transfers,
		c.requests,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Notify implements domain.Notifier.
func (c *Collector) Notify(n domain.Notification) {
	category := string(n.Category)
	if category == "" {
		category = "none"
	}
	c.notifications.WithLabelValues(string(n.Kind), category).Inc()

	if n.State != nil {
		c.jobProgress.Set(float64(n.State.Progress))
		c.waiting.Set(float64(n.State.WaitingCount))
		if n.State.IsTerminal() && n.Kind != domain.NotificationWaiting && n.Kind != domain.NotificationNotice {
			c.jobsFinished.WithLabelValues(string(n.State.Status)).Inc()
		}
	}

	if n.Artifact != nil && n.Kind != domain.NotificationNotice {
		switch n.Artifact.Transfer {
		case domain.TransferSucceeded, domain.TransferFailed:
			c.transfers.WithLabelValues(string(n.Artifact.Kind), string(n.Artifact.Transfer)).Inc()
		}
	}
}

// ObserveRequest records one API request.
func (c *Collector) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
