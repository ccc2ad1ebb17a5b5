package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of the service. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	RSVPSubmissions  *prometheus.CounterVec
	InvitationChecks *prometheus.CounterVec
	WriteRetries     prometheus.Counter
	VersionConflicts prometheus.Counter
	StorageErrors    *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RSVPSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rsvp_submissions_total",
			Help:      "RSVP responses recorded, by status and channel",
		}, []string{"status", "channel"}),
		InvitationChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invitation_checks_total",
			Help:      "Invitation code validations, by result",
		}, []string{"result"}),
		WriteRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guest_write_retries_total",
			Help:      "Guest updates retried after losing an optimistic lock",
		}),
		VersionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guest_write_conflicts_total",
			Help:      "Guest updates abandoned after exhausting retries",
		}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Unexpected storage failures, by error type",
		}, []string{"type"}),
	}
	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.RSVPSubmissions,
		c.InvitationChecks,
		c.WriteRetries,
		c.VersionConflicts,
		c.StorageErrors,
	)
	return c
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordSubmission(status, channel string) {
	if c == nil {
		return
	}
	c.RSVPSubmissions.WithLabelValues(status, channel).Inc()
}

func (c *Collector) RecordInvitationCheck(result string) {
	if c == nil {
		return
	}
	c.InvitationChecks.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRetry() {
	if c == nil {
		return
	}
	c.WriteRetries.Inc()
}

func (c *Collector) RecordConflict() {
	if c == nil {
		return
	}
	c.VersionConflicts.Inc()
}

func (c *Collector) RecordStorageError(errType string) {
	if c == nil {
		return
	}
	c.StorageErrors.WithLabelValues(errType).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
