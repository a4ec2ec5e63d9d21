package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/status"
)

// Registry holds the function metrics on a private prometheus registry.
// A nil *Registry is valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	publishTotal    *prometheus.CounterVec
	publishedTotal  *prometheus.CounterVec
	publishErrors   *prometheus.CounterVec
	publishRejected *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	receiveTotal    *prometheus.CounterVec
	receiveBytes    *prometheus.HistogramVec
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubsubfn_publish_total",
				Help: "Total number of publish requests",
			},
			[]string{"status"}, // status: success, invalid, error
		),

		// Only topics the broker accepted get their own series.
		publishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubsubfn_published_messages_total",
				Help: "Total number of messages accepted by the broker, per topic",
			},
			[]string{"topic"},
		),

		publishErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubsubfn_publish_errors_total",
				Help: "Total number of failed publishes by gRPC status code",
			},
			[]string{"code"},
		),

		publishRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubsubfn_publish_rejected_total",
				Help: "Total number of publish requests that failed validation",
			},
			[]string{"field"},
		),

		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pubsubfn_publish_duration_seconds",
				Help:    "Time spent waiting for the broker to accept a message",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		receiveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubsubfn_receive_total",
				Help: "Total number of inbound messages handled",
			},
			[]string{"subscription", "status"}, // status: success, invalid, error
		),

		receiveBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pubsubfn_receive_payload_bytes",
				Help:    "Decoded payload size of inbound messages",
				Buckets: prometheus.ExponentialBuckets(16, 4, 8),
			},
			[]string{"subscription"},
		),
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(
		r.publishTotal,
		r.publishedTotal,
		r.publishErrors,
		r.publishRejected,
		r.publishDuration,
		r.receiveTotal,
		r.receiveBytes,
	)

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// RecordPublish records one publish attempt that reached the publisher.
// The topic is only used as a label once the broker has accepted a message.
func (r *Registry) RecordPublish(topic string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.publishTotal.WithLabelValues("error").Inc()
		r.publishErrors.WithLabelValues(status.Code(err).String()).Inc()
		r.publishDuration.WithLabelValues("error").Observe(duration.Seconds())
		return
	}
	r.publishTotal.WithLabelValues("success").Inc()
	r.publishedTotal.WithLabelValues(topic).Inc()
	r.publishDuration.WithLabelValues("success").Observe(duration.Seconds())
}

// RecordPublishRejected records a request that failed validation on field.
func (r *Registry) RecordPublishRejected(field string) {
	if r == nil {
		return
	}
	r.publishTotal.WithLabelValues("invalid").Inc()
	r.publishRejected.WithLabelValues(field).Inc()
}

// RecordReceive records one inbound message. size is ignored unless err is nil.
func (r *Registry) RecordReceive(subscription string, size int, err error, invalid bool) {
	if r == nil {
		return
	}
	status := "success"
	switch {
	case invalid:
		status = "invalid"
	case err != nil:
		status = "error"
	}
	r.receiveTotal.WithLabelValues(subscription, status).Inc()
	if err == nil {
		r.receiveBytes.WithLabelValues(subscription).Observe(float64(size))
	}
}
