// Package telemetry exposes the node's Prometheus collectors and a
// gopsutil-backed system sampler.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors used across the node. Each
// Registry owns its own prometheus.Registry rather than registering into
// prometheus.DefaultRegisterer, since collector collision detection keys on
// metric name plus label names — a second Registry in the same process
// (e.g. one per node under test) would otherwise panic on construction.
type Registry struct {
	reg *prometheus.Registry

	RingAppends         prometheus.Counter
	RingSnapshots       prometheus.Counter
	BrokerDispatched    prometheus.Counter
	BrokerIdleWorkers   prometheus.Gauge
	ResponderServed     prometheus.Counter
	ResponderErrors     prometheus.Counter
	PublisherQueueDepth prometheus.Gauge
	PublisherPublished  prometheus.Counter
	BeaconBroadcasts    prometheus.Counter
	SystemCPUPercent    prometheus.Gauge
	SystemMemoryBytes   prometheus.Gauge
}

// NewRegistry creates and registers every collector against a fresh,
// private prometheus.Registry scoped to this node.
func NewRegistry(nodeName string) *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		RingAppends: factory.NewCounter(prometheus.CounterOpts{
			Name:        "midas_ring_appends_total",
			Help:        "Total number of samples appended to the primary ring",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		RingSnapshots: factory.NewCounter(prometheus.CounterOpts{
			Name:        "midas_ring_snapshots_total",
			Help:        "Total number of ring snapshots taken",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		BrokerDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name:        "midas_broker_requests_dispatched_total",
			Help:        "Total number of client requests dispatched to a responder",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		BrokerIdleWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "midas_broker_idle_responders",
			Help:        "Number of responders currently idle and ready",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		ResponderServed: factory.NewCounter(prometheus.CounterOpts{
			Name:        "midas_responder_requests_served_total",
			Help:        "Total number of requests served by any responder",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		ResponderErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "midas_responder_errors_total",
			Help:        "Total number of responder-side errors (bad metric/channel/command)",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		PublisherQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "midas_publisher_queue_depth",
			Help:        "Current depth of the publisher's outbound queue",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		PublisherPublished: factory.NewCounter(prometheus.CounterOpts{
			Name:        "midas_publisher_messages_total",
			Help:        "Total number of messages published",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		BeaconBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name:        "midas_beacon_broadcasts_total",
			Help:        "Total number of beacon datagrams sent",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		SystemCPUPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "midas_system_cpu_percent",
			Help:        "Smoothed process-host CPU utilization percentage",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
		SystemMemoryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "midas_system_memory_bytes",
			Help:        "Bytes of allocated Go heap objects (runtime HeapAlloc)",
			ConstLabels: prometheus.Labels{"node": nodeName},
		}),
	}
}

// Handler returns the HTTP handler that serves the Prometheus exposition
// format for this registry's collectors.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
