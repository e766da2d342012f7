package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	engineTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghostnet",
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Engine process calls by whether work was done.",
		},
		[]string{"node", "work"},
	)
	clientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghostnet",
			Subsystem: "engine",
			Name:      "client_requests_total",
			Help:      "Terminal outcomes of client requests.",
		},
		[]string{"node", "request", "success"},
	)
	gatewayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghostnet",
			Subsystem: "gateway",
			Name:      "events_total",
			Help:      "Events lifted from gateway children.",
		},
		[]string{"node", "space", "event"},
	)
	heldPeers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ghostnet",
			Subsystem: "dht",
			Name:      "held_peers",
			Help:      "Peers held per space.",
		},
		[]string{"node", "space"},
	)
	heldEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ghostnet",
			Subsystem: "dht",
			Name:      "held_entries",
			Help:      "Entries held per space.",
		},
		[]string{"node", "space"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghostnet",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ghostnet",
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(engineTicks, clientRequests, gatewayEvents, heldPeers, heldEntries, httpRequests, httpDuration)
	})
}

func RecordTick(node string, work bool) {
	RegisterMetrics()
	engineTicks.WithLabelValues(node, strconv.FormatBool(work)).Inc()
}

func RecordClientRequest(node, request string, err error) {
	RegisterMetrics()
	clientRequests.WithLabelValues(node, request, strconv.FormatBool(err == nil)).Inc()
}

func RecordGatewayEvent(node, space, event string) {
	RegisterMetrics()
	gatewayEvents.WithLabelValues(node, space, event).Inc()
}

func SetHeld(node, space string, peers, entries int) {
	RegisterMetrics()
	heldPeers.WithLabelValues(node, space).Set(float64(peers))
	heldEntries.WithLabelValues(node, space).Set(float64(entries))
}

// ForgetSpace drops the gauges of a space the node left.
func ForgetSpace(node, space string) {
	RegisterMetrics()
	heldPeers.DeleteLabelValues(node, space)
	heldEntries.DeleteLabelValues(node, space)
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
