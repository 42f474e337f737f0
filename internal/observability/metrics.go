package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain collectors. HTTP traffic is instrumented separately by
// middleware.Metrics; these count what the relay decided.
var (
	// RequestsTotal counts reconciliations by kind and resolved status.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqlarr_requests_total",
			Help: "Media requests reconciled, by kind and outcome status.",
		},
		[]string{"kind", "status"},
	)

	// LibraryErrors counts failed calls to Radarr/Sonarr.
	// service is "radarr" or "sonarr"; op is "search" or "create".
	LibraryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqlarr_library_errors_total",
			Help: "Failed calls to the media library services.",
		},
		[]string{"service", "op"},
	)

	// NotificationsTotal counts download notifications by result:
	// recorded, replayed, unresolved, queued, dropped, sent, failed.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqlarr_notifications_total",
			Help: "Download notifications, by processing result.",
		},
		[]string{"result"},
	)

	// NotifyQueueDepth gauges jobs waiting in the dispatcher queue.
	NotifyQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqlarr_notify_queue_depth",
			Help: "Direct messages waiting to be delivered.",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, LibraryErrors, NotificationsTotal, NotifyQueueDepth)
}
