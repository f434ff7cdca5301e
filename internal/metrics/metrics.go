package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kit_checkout"

var (
	paymentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "Payment creation attempts by kit and outcome",
		},
		[]string{"kit", "outcome"},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of payment provider calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	statusChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_status_checks_total",
			Help:      "Payment status checks by observed status",
		},
		[]string{"status"},
	)

	webhookNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_notifications_total",
			Help:      "Provider notifications by type and resulting payment status",
		},
		[]string{"type", "status"},
	)

	trackingDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_deliveries_total",
			Help:      "Analytics beacon deliveries by event, channel and outcome",
		},
		[]string{"event", "channel", "outcome"},
	)

	trackingDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_events_dropped_total",
			Help:      "Analytics events dropped before delivery",
		},
		[]string{"event", "reason"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status class",
		},
		[]string{"route", "method", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

func PaymentCreated(kit, outcome string) {
	paymentsCreated.WithLabelValues(kit, outcome).Inc()
}

func ProviderRequest(operation, outcome string, d time.Duration) {
	providerRequestDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

func StatusChecked(status string) {
	statusChecks.WithLabelValues(status).Inc()
}

func WebhookReceived(notificationType, status string) {
	webhookNotifications.WithLabelValues(notificationType, status).Inc()
}

func TrackingDelivery(event, channel, outcome string) {
	trackingDeliveries.WithLabelValues(event, channel, outcome).Inc()
}

func TrackingDropped(event, reason string) {
	trackingDropped.WithLabelValues(event, reason).Inc()
}

func HTTPRequest(route, method string, status int, d time.Duration) {
	httpRequests.WithLabelValues(route, method, StatusClass(status)).Inc()
	httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// StatusClass converts a status code to its range label (2xx, 4xx, ...).
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

func Handler() http.Handler {
	return promhttp.Handler()
}
