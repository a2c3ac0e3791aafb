package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visado",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visado",
			Name:      "reservations_total",
			Help:      "Reservation attempts by result.",
		},
		[]string{"result"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visado",
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	notificationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visado",
			Name:      "notification_failures_total",
			Help:      "Best-effort notification failures by kind.",
		},
		[]string{"kind"},
	)

	chatReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visado",
			Name:      "chat_replies_total",
			Help:      "Classifier replies by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservations,
			webhookEvents,
			notificationFailures,
			chatReplies,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncReservation counts a reservation attempt: created, conflict, error.
func IncReservation(result string) {
	reservations.WithLabelValues(result).Inc()
}

// IncWebhook counts a webhook delivery outcome: confirmed, duplicate,
// fallback_created, invalid_signature, skipped, aborted, error.
func IncWebhook(outcome string) {
	webhookEvents.WithLabelValues(outcome).Inc()
}

// IncNotificationFailure counts a failed side effect: calendar, email.
func IncNotificationFailure(kind string) {
	notificationFailures.WithLabelValues(kind).Inc()
}

// IncChatReply counts a classifier round: visa, question, fallback, error.
func IncChatReply(outcome string) {
	chatReplies.WithLabelValues(outcome).Inc()
}
