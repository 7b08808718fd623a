package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_active_connections",
		Help: "Active websocket connections",
	})
	AuthenticatedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_authenticated_sessions",
		Help: "Websocket sessions bound to an identity",
	})
	PushDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_push_delivered_total",
		Help: "Realtime events queued to a live session",
	}, []string{"type"})
	PushDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_push_dropped_total",
		Help: "Realtime events dropped because the recipient was offline or stalled",
	}, []string{"type", "reason"})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Direct messages persisted",
	})
	NotificationsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_notifications_created_total",
		Help: "Notifications inserted, by type",
	}, []string{"type"})
	LikeToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_like_toggles_total",
		Help: "Like toggles by target kind and resulting state",
	}, []string{"kind", "state"})
)

// Init registers the collectors with the default registry. Safe to call once
// per process; tests never call it.
func Init() {
	prometheus.MustRegister(
		Connections,
		AuthenticatedSessions,
		PushDelivered,
		PushDropped,
		MessagesSent,
		NotificationsCreated,
		LikeToggles,
	)
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
