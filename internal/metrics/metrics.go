package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectedIdentities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caseline_connected_identities",
			Help: "Identities with a live socket",
		},
	)

	RoomSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caseline_room_subscriptions",
			Help: "Connection to conversation subscriptions",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseline_messages_sent_total",
			Help: "Messages persisted and broadcast",
		},
		[]string{"path"}, // "socket", "http" or "system"
	)

	BroadcastFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseline_broadcast_frames_total",
			Help: "Frames pushed to room members",
		},
		[]string{"event"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseline_notifications_total",
			Help: "Notification envelopes by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: "delivered" or "dropped"
	)

	DroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseline_dropped_frames_total",
			Help: "Frames dropped because a client buffer was full or closed",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseline_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseline_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
