// Package metrics declares the Prometheus collectors shared by the CRS and
// SNS services.
//
// Naming convention: namespace_subsystem_name
//   - namespace: crs, sns, or roomline (shared rate limiting)
//   - subsystem: room, control, timeline, user, rpc, ratelimit
//   - name: specific metric
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms tracks the number of live CRS rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crs",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active chat rooms",
	})

	// RoomMembers tracks member count per room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "crs",
		Subsystem: "room",
		Name:      "members",
		Help:      "Current number of connected members in a room",
	}, []string{"room"})

	// RoomMessagesTotal counts chat messages fanned out, by room.
	RoomMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crs",
		Subsystem: "room",
		Name:      "messages_fanned_out_total",
		Help:      "Total chat messages fanned out to members",
	}, []string{"room"})

	// ControlCommandsTotal counts CREATE/DELETE/JOIN/LIST requests by status.
	ControlCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crs",
		Subsystem: "control",
		Name:      "commands_total",
		Help:      "Total control commands processed",
	}, []string{"command", "status"})

	// SNSUsersActive tracks the number of registered SNS users.
	SNSUsersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sns",
		Subsystem: "user",
		Name:      "registered_total",
		Help:      "Current number of registered users",
	})

	// SNSTimelineStreamsActive tracks attached Timeline streams.
	SNSTimelineStreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sns",
		Subsystem: "timeline",
		Name:      "streams_active",
		Help:      "Current number of attached timeline streams",
	})

	// SNSPostsTotal counts posts fanned out to followers.
	SNSPostsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sns",
		Subsystem: "timeline",
		Name:      "posts_fanned_out_total",
		Help:      "Total posts delivered to followers (recentPosts + live stream)",
	}, []string{"delivery"})

	// SNSRPCTotal counts RPCs by method and status.
	SNSRPCTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sns",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "Total SNS RPC requests processed",
	}, []string{"method", "status"})

	// RateLimitChecks counts every check performed against a named limiter.
	RateLimitChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomline",
		Subsystem: "ratelimit",
		Name:      "checks_total",
		Help:      "Total rate limit checks performed",
	}, []string{"limiter"})

	// RateLimitExceeded counts rejections by limiter name.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomline",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Total requests rejected by a rate limiter",
	}, []string{"limiter"})
)
