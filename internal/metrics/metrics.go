package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_active_sessions",
		Help: "Authenticated meeting connections on this instance",
	})

	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_auth_failures_total",
		Help: "Rejected meeting handshakes",
	}, []string{"reason"})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_commands_total",
		Help: "Client commands handled, by type",
	}, []string{"type"})

	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_decode_errors_total",
		Help: "Malformed client frames skipped after the handshake",
	})

	Delivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_events_delivered_total",
		Help: "Bus events written to a client, by envelope type",
	}, []string{"type"})

	Gated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_events_gated_total",
		Help: "Broadcast events dropped because the receiver had not joined",
	}, []string{"type"})

	Teardowns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_teardowns_total",
		Help: "Session teardowns, by role",
	}, []string{"role"})
)

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
