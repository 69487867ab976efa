package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts handled commands by command and outcome
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postlink_commands_total",
		Help: "Total number of recognized commands handled",
	}, []string{"command", "outcome"})

	// IgnoredMessagesTotal counts inbound texts that matched no command
	IgnoredMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postlink_ignored_messages_total",
		Help: "Total number of inbound messages that were not a recognized command",
	})

	// LinkOverrides tracks the number of registered link overrides
	LinkOverrides = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "postlink_link_overrides",
		Help: "Current number of post numbers with a registered override",
	})

	// PersistFailuresTotal counts failed write-through saves by backend
	PersistFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postlink_persist_failures_total",
		Help: "Total number of link store saves that failed to persist",
	}, []string{"backend"})

	// PersistDuration tracks write-through save latency
	PersistDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postlink_persist_duration_seconds",
		Help:    "Link store persistence duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	// ReplyFailuresTotal counts replies the transport could not deliver
	ReplyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postlink_reply_failures_total",
		Help: "Total number of outbound replies that failed to send",
	})
)

// RecordCommand records a handled command
func RecordCommand(command, outcome string) {
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// RecordPersist records a persistence attempt
func RecordPersist(backend string, seconds float64, err error) {
	PersistDuration.WithLabelValues(backend).Observe(seconds)
	if err != nil {
		PersistFailuresTotal.WithLabelValues(backend).Inc()
	}
}
