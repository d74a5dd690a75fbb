package metrics

import (
	"mines_client/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IntentsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_intents_sent_total",
			Help: "Intents written to the game channel",
		},
		[]string{"category"},
	)
	IntentsRefused = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_intents_refused_total",
			Help: "Intents refused locally before reaching the channel",
		},
		[]string{"category", "reason"},
	)
	GateTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_gate_timeouts_total",
			Help: "In-flight intents released by the bounded wait",
		},
		[]string{"category"},
	)
	ProtocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_protocol_errors_total",
			Help: "Server rejections and inconsistent inbound events",
		},
		[]string{"code"},
	)
	IntegrityFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mines_integrity_failures_total",
			Help: "Settled rounds that failed fairness verification",
		},
	)
	EventsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mines_events_rejected_total",
			Help: "Inbound frames rejected at the channel boundary",
		},
	)
	EventsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_events_applied_total",
			Help: "Inbound events accepted by the session core",
		},
		[]string{"event"},
	)
	RoundsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mines_rounds_settled_total",
			Help: "Settled rounds by outcome",
		},
		[]string{"outcome"},
	)
	SessionStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mines_session_status",
			Help: "1 for the current session status, 0 otherwise",
		},
		[]string{"status"},
	)
	Reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mines_channel_reconnects_total",
			Help: "Channel connections after the first",
		},
	)
)

func init() {
	prometheus.MustRegister(IntentsSent)
	prometheus.MustRegister(IntentsRefused)
	prometheus.MustRegister(GateTimeouts)
	prometheus.MustRegister(ProtocolErrors)
	prometheus.MustRegister(IntegrityFailures)
	prometheus.MustRegister(EventsRejected)
	prometheus.MustRegister(EventsApplied)
	prometheus.MustRegister(RoundsSettled)
	prometheus.MustRegister(SessionStatus)
	prometheus.MustRegister(Reconnects)
}

var statuses = []domain.Status{
	domain.StatusNotStarted,
	domain.StatusPlaying,
	domain.StatusResolving,
	domain.StatusSettled,
}

// SetStatus flips the status gauge to s.
func SetStatus(s domain.Status) {
	for _, st := range statuses {
		v := 0.0
		if st == s {
			v = 1
		}
		SessionStatus.WithLabelValues(string(st)).Set(v)
	}
}
