package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RemindersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_notify_reminders_total",
			Help: "Reminder job lifecycle counter by stage",
		},
		[]string{"stage"}, // scheduled|delivered|failed|cancelled|restored|dropped
	)

	RepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_notify_replies_total",
			Help: "Inbound WhatsApp replies by outcome",
		},
		[]string{"outcome"},
	)

	DirectSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_notify_direct_sends_total",
			Help: "Immediate template sends by result",
		},
		[]string{"result"}, // sent|failed
	)

	TimersArmed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clinic_notify_timers_armed",
			Help: "Reminder timers currently armed in this process",
		},
	)

	RecoveryOK = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clinic_notify_recovery_ok",
			Help: "1 when the last startup recovery re-armed every scheduled job, 0 otherwise",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RemindersTotal,
		RepliesTotal,
		DirectSendsTotal,
		TimersArmed,
		RecoveryOK,
	)
}
