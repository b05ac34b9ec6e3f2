package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(pollPassesTotal, pollPassDuration, pollNextDelay, subscriptionsArchivedTotal, notificationsTotal, activeSubscriptions)
}

var (
	pollPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablewatch_poll_passes_total",
			Help: "Scheduler passes by provider and outcome.",
		},
		[]string{"provider", "result"}, // 'ok', 'skipped'
	)

	pollPassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablewatch_poll_pass_seconds",
			Help:    "Duration of one cleanup and alert pass.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	pollNextDelay = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tablewatch_poll_next_delay_seconds",
			Help: "Delay until the next scheduled pass.",
		},
		[]string{"provider"},
	)

	subscriptionsArchivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablewatch_subscriptions_archived_total",
			Help: "Archived subscriptions by reason.",
		},
		[]string{"provider", "reason"}, // 'fulfilled', 'expired', 'user_removed'
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablewatch_notifications_total",
			Help: "Messages sent by the scheduler.",
		},
		[]string{"provider", "kind", "result"}, // kind 'available'/'expired', result 'sent'/'failed'
	)

	activeSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tablewatch_active_subscriptions",
			Help: "Active subscriptions seen by the last alert pass.",
		},
		[]string{"provider"},
	)
)

func IncPollPass(provider, result string) {
	pollPassesTotal.WithLabelValues(norm(provider), norm(result)).Inc()
}

func ObservePollPass(provider string, d time.Duration) {
	pollPassDuration.WithLabelValues(norm(provider)).Observe(d.Seconds())
}

func SetNextDelay(provider string, d time.Duration) {
	pollNextDelay.WithLabelValues(norm(provider)).Set(d.Seconds())
}

func IncArchived(provider, reason string) {
	subscriptionsArchivedTotal.WithLabelValues(norm(provider), norm(reason)).Inc()
}

func IncNotification(provider, kind string, ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(norm(provider), norm(kind), result).Inc()
}

func SetActiveSubscriptions(provider string, n int) {
	activeSubscriptions.WithLabelValues(norm(provider)).Set(float64(n))
}
