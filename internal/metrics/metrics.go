// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizlink_chat_messages_sent_total",
		Help: "Messages accepted by the store.",
	})

	SendRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizlink_chat_send_retries_total",
		Help: "Retried create/send attempts after transient store failures.",
	})

	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizlink_chat_send_failures_total",
		Help: "Create/send operations that exhausted their retries.",
	})

	NotificationsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizlink_chat_notifications_emitted_total",
		Help: "Local notifications emitted by the fan-out policy.",
	})

	SweepMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizlink_chat_sweep_merges_total",
		Help: "Duplicate conversations merged by the dedup sweep.",
	})

	CacheFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizlink_chat_cache_fallbacks_total",
		Help: "Inbox reads served from the stale cache while offline.",
	})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bizlink_ws_clients",
		Help: "Currently connected WebSocket clients.",
	})
)
