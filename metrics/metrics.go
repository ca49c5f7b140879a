package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhooksReceived counts inbound webhook signals by outcome
// (accepted, rejected).
var WebhooksReceived = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signal_trader",
		Subsystem: "intake",
		Name:      "webhooks_total",
		Help:      "Inbound webhook signals by outcome",
	},
	[]string{"outcome"},
)

// EntriesPlaced counts entry orders submitted to the broker.
var EntriesPlaced = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "signal_trader",
		Subsystem: "intake",
		Name:      "entries_total",
		Help:      "Entry orders submitted to the broker",
	},
)

// ExitsTotal counts terminal supervision outcomes by kind
// (take_profit, stop_loss, aborted).
var ExitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signal_trader",
		Subsystem: "supervisor",
		Name:      "exits_total",
		Help:      "Terminal supervision outcomes by kind",
	},
	[]string{"kind"},
)

// MonitorErrors counts transient failures absorbed by the monitoring
// loop, by operation (order_status, quote, tp_submit, stop_cancel).
var MonitorErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signal_trader",
		Subsystem: "supervisor",
		Name:      "monitor_errors_total",
		Help:      "Transient failures absorbed by the monitoring loop",
	},
	[]string{"op"},
)
