package lstore

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
)

// Metrics of all local stores of the process, exposed in the prometheus text
// format by metrics.WritePrometheus (see the serve command).
var (
	waitersBlocked   = metrics.GetOrCreateCounter("dlist_waiters_blocked")
	blockingTimeouts = metrics.GetOrCreateCounter("dlist_blocking_timeouts_total")
	blockingWait     = metrics.GetOrCreateHistogram("dlist_blocking_wait_seconds")
)

// countCommand increments the command counter for cmd
func countCommand(cmd string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dlist_commands_total{cmd=%q}`, cmd)).Inc()
}
