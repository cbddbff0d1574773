package server

import (
	"fmt"
	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"time"
)

// observeRequest records the handling time of a request by its command name
func observeRequest(msgType common.MessageType, start time.Time) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dlist_rpc_request_duration_seconds{cmd=%q}`, msgType.String())).UpdateDuration(start)
}
