package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	ReadingsReceived  atomic.Int64
	ReadingsEvaluated atomic.Int64
	TrendsDetected    atomic.Int64
	EventsDispatched  atomic.Int64
	ItemFailures      atomic.Int64
	ItemsDeadLettered atomic.Int64
	PollErrors        atomic.Int64
	NotifyFailures    atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "pipeline_readings_received_total %d\n", ReadingsReceived.Load())
	fmt.Fprintf(w, "pipeline_readings_evaluated_total %d\n", ReadingsEvaluated.Load())
	fmt.Fprintf(w, "pipeline_trends_detected_total %d\n", TrendsDetected.Load())
	fmt.Fprintf(w, "pipeline_events_dispatched_total %d\n", EventsDispatched.Load())
	fmt.Fprintf(w, "pipeline_item_failures_total %d\n", ItemFailures.Load())
	fmt.Fprintf(w, "pipeline_items_dead_lettered_total %d\n", ItemsDeadLettered.Load())
	fmt.Fprintf(w, "pipeline_poll_errors_total %d\n", PollErrors.Load())
	fmt.Fprintf(w, "pipeline_notify_failures_total %d\n", NotifyFailures.Load())
}
