package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecordTransition records entry into a session state
func RecordTransition(state string) {
	SessionTransitions.WithLabelValues(state).Inc()
}

// RecordLogin records the outcome of one automated login
// result: "success" or a failure reason such as "timeout" or "exchange_failed"
// duration: time from browser launch to exchanged session
func RecordLogin(result string, duration time.Duration) {
	LoginAttempts.WithLabelValues(result).Inc()
	LoginDuration.WithLabelValues(result).Observe(float64(duration.Milliseconds()))
}

// RecordTokenStoreOperation records a token file operation
func RecordTokenStoreOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TokenStoreOperations.WithLabelValues(operation, status).Inc()
}

// WriteTextfile dumps the default registry in the text exposition format,
// for pickup by the node exporter textfile collector
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
