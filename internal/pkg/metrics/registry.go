package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session Acquisition Metrics
var (
	// SessionTransitions counts entries into each state of the acquisition flow
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitesession_session_transitions_total",
			Help: "Total session state machine transitions by target state",
		},
		[]string{"state"},
	)

	// LoginAttempts tracks automated logins by outcome
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitesession_login_attempts_total",
			Help: "Total automated browser logins by result",
		},
		[]string{"result"},
	)

	// LoginDuration tracks how long a full browser login plus exchange takes
	LoginDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "kitesession_login_duration_ms",
			Help:                            "Automated login duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"result"},
	)

	// TokenStoreOperations tracks token file reads and writes
	TokenStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitesession_token_store_operations_total",
			Help: "Total token store operations by operation and status",
		},
		[]string{"operation", "status"},
	)
)

// Kite API Metrics
var (
	// KiteAPICalls tracks Kite Connect API calls
	KiteAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitesession_kite_api_calls_total",
			Help: "Total Kite Connect API calls by method, route, and status code",
		},
		[]string{"method", "route", "status_code"},
	)

	// KiteAPIDuration tracks Kite Connect API latency
	KiteAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "kitesession_kite_api_duration_ms",
			Help:                            "Kite Connect API call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "route"},
	)

	// KiteAPIErrors tracks Kite Connect API errors by type
	KiteAPIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitesession_kite_api_errors_total",
			Help: "Total Kite Connect API errors by route and error type",
		},
		[]string{"route", "error_type"},
	)

	// KiteSessionExpired counts responses telling us the access token is dead
	KiteSessionExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitesession_kite_session_expired_total",
			Help: "Total API responses reporting an expired or invalid session",
		},
	)
)
