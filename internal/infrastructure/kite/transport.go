package kite

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devilmonastery/kitesession/internal/pkg/metrics"
)

// tokenExceptionType is the error_type Kite sends for a dead access token
const tokenExceptionType = "TokenException"

// maxErrorBody caps how much of a 403 body is inspected
const maxErrorBody = 64 << 10

// metricsTransport wraps an http.RoundTripper to collect metrics on Kite API
// calls and report expired sessions.
type metricsTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

// NewMetricsTransport creates a transport wrapper that collects metrics for
// all Kite API calls and logs when the remote reports the session expired.
// It should be installed on the Kite client's HTTP client.
func NewMetricsTransport(base http.RoundTripper, log *slog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if log == nil {
		log = slog.Default()
	}
	return &metricsTransport{base: base, logger: log}
}

// RoundTrip implements http.RoundTripper
func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	route := normalizeKiteRoute(req.URL.Path)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	metrics.KiteAPICalls.WithLabelValues(req.Method, route, strconv.Itoa(statusCode)).Inc()
	metrics.KiteAPIDuration.WithLabelValues(req.Method, route).Observe(float64(duration.Milliseconds()))

	if err != nil || statusCode >= 400 {
		metrics.KiteAPIErrors.WithLabelValues(route, classifyKiteError(statusCode, err)).Inc()
	}

	if statusCode == http.StatusForbidden && t.sessionExpired(resp) {
		metrics.KiteSessionExpired.Inc()
		t.logger.Warn("kite session expired", "method", req.Method, "route", route)
	}

	return resp, err
}

// sessionExpired peeks at a 403 body for a TokenException. The body is
// restored so the SDK can still decode it.
func (t *metricsTransport) sessionExpired(resp *http.Response) bool {
	if resp.Body == nil {
		return false
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	rest := resp.Body
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), rest), rest}
	if err != nil {
		return false
	}

	var payload struct {
		ErrorType string `json:"error_type"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return false
	}
	return payload.ErrorType == tokenExceptionType
}

var routePatterns = []struct {
	regex   *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`/orders/[A-Za-z0-9]+`), "/orders/:id"},
	{regexp.MustCompile(`/trades/[A-Za-z0-9]+`), "/trades/:id"},
	{regexp.MustCompile(`/gtt/triggers/\d+`), "/gtt/triggers/:id"},
	{regexp.MustCompile(`/mf/sips/[A-Za-z0-9]+`), "/mf/sips/:id"},
	{regexp.MustCompile(`/instruments/[A-Z]+`), "/instruments/:exchange"},
}

// normalizeKiteRoute replaces ids in Kite API paths with placeholders to keep
// metric cardinality low
func normalizeKiteRoute(path string) string {
	normalized := path
	for _, p := range routePatterns {
		normalized = p.regex.ReplaceAllString(normalized, p.replace)
	}
	return normalized
}

// classifyKiteError categorizes Kite API errors for metrics
func classifyKiteError(statusCode int, err error) string {
	if err != nil {
		errStr := err.Error()
		switch {
		case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
			return "timeout"
		case strings.Contains(errStr, "connection"):
			return "connection"
		case strings.Contains(errStr, "TLS"):
			return "tls"
		default:
			return "network"
		}
	}

	switch {
	case statusCode == 400:
		return "bad_request"
	case statusCode == 403:
		return "forbidden"
	case statusCode == 404:
		return "not_found"
	case statusCode == 429:
		return "rate_limited"
	case statusCode == 502, statusCode == 503, statusCode == 504:
		return "unavailable"
	case statusCode >= 500:
		return "server_error"
	case statusCode >= 400:
		return "client_error"
	default:
		return "unknown"
	}
}
