package resilience

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// StatusError is an HTTP error response from an upstream API, carrying the
// status code and a snippet of the body for logging.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Source, e.StatusCode, e.Body)
}

// NewStatusError builds a StatusError, truncating the body to keep log lines
// bounded.
func NewStatusError(source string, statusCode int, body []byte) *StatusError {
	const maxBody = 200
	b := string(body)
	if len(b) > maxBody {
		b = b[:maxBody]
	}
	return &StatusError{Source: source, StatusCode: statusCode, Body: b}
}

// IsTransient reports whether an error is safe to retry: a transient HTTP
// status (429/5xx/408), a network timeout, or a connection-level failure.
// Other 4xx statuses and malformed responses are permanent and propagate
// without retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return IsTransientStatus(se.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped client errors lose their type; fall back to message matching.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientStatus reports whether an HTTP status code indicates a
// retryable condition.
func IsTransientStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ParseRetryAfter interprets 429 pacing headers: Retry-After (delta seconds)
// or a RateLimit reset value (epoch seconds or milliseconds). The result is
// floored at min and capped at max; zero means the header was absent or
// unusable and the caller should apply its default cooldown.
func ParseRetryAfter(retryAfter, reset string, min, max time.Duration, now time.Time) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil && secs > 0 {
			return clampCooldown(time.Duration(secs*float64(time.Second)), min, max)
		}
	}
	if reset != "" {
		if epoch, err := strconv.ParseFloat(reset, 64); err == nil {
			if epoch > 1e12 { // milliseconds
				epoch /= 1000
			}
			delta := time.Duration((epoch - float64(now.Unix())) * float64(time.Second))
			if delta > 0 {
				return clampCooldown(delta, min, max)
			}
		}
	}
	return 0
}

func clampCooldown(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
