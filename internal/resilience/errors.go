package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// Class groups provider failures by how they should be retried.
type Class int

const (
	// ClassPermanent failures are never retried.
	ClassPermanent Class = iota
	// ClassRateLimited failures are retried with exponential backoff.
	ClassRateLimited
	// ClassTimeout failures are retried once on a fresh call.
	ClassTimeout
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTimeout:
		return "timeout"
	default:
		return "permanent"
	}
}

// Decision is the outcome of classifying an error.
type Decision struct {
	Class     Class
	Retryable bool
	// Backoff overrides the computed delay when positive, for example when
	// the provider sent a Retry-After header.
	Backoff time.Duration
}

// Classifier maps an error to a retry decision.
type Classifier func(err error) Decision

// Permanent is the decision for errors that must not be retried.
var Permanent = Decision{Class: ClassPermanent}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Err        error
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// NewStatusError wraps err with the HTTP status code of the response.
func NewStatusError(err error, statusCode int) *StatusError {
	return &StatusError{Err: err, StatusCode: statusCode}
}

// StatusFromResponse builds a StatusError for a non-2xx response, reading
// the Retry-After header when it holds a number of seconds.
func StatusFromResponse(resp *http.Response, body string) *StatusError {
	se := &StatusError{
		Err:        fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200)),
		StatusCode: resp.StatusCode,
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		var secs int
		if _, err := fmt.Sscanf(ra, "%d", &secs); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return se
}

// ClassifyStatus maps an HTTP status code to a failure class. 529 is the
// overloaded status some LLM providers return under load.
func ClassifyStatus(statusCode int) Class {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, 529:
		return ClassRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ClassTimeout
	default:
		return ClassPermanent
	}
}

// DefaultClassify recognises rate limiting and timeouts from status errors,
// provider SDK errors, context deadlines and network failures. Everything
// else is permanent.
func DefaultClassify(err error) Decision {
	if err == nil || errors.Is(err, context.Canceled) {
		return Permanent
	}

	var se *StatusError
	if errors.As(err, &se) {
		return decide(ClassifyStatus(se.StatusCode), se.RetryAfter)
	}

	if c, ok := classifyProvider(err); ok {
		return decide(c, 0)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return decide(ClassTimeout, 0)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return decide(ClassTimeout, 0)
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return decide(ClassTimeout, 0)
	}

	msg := strings.ToLower(err.Error())
	for _, p := range rateLimitPatterns {
		if strings.Contains(msg, p) {
			return decide(ClassRateLimited, 0)
		}
	}
	for _, p := range timeoutPatterns {
		if strings.Contains(msg, p) {
			return decide(ClassTimeout, 0)
		}
	}
	return Permanent
}

var (
	rateLimitPatterns = []string{
		"rate_limit",
		"rate limit",
		"too many requests",
		"resource_exhausted",
		"overloaded",
	}
	timeoutPatterns = []string{
		"i/o timeout",
		"tls handshake timeout",
		"deadline exceeded",
		"connection reset by peer",
		"server closed idle connection",
	}
)

func decide(c Class, backoff time.Duration) Decision {
	return Decision{Class: c, Retryable: c != ClassPermanent, Backoff: backoff}
}

// IsRateLimited reports whether err classifies as rate limiting.
func IsRateLimited(err error) bool {
	return DefaultClassify(err).Class == ClassRateLimited
}

// IsTimeout reports whether err classifies as a timeout.
func IsTimeout(err error) bool {
	return DefaultClassify(err).Class == ClassTimeout
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
