package ghsearch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v74/github"
)

// Retry limits. Rate-limit and server-error attempts are counted
// independently, so a request can survive a mixed failure sequence.
const (
	maxRateLimitAttempts = 7
	maxServerAttempts    = 3
	maxBackoff           = 300 * time.Second
	minBackoff           = time.Second
)

// StatusError is a terminal HTTP failure. Its message shape is load-bearing:
// the failed-date store classifies permanence by matching "Client error NNN"
// and "Server error NNN" prefixes in stringified errors.
type StatusError struct {
	StatusCode int
	Op         string
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.StatusCode >= http.StatusInternalServerError {
		return fmt.Sprintf("Server error %d after %d retries: %s", e.StatusCode, maxServerAttempts, e.Op)
	}

	return fmt.Sprintf("Client error %d: %s - %s", e.StatusCode, e.Op, e.Body)
}

var statusPattern = regexp.MustCompile(`(?:Client error|Server error)\s+(\d{3})`)

// IsPermanent reports whether err represents a failure that retrying cannot
// fix: 404, 403, and 422 are permanent unless the message mentions rate
// limiting, which is always retryable.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "rate limit") {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return permanentStatus(se.StatusCode)
	}

	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return false
	}

	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return false
	}

	return permanentStatus(code)
}

func permanentStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusForbidden || code == http.StatusUnprocessableEntity
}

// retryClass buckets a failed call for the retry loop.
type retryClass int

const (
	classPermanent retryClass = iota
	classRateLimit
	classServer
	classTransport
)

// classified carries the retry decision plus any backoff hints the response
// offered.
type classified struct {
	class      retryClass
	status     int
	body       string
	retryAfter time.Duration
	resetAt    time.Time
}

// classify maps a go-github error onto the retry policy.
func classify(err error) classified {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return classified{
			class:   classRateLimit,
			status:  statusOf(rateErr.Response),
			resetAt: rateErr.Rate.Reset.Time,
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		c := classified{class: classRateLimit, status: statusOf(abuseErr.Response)}
		if abuseErr.RetryAfter != nil {
			c.retryAfter = *abuseErr.RetryAfter
		}

		return c
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		status := statusOf(respErr.Response)

		switch {
		case status == http.StatusTooManyRequests:
			return classified{
				class:      classRateLimit,
				status:     status,
				body:       respErr.Message,
				retryAfter: retryAfterOf(respErr.Response),
				resetAt:    resetOf(respErr.Response),
			}
		case status == http.StatusForbidden && strings.Contains(strings.ToLower(respErr.Message), "rate limit"):
			return classified{
				class:      classRateLimit,
				status:     status,
				body:       respErr.Message,
				retryAfter: retryAfterOf(respErr.Response),
				resetAt:    resetOf(respErr.Response),
			}
		case status >= http.StatusInternalServerError:
			return classified{class: classServer, status: status, body: respErr.Message}
		default:
			return classified{class: classPermanent, status: status, body: respErr.Message}
		}
	}

	return classified{class: classTransport}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}

	return resp.StatusCode
}

func retryAfterOf(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

func resetOf(resp *http.Response) time.Time {
	if resp == nil {
		return time.Time{}
	}

	header := resp.Header.Get("X-RateLimit-Reset")
	if header == "" {
		return time.Time{}
	}

	epoch, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(epoch, 0)
}

// rateLimitWait computes the sleep before rate-limit retry attempt (0-based):
// Retry-After wins, then seconds until the quota reset, then 2^attempt capped
// at 300s. The result is scaled by jitter and floored at 1s.
func rateLimitWait(attempt int, retryAfter time.Duration, resetAt, now time.Time, jitter float64) time.Duration {
	var wait time.Duration

	switch {
	case retryAfter > 0:
		wait = retryAfter
	case !resetAt.IsZero() && resetAt.After(now):
		wait = resetAt.Sub(now)
	default:
		wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		if wait > maxBackoff {
			wait = maxBackoff
		}
	}

	wait = time.Duration(float64(wait) * jitter)
	if wait < minBackoff {
		wait = minBackoff
	}

	return wait
}

// serverWait computes the backoff before server-error retry attempt (0-based).
func serverWait(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// jitterFactor returns a multiplier in [0.75, 1.25).
func jitterFactor() float64 {
	return 0.75 + rand.Float64()*0.5
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
