package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Policy defines retry behavior for a fallible operation.
type Policy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
	// Retryable decides whether an error is worth another attempt. Nil means
	// "retry transient-class errors" (see Classify).
	Retryable func(error) bool
}

// DefaultPolicy provides sensible defaults for carrier network calls.
var DefaultPolicy = Policy{
	MaxRetries:    3,
	BaseDelay:     1 * time.Second,
	MaxDelay:      60 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// Class buckets errors by how the caller should react.
type Class int

const (
	// ClassTransient covers timeouts, connection resets and 5xx: retry.
	ClassTransient Class = iota
	// ClassAuth covers missing or rejected credentials: do not retry, the
	// caller should fall through to its next tier.
	ClassAuth
	// ClassNotFound covers unknown tracking numbers: terminal.
	ClassNotFound
	// ClassFatal covers everything that retrying cannot fix.
	ClassFatal
)

// Classify buckets an error by message inspection. HTTP status codes travel
// inside error strings at the carrier boundary, so matching on the message is
// the only uniform signal across tiers.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	s := strings.ToLower(err.Error())

	if strings.Contains(s, "401") || strings.Contains(s, "403") ||
		strings.Contains(s, "unauthorized") || strings.Contains(s, "forbidden") ||
		strings.Contains(s, "invalid credentials") || strings.Contains(s, "credentials not configured") ||
		strings.Contains(s, "api key") {
		return ClassAuth
	}

	if strings.Contains(s, "404") || strings.Contains(s, "not found") ||
		strings.Contains(s, "no tracking events") {
		return ClassNotFound
	}

	if strings.Contains(s, "timeout") || strings.Contains(s, "timed out") ||
		strings.Contains(s, "connection reset") || strings.Contains(s, "connection refused") ||
		strings.Contains(s, "429") || strings.Contains(s, "too many requests") ||
		strings.Contains(s, "500") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "504") ||
		strings.Contains(s, "temporarily unavailable") || strings.Contains(s, "eof") {
		return ClassTransient
	}

	return ClassFatal
}

// Transient reports whether err is worth retrying under the default
// classification.
func Transient(err error) bool {
	return Classify(err) == ClassTransient
}

// Do runs op with exponential backoff until it succeeds, a non-retryable
// error occurs, the attempt budget is spent, or ctx is cancelled. The
// operation is invoked at most MaxRetries+1 times; the last error is
// returned on exhaustion.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	retryable := p.Retryable
	if retryable == nil {
		retryable = Transient
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt == p.MaxRetries+1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff(attempt, p)):
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxRetries+1, lastErr)
}

// backoff computes min(base * factor^(attempt-1), max), optionally spread by
// a uniform factor in [0.5, 1.5) to avoid synchronized retries.
func backoff(attempt int, p Policy) time.Duration {
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}

	delay := float64(p.BaseDelay) * math.Pow(factor, float64(attempt-1))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && delay > max {
		delay = max
	}
	if p.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}
