package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:    maxRetries,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		expect Class
	}{
		{errors.New("request timeout"), ClassTransient},
		{errors.New("connection reset by peer"), ClassTransient},
		{errors.New("http 503: service unavailable"), ClassTransient},
		{errors.New("429 Too Many Requests"), ClassTransient},
		{errors.New("http 401: unauthorized"), ClassAuth},
		{errors.New("403 Forbidden"), ClassAuth},
		{errors.New("credentials not configured"), ClassAuth},
		{errors.New("http 404: tracking number not found"), ClassNotFound},
		{errors.New("no tracking events found"), ClassNotFound},
		{errors.New("invalid payload shape"), ClassFatal},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.expect {
			t.Errorf("Classify(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("timeout")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
	if calls != 3 {
		t.Errorf("op invoked %d times, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls != 4 {
		t.Errorf("op invoked %d times, want maxRetries+1 = 4", calls)
	}
	if err.Error() == "timeout" {
		t.Errorf("exhaustion error should wrap the last failure, got %v", err)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("401 unauthorized")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("auth error retried %d times, want single attempt", calls)
	}
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{MaxRetries: 5, BaseDelay: time.Minute, BackoffFactor: 2.0}
	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		return 0, errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 4 * time.Second, BackoffFactor: 2.0}
	for attempt := 1; attempt <= 10; attempt++ {
		if d := backoff(attempt, p); d > 4*time.Second {
			t.Errorf("attempt %d: delay %v exceeds cap", attempt, d)
		}
	}
}

func TestBackoffJitterWindow(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, BackoffFactor: 2.0, Jitter: true}
	for i := 0; i < 100; i++ {
		d := backoff(1, p)
		if d < 500*time.Millisecond || d >= 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [0.5s, 1.5s)", d)
		}
	}
}
