package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_BackoffSleepsNonDecreasing(t *testing.T) {
	// Three consecutive 429s followed by a success must produce exactly
	// three sleeps with non-decreasing durations.
	var calls int
	var sleeps []time.Duration

	cfg := RetryConfig{
		MaxAttempts: 4,
		BackoffBase: 1200 * time.Millisecond,
		Multiplier:  2.0,
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
	}

	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls <= 3 {
			return "", NewStatusError("yelp", 429, []byte("too many requests"))
		}
		return `{"businesses":[]}`, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != `{"businesses":[]}` {
		t.Errorf("unexpected value: %q", val)
	}
	if len(sleeps) != 3 {
		t.Fatalf("expected exactly 3 sleeps, got %d", len(sleeps))
	}
	for i := 1; i < len(sleeps); i++ {
		if sleeps[i] < sleeps[i-1] {
			t.Errorf("sleep %d (%v) shorter than sleep %d (%v)", i, sleeps[i], i-1, sleeps[i-1])
		}
	}
	if sleeps[0] != 1200*time.Millisecond {
		t.Errorf("first sleep should equal backoff base, got %v", sleeps[0])
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewStatusError("fsq", 503, []byte("unavailable"))
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentErrorNoRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{MaxAttempts: 3, BackoffBase: time.Millisecond}

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewStatusError("yelp", 400, []byte("bad request"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent error must not retry, got %d calls", calls)
	}
}

func TestDo_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{MaxAttempts: 5, BackoffBase: time.Millisecond}

	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		cancel()
		return NewStatusError("overpass", 500, nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call after cancellation, got %d", calls)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", NewStatusError("yelp", 429, nil), true},
		{"503", NewStatusError("fsq", 503, nil), true},
		{"404", NewStatusError("yelp", 404, nil), false},
		{"401", NewStatusError("opencage", 401, nil), false},
		{"timeout message", errors.New("Get \"x\": i/o timeout"), true},
		{"plain error", errors.New("malformed response"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	min := 60 * time.Second
	max := 30 * time.Minute

	if got := ParseRetryAfter("90", "", min, max, now); got != 90*time.Second {
		t.Errorf("retry-after seconds: got %v", got)
	}
	if got := ParseRetryAfter("5", "", min, max, now); got != min {
		t.Errorf("retry-after below floor: got %v", got)
	}
	if got := ParseRetryAfter("7200", "", min, max, now); got != max {
		t.Errorf("retry-after above cap: got %v", got)
	}
	// Reset as epoch seconds, 120s in the future.
	if got := ParseRetryAfter("", "1700000120", min, max, now); got != 120*time.Second {
		t.Errorf("reset epoch seconds: got %v", got)
	}
	// Reset as epoch milliseconds.
	if got := ParseRetryAfter("", "1700000120000", min, max, now); got != 120*time.Second {
		t.Errorf("reset epoch millis: got %v", got)
	}
	// Absent headers mean caller default.
	if got := ParseRetryAfter("", "", min, max, now); got != 0 {
		t.Errorf("absent headers: got %v", got)
	}
	// Reset in the past is unusable.
	if got := ParseRetryAfter("", "1699999000", min, max, now); got != 0 {
		t.Errorf("past reset: got %v", got)
	}
}
