package resilience

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func fast() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

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

func TestDo_RetriesLockedFile(t *testing.T) {
	var calls int
	err := Do(context.Background(), fast(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("save still being written"), "copy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fast(), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("busy"), "rename")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	err := Do(context.Background(), fast(), func(_ context.Context) error {
		calls++
		return os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: 50 * time.Millisecond}
	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("fail"), "copy")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call after cancel, got %d", calls)
	}
}

func TestDo_CustomShouldRetryAndOnRetry(t *testing.T) {
	var attempts []int
	cfg := fast()
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "again" }
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	var calls int
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("again")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected OnRetry attempts [1 2], got %v", attempts)
	}
}

func TestDoVal(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fast(), func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", NewTransientError(errors.New("fail"), "stat")
		}
		return "1444.11.11", nil
	})
	if err != nil || val != "1444.11.11" {
		t.Fatalf("got %q, %v", val, err)
	}

	n, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 1}, func(_ context.Context) (int, error) {
		return 42, errors.New("fail")
	})
	if err == nil || n != 0 {
		t.Fatalf("expected zero value and error, got %d, %v", n, err)
	}
}

func TestBackoff(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 500 * time.Millisecond})
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 500 * time.Millisecond}
	for i, w := range want {
		if d := backoff(i, cfg); d != w {
			t.Errorf("attempt %d: expected %v, got %v", i, w, d)
		}
	}

	cfg.JitterFraction = 0.5
	for i := 0; i < 50; i++ {
		if d := backoff(0, cfg); d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", d)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(5, 250)
	if cfg.MaxAttempts != 5 || cfg.InitialBackoff != 250*time.Millisecond {
		t.Errorf("unexpected config %+v", cfg)
	}
	cfg = FromConfig(0, 0)
	if cfg.MaxAttempts != DefaultRetryConfig().MaxAttempts {
		t.Errorf("expected default attempts, got %d", cfg.MaxAttempts)
	}
}

func TestRetryLogger(t *testing.T) {
	RetryLogger("copy", "/tmp/save.eu4")(1, errors.New("busy"))
}
