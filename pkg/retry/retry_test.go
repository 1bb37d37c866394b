package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("still broken")
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want the last operation error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastConfig(10), func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoZeroConfigDefaults(t *testing.T) {
	// A zero config must still terminate via the default attempt budget.
	calls := 0
	start := time.Now()
	err := Do(context.Background(), Config{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, func() error {
		calls++
		return errors.New("always")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want default budget of 3", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("backoff far exceeded configured delays")
	}
}

func TestJittered(t *testing.T) {
	d := 100 * time.Millisecond
	if got := jittered(d, 0); got != d {
		t.Errorf("zero fraction changed delay: %v", got)
	}
	for i := 0; i < 50; i++ {
		got := jittered(d, 0.1)
		if got < 90*time.Millisecond || got > 110*time.Millisecond {
			t.Fatalf("jittered delay %v outside 10%% spread", got)
		}
	}
}
