package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func fail(_ context.Context) (int, error) { return 0, errBackend }
func succeed(_ context.Context) (int, error) { return 1, nil }

func newTestBreaker(threshold int) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{Threshold: threshold, Cooldown: time.Minute})
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	ctx := context.Background()

	for range 3 {
		if _, err := Call(ctx, b, fail); !errors.Is(err, errBackend) {
			t.Fatalf("expected backend error, got %v", err)
		}
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	called := false
	_, err := Call(ctx, b, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if called {
		t.Error("fn must not run while open")
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(2)
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	_, _ = Call(ctx, b, succeed)
	_, _ = Call(ctx, b, fail)

	if b.State() != BreakerClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenTrialCall(t *testing.T) {
	b, now := newTestBreaker(1)
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	*now = now.Add(time.Minute)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	if _, err := Call(ctx, b, succeed); err != nil {
		t.Fatalf("half-open trial call failed: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(1)
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	*now = now.Add(time.Minute)
	_, _ = Call(ctx, b, fail)

	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	var got []string
	b := NewBreaker(BreakerConfig{
		Threshold: 1,
		OnStateChange: func(from, to BreakerState) {
			got = append(got, from.String()+"->"+to.String())
		},
	})
	_, _ = Call(context.Background(), b, fail)

	if len(got) != 1 || got[0] != "closed->open" {
		t.Errorf("unexpected transitions: %v", got)
	}
}

func TestBreaker_DisabledAndNil(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker(BreakerConfig{})
	for range 10 {
		_, _ = Call(ctx, b, fail)
	}
	if b.State() != BreakerClosed {
		t.Errorf("disabled breaker must stay closed")
	}

	if v, err := Call(ctx, (*Breaker)(nil), succeed); err != nil || v != 1 {
		t.Errorf("nil breaker must pass through, got %d %v", v, err)
	}
}

func TestBreaker_CanceledContextDoesNotTrip(t *testing.T) {
	b, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _ = Call(ctx, b, func(ctx context.Context) (int, error) { return 0, ctx.Err() })
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_Concurrent(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 1000})
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = Call(context.Background(), b, fail)
			} else {
				_, _ = Call(context.Background(), b, succeed)
			}
		}()
	}
	wg.Wait()
	_ = b.State()
}

func TestBreakerState_String(t *testing.T) {
	if BreakerState(42).String() != "unknown" {
		t.Error("expected unknown")
	}
}
