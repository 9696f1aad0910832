package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func newGroup() *FallbackGroup[int] {
	fg := NewFallbackGroup("ten", 10, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fg.AddFallback("twenty", 20)
	return fg
}

func TestCall_PrimarySuccess(t *testing.T) {
	t.Parallel()

	got, name, err := Call(context.Background(), newGroup(), func(_ context.Context, v int) (int, error) {
		return v * 2, nil
	})
	if err != nil || got != 20 || name != "ten" {
		t.Fatalf("Call = %d, %q, %v", got, name, err)
	}
}

func TestCall_Failover(t *testing.T) {
	t.Parallel()

	got, name, err := Call(context.Background(), newGroup(), func(_ context.Context, v int) (int, error) {
		if v == 10 {
			return 0, errTest
		}
		return v, nil
	})
	if err != nil || got != 20 || name != "twenty" {
		t.Fatalf("Call = %d, %q, %v", got, name, err)
	}
}

func TestCall_AllFail(t *testing.T) {
	t.Parallel()

	_, _, err := Call(context.Background(), newGroup(), func(context.Context, int) (int, error) {
		return 0, errTest
	})
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want ErrAllFailed wrapping errTest", err)
	}
}

func TestCall_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	fg := newGroup()
	var tried []int
	fn := func(_ context.Context, v int) (int, error) {
		tried = append(tried, v)
		if v == 10 {
			return 0, errTest
		}
		return v, nil
	}
	for range 2 {
		_, _, _ = Call(context.Background(), fg, fn)
	}
	if fg.States()["ten"] != StateOpen {
		t.Fatalf("primary state = %v, want open", fg.States()["ten"])
	}

	tried = nil
	if _, name, err := Call(context.Background(), fg, fn); err != nil || name != "twenty" {
		t.Fatalf("Call = %q, %v", name, err)
	}
	if !slices.Equal(tried, []int{20}) {
		t.Errorf("tried = %v, want only the fallback", tried)
	}
	if !fg.Available() {
		t.Error("group with a closed fallback should be available")
	}
}

func TestCall_StopsWhenContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var tried []int
	_, _, err := Call(ctx, newGroup(), func(_ context.Context, v int) (int, error) {
		tried = append(tried, v)
		cancel()
		return 0, context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if !slices.Equal(tried, []int{10}) {
		t.Errorf("tried = %v, want no failover after cancellation", tried)
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	t.Parallel()

	if got := newGroup().Names(); !slices.Equal(got, []string{"ten", "twenty"}) {
		t.Errorf("Names = %v", got)
	}
}
