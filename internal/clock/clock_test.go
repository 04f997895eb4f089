package clock

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	clock := &RealClock{}

	t.Run("returns current time", func(t *testing.T) {
		before := time.Now()
		actual := clock.Now()
		after := time.Now()

		if actual.Before(before) || actual.After(after) {
			t.Errorf("RealClock.Now() returned time outside expected range: got %v, expected between %v and %v", actual, before, after)
		}
	})

	t.Run("since is non-negative", func(t *testing.T) {
		start := clock.Now()
		time.Sleep(1 * time.Millisecond)
		if d := clock.Since(start); d <= 0 {
			t.Errorf("Since() = %v, want positive", d)
		}
	})
}

func TestFakeClock(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("returns fixed time", func(t *testing.T) {
		clock := NewFakeClock(fixedTime)
		first := clock.Now()
		time.Sleep(1 * time.Millisecond)
		second := clock.Now()

		if !first.Equal(fixedTime) || !second.Equal(fixedTime) {
			t.Errorf("FakeClock.Now() = %v then %v, want %v", first, second, fixedTime)
		}
		if d := clock.Since(first); d != 0 {
			t.Errorf("Since() = %v, want 0", d)
		}
	})

	t.Run("set and advance", func(t *testing.T) {
		clock := NewFakeClock(fixedTime)
		clock.Advance(90 * time.Minute)
		if d := clock.Since(fixedTime); d != 90*time.Minute {
			t.Errorf("Since() after Advance = %v", d)
		}

		past := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		clock.Set(past)
		if !clock.Now().Equal(past) {
			t.Errorf("After Set(), Now() = %v, want %v", clock.Now(), past)
		}
	})
}

func TestSteppingClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewSteppingClock(start, time.Second)

	first := clock.Now()
	second := clock.Now()

	if !first.Equal(start) {
		t.Errorf("first Now() = %v, want %v", first, start)
	}
	if second.Sub(first) != time.Second {
		t.Errorf("step = %v, want 1s", second.Sub(first))
	}
	if d := clock.Since(first); d != 2*time.Second {
		t.Errorf("Since(first) = %v, want 2s", d)
	}
}
