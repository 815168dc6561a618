package backoff

import (
	"testing"
	"time"
)

func TestConstant(t *testing.T) {
	c := NewConstant(50 * time.Millisecond)
	for _, attempt := range []int{1, 2, 10} {
		if d := c.Delay(attempt); d != 50*time.Millisecond {
			t.Fatalf("attempt %d: got %v", attempt, d)
		}
	}
}

func TestExponential_Growth(t *testing.T) {
	e := NewExponential(100*time.Millisecond, time.Second)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second}, // capped
		{9, time.Second},
	}
	for _, tc := range cases {
		if d := e.Delay(tc.attempt); d != tc.want {
			t.Fatalf("attempt %d: got %v, want %v", tc.attempt, d, tc.want)
		}
	}
}

func TestExponential_AttemptFloor(t *testing.T) {
	e := NewExponential(100*time.Millisecond, time.Second)
	if d := e.Delay(0); d != 100*time.Millisecond {
		t.Fatalf("attempt 0 should behave like attempt 1, got %v", d)
	}
	if d := e.Delay(-3); d != 100*time.Millisecond {
		t.Fatalf("negative attempt should behave like attempt 1, got %v", d)
	}
}

func TestExponential_NoCap(t *testing.T) {
	e := &Exponential{Initial: time.Millisecond, Multiplier: 2}
	if d := e.Delay(11); d != 1024*time.Millisecond {
		t.Fatalf("uncapped delay wrong: %v", d)
	}
}

func TestExponential_Jitter(t *testing.T) {
	e := &Exponential{
		Initial:    100 * time.Millisecond,
		Multiplier: 2,
		Max:        time.Second,
		Jitter:     0.5,
	}
	for i := 0; i < 100; i++ {
		d := e.Delay(2)
		if d < 100*time.Millisecond || d > 200*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", d)
		}
	}
}

func TestExponential_ZeroMultiplierDefaults(t *testing.T) {
	e := &Exponential{Initial: 100 * time.Millisecond}
	if d := e.Delay(2); d != 200*time.Millisecond {
		t.Fatalf("expected default multiplier of 2, got %v", d)
	}
}
