package timectrl

import (
	"testing"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/sched"
)

func TestSeconds(t *testing.T) {
	cases := []struct {
		in   float64
		want time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{0.0001, 100 * time.Microsecond},
		{11, 11 * time.Second},
		{2.5, 2500 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := Seconds(tc.in); got != tc.want {
			t.Errorf("Seconds(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestTimeControllerTicksUntilStop(t *testing.T) {
	q := sched.NewEventQueue()
	tc := NewTimeController(q, 100*time.Millisecond, Accelerated)

	var ticks []time.Duration
	tc.AddListener(func(now time.Duration) {
		ticks = append(ticks, now)
	})

	if err := tc.Start(500 * time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	q.Run(time.Second)

	if len(ticks) != 5 {
		t.Fatalf("got %d ticks (%v), want 5", len(ticks), ticks)
	}
	for i, got := range ticks {
		want := time.Duration(i+1) * 100 * time.Millisecond
		if got != want {
			t.Fatalf("tick %d at %s, want %s", i, got, want)
		}
	}
	if tc.Now() != time.Second {
		t.Fatalf("Now() = %s, want 1s", tc.Now())
	}
}

func TestTimeControllerRejectsNonPositiveTick(t *testing.T) {
	tc := NewTimeController(sched.NewEventQueue(), 0, Accelerated)
	if err := tc.Start(time.Second); err == nil {
		t.Fatalf("expected error for zero tick")
	}
}

func TestTimeControllerRealTimeSleeps(t *testing.T) {
	q := sched.NewEventQueue()
	tc := NewTimeController(q, 10*time.Millisecond, RealTime)
	var slept time.Duration
	tc.sleep = func(d time.Duration) { slept += d }

	if err := tc.Start(30 * time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	q.Run(time.Second)

	if slept <= 0 {
		t.Fatalf("expected RealTime mode to pace ticks against the wall clock")
	}
}
