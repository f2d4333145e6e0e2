package timectrl

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/sched"
)

// Seconds converts a floating-point number of seconds into simulation time,
// rounding to the nearest nanosecond.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// Mode describes how the TimeController paces simulation time.
type Mode int

const (
	// Accelerated runs events as fast as the queue can drain them.
	Accelerated Mode = iota
	// RealTime sleeps on every tick so simulation time tracks wall-clock time.
	RealTime
)

func (m Mode) String() string {
	if m == RealTime {
		return "realtime"
	}
	return "accelerated"
}

// TimeController injects periodic tick events into an event queue and
// notifies registered listeners with the simulation time of each tick. It is
// used for progress reporting and interval sampling; it never alters the
// order of the simulation's own events.
type TimeController struct {
	Tick time.Duration
	Mode Mode

	queue     *sched.EventQueue
	listeners []func(time.Duration)

	wallStart time.Time
	simStart  time.Duration
	sleep     func(time.Duration)
}

// NewTimeController constructs a controller bound to q.
func NewTimeController(q *sched.EventQueue, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		Tick:  tick,
		Mode:  mode,
		queue: q,
		sleep: time.Sleep,
	}
}

// Now returns the current simulation time.
func (tc *TimeController) Now() time.Duration {
	return tc.queue.Now()
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Duration)) {
	tc.listeners = append(tc.listeners, fn)
}

// Start schedules ticks every Tick from the current time up to and including
// until. It must be called before the queue is run.
func (tc *TimeController) Start(until time.Duration) error {
	if tc.Tick <= 0 {
		return fmt.Errorf("timectrl: tick must be positive, got %s", tc.Tick)
	}
	tc.wallStart = time.Now()
	tc.simStart = tc.queue.Now()

	first := tc.simStart + tc.Tick
	if first > until {
		return nil
	}
	_, err := tc.queue.Schedule(first, func() { tc.fire(until) })
	return err
}

func (tc *TimeController) fire(until time.Duration) {
	now := tc.queue.Now()
	if tc.Mode == RealTime {
		target := tc.wallStart.Add(now - tc.simStart)
		if d := time.Until(target); d > 0 {
			tc.sleep(d)
		}
	}

	for _, fn := range tc.listeners {
		fn(now)
	}

	next := now + tc.Tick
	if next <= until {
		tc.queue.MustSchedule(next, func() { tc.fire(until) })
	}
}
