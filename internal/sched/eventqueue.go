// Package sched provides the discrete-event queue that drives simulated time.
package sched

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSchedulingInPast is returned when an event is scheduled before the
// current simulation time. It always indicates a bug in the caller.
var ErrSchedulingInPast = errors.New("cannot schedule event in the past")

// SchedulingError carries the offending timestamps for ErrSchedulingInPast.
type SchedulingError struct {
	At  time.Duration
	Now time.Duration
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("schedule at %s (now %s): %v", e.At, e.Now, ErrSchedulingInPast)
}

func (e *SchedulingError) Unwrap() error { return ErrSchedulingInPast }

// EventID identifies a scheduled event so it can be cancelled.
type EventID uint64

// Recorder receives queue statistics at the end of every run.
type Recorder interface {
	ObserveQueueRun(executed uint64, discarded int)
}

// RunStats summarises a call to Run.
type RunStats struct {
	Executed  uint64
	Discarded int
	StoppedAt time.Duration
}

// event is a single scheduled callback.
type event struct {
	id        EventID
	at        time.Duration
	seq       uint64
	f         func()
	cancelled bool
}

// eventHeap orders events by (at, seq) so equal timestamps run FIFO.
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}

// EventQueue is a single-threaded min-heap of timestamped callbacks. It owns
// the simulation clock: Now only advances when an event is popped.
type EventQueue struct {
	now      time.Duration
	seq      uint64
	events   eventHeap
	index    map[EventID]*event
	executed uint64
	recorder Recorder
}

// NewEventQueue creates an empty queue positioned at time zero.
func NewEventQueue() *EventQueue {
	return &EventQueue{
		index: make(map[EventID]*event),
	}
}

// SetRecorder attaches an optional statistics recorder.
func (q *EventQueue) SetRecorder(r Recorder) {
	q.recorder = r
}

// Now returns the current simulation time.
func (q *EventQueue) Now() time.Duration {
	return q.now
}

// Schedule registers f to run at absolute simulation time at.
func (q *EventQueue) Schedule(at time.Duration, f func()) (EventID, error) {
	if at < q.now {
		return 0, &SchedulingError{At: at, Now: q.now}
	}
	q.seq++
	ev := &event{
		id:  EventID(q.seq),
		at:  at,
		seq: q.seq,
		f:   f,
	}
	heap.Push(&q.events, ev)
	q.index[ev.id] = ev
	return ev.id, nil
}

// ScheduleAfter registers f to run delay after the current time.
func (q *EventQueue) ScheduleAfter(delay time.Duration, f func()) (EventID, error) {
	return q.Schedule(q.now+delay, f)
}

// MustSchedule is Schedule for callers that only ever schedule at or after
// Now; a failure there is a programming error.
func (q *EventQueue) MustSchedule(at time.Duration, f func()) EventID {
	id, err := q.Schedule(at, f)
	if err != nil {
		panic(err)
	}
	return id
}

// Cancel discards a pending event. It is a no-op for unknown or already
// executed IDs.
func (q *EventQueue) Cancel(id EventID) {
	ev, ok := q.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(q.index, id)
	// Removal from the heap is lazy; Run skips cancelled events.
}

// Pending returns the number of events that have not run or been cancelled.
func (q *EventQueue) Pending() int {
	return len(q.index)
}

// Executed returns the number of events run so far.
func (q *EventQueue) Executed() uint64 {
	return q.executed
}

// NextEventTime returns the timestamp of the earliest pending event.
func (q *EventQueue) NextEventTime() (time.Duration, bool) {
	for len(q.events) > 0 && q.events[0].cancelled {
		heap.Pop(&q.events)
	}
	if len(q.events) == 0 {
		return 0, false
	}
	return q.events[0].at, true
}

// Run executes events in (time, insertion) order until the queue is empty or
// the next event is at or beyond until. Remaining events are discarded
// without running.
func (q *EventQueue) Run(until time.Duration) RunStats {
	stats, _ := q.RunContext(context.Background(), until)
	return stats
}

const ctxPollInterval = 4096

// RunContext is Run with cooperative cancellation: ctx is polled before the
// first event and then every few thousand events, and the run stops early
// with ctx.Err().
func (q *EventQueue) RunContext(ctx context.Context, until time.Duration) (RunStats, error) {
	var stats RunStats
	for {
		if stats.Executed%ctxPollInterval == 0 {
			if err := ctx.Err(); err != nil {
				stats.StoppedAt = q.now
				return stats, err
			}
		}

		at, ok := q.NextEventTime()
		if !ok || at >= until {
			break
		}

		ev := heap.Pop(&q.events).(*event)
		delete(q.index, ev.id)
		q.now = ev.at
		q.executed++
		stats.Executed++
		if ev.f != nil {
			ev.f()
		}
	}

	if q.now < until {
		q.now = until
	}
	stats.Discarded = q.Pending()
	stats.StoppedAt = q.now
	q.clear()

	if q.recorder != nil {
		q.recorder.ObserveQueueRun(stats.Executed, stats.Discarded)
	}
	return stats, nil
}

func (q *EventQueue) clear() {
	q.events = nil
	q.index = make(map[EventID]*event)
}
