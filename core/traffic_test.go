package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/sched"
	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

func TestGeneratorEmitsUntilStop(t *testing.T) {
	q := sched.NewEventQueue()
	var got []model.Packet
	g := NewGenerator(q, 3, TrafficConfig{
		PayloadSize: 100,
		Interval:    100 * time.Microsecond,
		StartTime:   time.Millisecond,
	}, 2*time.Millisecond, func(p model.Packet) { got = append(got, p) })

	if err := g.Schedule(); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	q.Run(time.Second)

	// [1ms, 2ms) at 100us spacing.
	if len(got) != 10 || g.Generated() != 10 {
		t.Fatalf("emitted %d (Generated=%d), want 10", len(got), g.Generated())
	}
	for i, p := range got {
		if p.Seq != uint32(i) || p.Source != 3 || p.SizeBytes != 100 {
			t.Fatalf("packet %d = %+v", i, p)
		}
		if want := time.Millisecond + time.Duration(i)*100*time.Microsecond; p.CreatedAt != want {
			t.Fatalf("packet %d created at %v, want %v", i, p.CreatedAt, want)
		}
	}
}

func TestGeneratorEmptyWindow(t *testing.T) {
	q := sched.NewEventQueue()
	g := NewGenerator(q, 1, TrafficConfig{PayloadSize: 10, Interval: time.Millisecond, StartTime: time.Second}, time.Second, nil)
	if err := g.Schedule(); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if q.Pending() != 0 {
		t.Fatalf("generator with start == stop scheduled %d events", q.Pending())
	}

	bad := NewGenerator(q, 1, TrafficConfig{PayloadSize: 10}, time.Second, nil)
	if err := bad.Schedule(); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestUDPServerSinkCountsAndLoss(t *testing.T) {
	s := NewSink(SinkUDPServer, 0)
	for _, seq := range []uint32{0, 1, 3, 4} {
		s.Receive(model.Packet{Source: 1, Seq: seq, SizeBytes: 1000}, time.Second)
	}
	s.Receive(model.Packet{Source: 2, Seq: 0, SizeBytes: 1000}, time.Second)

	if s.Received() != 5 {
		t.Fatalf("Received = %d, want 5", s.Received())
	}
	if s.ReceivedBytes() != 5000 {
		t.Fatalf("ReceivedBytes = %d, want 5000", s.ReceivedBytes())
	}
	// Station 1 is missing seq 2.
	if s.Lost() != 1 {
		t.Fatalf("Lost = %d, want 1", s.Lost())
	}
}

func TestDiscardSinkCountsBytesOnly(t *testing.T) {
	s := NewSink(SinkDiscard, 0)
	s.Receive(model.Packet{Source: 1, Seq: 7, SizeBytes: 50}, 0)
	if s.Received() != 0 || s.Lost() != 0 {
		t.Fatalf("discard sink counted packets: received=%d lost=%d", s.Received(), s.Lost())
	}
	if s.ReceivedBytes() != 50 {
		t.Fatalf("ReceivedBytes = %d, want 50", s.ReceivedBytes())
	}
}

func TestSinkIgnoresPacketsBeforeStart(t *testing.T) {
	s := NewSink(SinkUDPServer, time.Second)
	s.Receive(model.Packet{Source: 1, SizeBytes: 10}, 500*time.Millisecond)
	if s.Received() != 0 {
		t.Fatalf("sink counted a packet before its start time")
	}
}
