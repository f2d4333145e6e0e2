package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/sched"
	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

// Generator is a constant-bit-rate UDP client: one fixed-size payload every
// Interval from Start until Stop (exclusive). It ignores losses, so with a
// short interval it saturates the MAC queue.
type Generator struct {
	Station     model.NodeID
	PayloadSize int
	Interval    time.Duration
	Start       time.Duration
	Stop        time.Duration

	queue     *sched.EventQueue
	emit      func(model.Packet)
	nextSeq   uint32
	generated uint64
}

// NewGenerator binds a generator to a queue. emit receives every payload.
func NewGenerator(q *sched.EventQueue, station model.NodeID, cfg TrafficConfig, stop time.Duration, emit func(model.Packet)) *Generator {
	return &Generator{
		Station:     station,
		PayloadSize: cfg.PayloadSize,
		Interval:    cfg.Interval,
		Start:       cfg.StartTime,
		Stop:        stop,
		queue:       q,
		emit:        emit,
	}
}

// Schedule registers the first emission. Further emissions are scheduled by
// each one in turn.
func (g *Generator) Schedule() error {
	if g.Interval <= 0 {
		return fmt.Errorf("generator %d: interval must be positive, got %s", g.Station, g.Interval)
	}
	if g.Start >= g.Stop {
		return nil
	}
	_, err := g.queue.Schedule(g.Start, g.fire)
	return err
}

// Generated returns how many payloads have been emitted.
func (g *Generator) Generated() uint64 { return g.generated }

func (g *Generator) fire() {
	now := g.queue.Now()
	if now >= g.Stop {
		return
	}
	p := model.Packet{
		Source:    g.Station,
		Seq:       g.nextSeq,
		SizeBytes: g.PayloadSize,
		CreatedAt: now,
	}
	g.nextSeq++
	g.generated++
	if g.emit != nil {
		g.emit(p)
	}
	if next := now + g.Interval; next < g.Stop {
		g.queue.MustSchedule(next, g.fire)
	}
}

// SinkKind selects the behaviour of a Sink.
type SinkKind int

const (
	// SinkUDPServer counts packets and bytes and tracks sequence gaps per
	// source to estimate loss.
	SinkUDPServer SinkKind = iota
	// SinkDiscard only counts bytes.
	SinkDiscard
)

func (k SinkKind) String() string {
	switch k {
	case SinkUDPServer:
		return "udp-server"
	case SinkDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// Sink is the receiving application on the AP. Which counters it keeps
// depends on Kind.
type Sink struct {
	Kind  SinkKind
	Start time.Duration

	received uint64
	bytes    uint64
	// nextSeq per source is one past the highest sequence number seen.
	nextSeq map[model.NodeID]uint32
}

// NewSink constructs a sink of the given kind.
func NewSink(kind SinkKind, start time.Duration) *Sink {
	s := &Sink{Kind: kind, Start: start}
	if kind == SinkUDPServer {
		s.nextSeq = make(map[model.NodeID]uint32)
	}
	return s
}

// Receive handles a delivered payload at simulation time now.
func (s *Sink) Receive(p model.Packet, now time.Duration) {
	if now < s.Start {
		return
	}
	switch s.Kind {
	case SinkUDPServer:
		s.received++
		s.bytes += uint64(p.SizeBytes)
		if p.Seq+1 > s.nextSeq[p.Source] {
			s.nextSeq[p.Source] = p.Seq + 1
		}
	case SinkDiscard:
		s.bytes += uint64(p.SizeBytes)
	}
}

// Received returns the number of packets counted. A discard sink does not
// count packets.
func (s *Sink) Received() uint64 {
	switch s.Kind {
	case SinkUDPServer:
		return s.received
	default:
		return 0
	}
}

// ReceivedBytes returns the payload bytes received.
func (s *Sink) ReceivedBytes() uint64 { return s.bytes }

// Lost returns the number of sequence numbers below the highest seen per
// source that never arrived.
func (s *Sink) Lost() uint64 {
	switch s.Kind {
	case SinkUDPServer:
		var expected uint64
		for _, next := range s.nextSeq {
			expected += uint64(next)
		}
		if expected < s.received {
			return 0
		}
		return expected - s.received
	default:
		return 0
	}
}
