package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/sched"
	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

// MediumListener is the receive side of a device attached to the channel.
// Both callbacks run on the event queue.
type MediumListener interface {
	// MediumBusy signals that energy is present at the receiver until the
	// given time (physical carrier sense).
	MediumBusy(until time.Duration)
	// FrameReceived delivers a frame whose reception completed without
	// interference. Frames not addressed to the receiver are delivered too
	// so that it can honour their duration field.
	FrameReceived(f *model.Frame)
}

type arrival struct {
	frame *model.Frame
	end   time.Duration
	// collided is set when another arrival overlapped this one; lost is set
	// when the receiver was transmitting.
	collided bool
	lost     bool
}

type port struct {
	id       model.NodeID
	pos      model.Position
	listener MediumListener

	txUntil    time.Duration
	arrivals   []*arrival
	collisions uint64
}

// Channel is the shared wireless medium. It fans a transmission out to
// every attached port in range and detects overlapping receptions.
type Channel struct {
	queue *sched.EventQueue
	prop  *PropagationModel

	ports []*port
	byID  map[model.NodeID]*port

	transmissions uint64
}

// NewChannel creates an empty channel on the given queue.
func NewChannel(q *sched.EventQueue, prop *PropagationModel) *Channel {
	return &Channel{
		queue: q,
		prop:  prop,
		byID:  make(map[model.NodeID]*port),
	}
}

// Attach connects a device to the medium.
func (c *Channel) Attach(id model.NodeID, pos model.Position, l MediumListener) error {
	if _, exists := c.byID[id]; exists {
		return fmt.Errorf("channel: node %d already attached", id)
	}
	p := &port{id: id, pos: pos, listener: l}
	c.ports = append(c.ports, p)
	c.byID[id] = p
	return nil
}

// Transmit puts f on the air starting now. f.Start and f.Duration must be
// set by the caller. Ongoing receptions at the sender are destroyed.
func (c *Channel) Transmit(f *model.Frame) error {
	src, ok := c.byID[f.Source]
	if !ok {
		return fmt.Errorf("channel: transmit from unattached node %d", f.Source)
	}
	now := c.queue.Now()
	if f.End() > src.txUntil {
		src.txUntil = f.End()
	}
	for _, a := range src.arrivals {
		if a.end > now {
			a.lost = true
		}
	}
	c.transmissions++

	for _, dst := range c.ports {
		if dst == src || !c.prop.InRange(src.pos, dst.pos) {
			continue
		}
		delay := c.prop.Delay(src.pos, dst.pos)
		a := &arrival{frame: f}
		dst := dst
		if _, err := c.queue.ScheduleAfter(delay, func() { c.arrivalStart(dst, a) }); err != nil {
			return err
		}
		if _, err := c.queue.ScheduleAfter(delay+f.Duration, func() { c.arrivalEnd(dst, a) }); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) arrivalStart(p *port, a *arrival) {
	now := c.queue.Now()
	a.end = now + a.frame.Duration
	if p.txUntil > now {
		a.lost = true
	}
	for _, other := range p.arrivals {
		if other.end > now {
			other.collided = true
			a.collided = true
		}
	}
	p.arrivals = append(p.arrivals, a)
	p.listener.MediumBusy(a.end)
}

func (c *Channel) arrivalEnd(p *port, a *arrival) {
	for i, other := range p.arrivals {
		if other == a {
			p.arrivals = append(p.arrivals[:i], p.arrivals[i+1:]...)
			break
		}
	}
	if a.collided {
		p.collisions++
	}
	if !a.collided && !a.lost {
		p.listener.FrameReceived(a.frame)
		return
	}
	if a.frame.Dest == p.id && a.collided {
		a.frame.Collided = true
	}
}

// Collisions returns how many receptions failed at node id because of an
// overlapping transmission.
func (c *Channel) Collisions(id model.NodeID) uint64 {
	if p, ok := c.byID[id]; ok {
		return p.collisions
	}
	return 0
}

// Transmissions returns the number of frames put on the air.
func (c *Channel) Transmissions() uint64 {
	return c.transmissions
}
