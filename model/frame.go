package model

import "time"

// FrameKind identifies the MAC frame type carried by a PPDU.
type FrameKind int

const (
	FrameData FrameKind = iota
	FrameRTS
	FrameCTS
	FrameAck
	FrameBlockAck
)

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "DATA"
	case FrameRTS:
		return "RTS"
	case FrameCTS:
		return "CTS"
	case FrameAck:
		return "ACK"
	case FrameBlockAck:
		return "BLOCKACK"
	default:
		return "UNKNOWN"
	}
}

// Packet is one UDP payload generated by a traffic source.
type Packet struct {
	Source    NodeID
	Seq       uint32
	SizeBytes int
	CreatedAt time.Duration
}

// Frame is a single transmission on the shared medium. Data frames carry
// one packet, or several when A-MPDU aggregation is in use.
type Frame struct {
	Source    NodeID
	Dest      NodeID
	Kind      FrameKind
	SizeBytes int

	Start    time.Duration
	Duration time.Duration
	// NAV is the value of the duration field: how long after the end of this
	// frame the medium stays reserved for the ongoing exchange.
	NAV time.Duration

	Packets []Packet

	// Collided is set by the channel when the reception at Dest failed
	// because of an overlapping transmission.
	Collided bool
}

// End returns the time the last bit leaves the transmitter.
func (f *Frame) End() time.Duration {
	return f.Start + f.Duration
}
