package model

import "time"

// DropReason classifies why a packet never reached the sink.
type DropReason int

const (
	DropCollision DropReason = iota
	DropRetryExhausted
	DropQueueFull
)

func (r DropReason) String() string {
	switch r {
	case DropCollision:
		return "collision"
	case DropRetryExhausted:
		return "retry_exhausted"
	case DropQueueFull:
		return "queue_full"
	default:
		return "unknown"
	}
}

// FlowRecord aggregates the fate of every packet generated by one station.
type FlowRecord struct {
	StationID NodeID

	// Generated counts payloads emitted by the traffic source.
	Generated uint64
	// Sent counts payloads admitted into the MAC queue.
	Sent uint64

	Received      uint64
	ReceivedBytes uint64

	DroppedByCollision    uint64
	DroppedRetryExhausted uint64
	DroppedByQueue        uint64

	// InFlight counts payloads still queued or in transmission when the
	// simulation stopped. They are neither delivered nor dropped.
	InFlight uint64

	// DelaySum is the total one-way delay of received payloads.
	DelaySum time.Duration
}

// Dropped returns the total number of payloads lost for any reason.
func (r FlowRecord) Dropped() uint64 {
	return r.DroppedByCollision + r.DroppedRetryExhausted + r.DroppedByQueue
}

// MeanDelay returns the average one-way delay of received payloads.
func (r FlowRecord) MeanDelay() time.Duration {
	if r.Received == 0 {
		return 0
	}
	return r.DelaySum / time.Duration(r.Received)
}

// Conserved reports whether every admitted payload is accounted for.
func (r FlowRecord) Conserved() bool {
	if r.Generated != r.Sent+r.DroppedByQueue {
		return false
	}
	return r.Sent == r.Received+r.DroppedByCollision+r.DroppedRetryExhausted+r.InFlight
}
