package core

import (
	"sort"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

type packetKey struct {
	station model.NodeID
	seq     uint32
}

// FlowMonitor classifies every payload of every station flow. A payload
// admitted into a MAC queue stays pending until its first outcome; later
// outcomes for the same payload are ignored.
type FlowMonitor struct {
	records map[model.NodeID]*model.FlowRecord
	pending map[packetKey]struct{}
}

// NewFlowMonitor creates one flow per station ID.
func NewFlowMonitor(stations []model.NodeID) *FlowMonitor {
	fm := &FlowMonitor{
		records: make(map[model.NodeID]*model.FlowRecord, len(stations)),
		pending: make(map[packetKey]struct{}),
	}
	for _, id := range stations {
		fm.records[id] = &model.FlowRecord{StationID: id}
	}
	return fm
}

func (fm *FlowMonitor) record(id model.NodeID) *model.FlowRecord {
	r, ok := fm.records[id]
	if !ok {
		r = &model.FlowRecord{StationID: id}
		fm.records[id] = r
	}
	return r
}

// PacketGenerated counts a payload emitted by a traffic source.
func (fm *FlowMonitor) PacketGenerated(p model.Packet) {
	if fm == nil {
		return
	}
	fm.record(p.Source).Generated++
}

// PacketSent counts a payload admitted into the MAC queue.
func (fm *FlowMonitor) PacketSent(p model.Packet) {
	if fm == nil {
		return
	}
	fm.record(p.Source).Sent++
	fm.pending[packetKey{p.Source, p.Seq}] = struct{}{}
}

// PacketQueueDropped counts a payload rejected by a full MAC queue.
func (fm *FlowMonitor) PacketQueueDropped(p model.Packet) {
	if fm == nil {
		return
	}
	fm.record(p.Source).DroppedByQueue++
}

// PacketReceived records delivery at the sink.
func (fm *FlowMonitor) PacketReceived(p model.Packet, at time.Duration) {
	if fm == nil || !fm.resolve(p) {
		return
	}
	r := fm.record(p.Source)
	r.Received++
	r.ReceivedBytes += uint64(p.SizeBytes)
	r.DelaySum += at - p.CreatedAt
}

// PacketDropped records a MAC drop after the retry limit.
func (fm *FlowMonitor) PacketDropped(p model.Packet, reason model.DropReason) {
	if fm == nil || !fm.resolve(p) {
		return
	}
	r := fm.record(p.Source)
	switch reason {
	case model.DropCollision:
		r.DroppedByCollision++
	default:
		r.DroppedRetryExhausted++
	}
}

func (fm *FlowMonitor) resolve(p model.Packet) bool {
	key := packetKey{p.Source, p.Seq}
	if _, ok := fm.pending[key]; !ok {
		return false
	}
	delete(fm.pending, key)
	return true
}

// Records returns a snapshot of every flow ordered by station ID, with
// InFlight filled from the payloads still pending. It does not modify the
// monitor.
func (fm *FlowMonitor) Records() []model.FlowRecord {
	inflight := make(map[model.NodeID]uint64)
	for k := range fm.pending {
		inflight[k.station]++
	}
	out := make([]model.FlowRecord, 0, len(fm.records))
	for id, r := range fm.records {
		rec := *r
		rec.InFlight = inflight[id]
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out
}

// Summary is the aggregate outcome of a run.
type Summary struct {
	Flows []model.FlowRecord
	// Total sums every flow; its StationID is zero.
	Total          model.FlowRecord
	ThroughputMbps float64
}

// Summarize aggregates the flows and derives the uplink throughput over
// simTime. It is a pure read and may be called repeatedly.
func (fm *FlowMonitor) Summarize(simTime time.Duration) Summary {
	flows := fm.Records()
	var total model.FlowRecord
	for _, r := range flows {
		total.Generated += r.Generated
		total.Sent += r.Sent
		total.Received += r.Received
		total.ReceivedBytes += r.ReceivedBytes
		total.DroppedByCollision += r.DroppedByCollision
		total.DroppedRetryExhausted += r.DroppedRetryExhausted
		total.DroppedByQueue += r.DroppedByQueue
		total.InFlight += r.InFlight
		total.DelaySum += r.DelaySum
	}
	return Summary{
		Flows:          flows,
		Total:          total,
		ThroughputMbps: Throughput(total.ReceivedBytes, simTime),
	}
}

// Throughput converts received payload bytes over simTime into Mbit/s.
func Throughput(receivedBytes uint64, simTime time.Duration) float64 {
	if simTime <= 0 {
		return 0
	}
	return float64(receivedBytes) * 8 / (simTime.Seconds() * 1e6)
}

// DropPercent returns the share of generated payloads that were dropped.
func DropPercent(r model.FlowRecord) float64 {
	if r.Generated == 0 {
		return 0
	}
	return float64(r.Dropped()) * 100 / float64(r.Generated)
}
