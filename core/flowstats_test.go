package core

import (
	"reflect"
	"testing"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

func TestFlowMonitorFirstOutcomeWins(t *testing.T) {
	fm := NewFlowMonitor([]model.NodeID{1, 2})
	p := model.Packet{Source: 1, Seq: 0, SizeBytes: 100, CreatedAt: time.Second}

	fm.PacketGenerated(p)
	fm.PacketSent(p)
	fm.PacketReceived(p, time.Second+time.Millisecond)
	// A lost Ack can make the sender give up on a packet the AP already
	// delivered; the later drop must not count.
	fm.PacketDropped(p, model.DropRetryExhausted)
	fm.PacketReceived(p, 2*time.Second)

	recs := fm.Records()
	if len(recs) != 2 {
		t.Fatalf("Records len = %d, want 2", len(recs))
	}
	r := recs[0]
	if r.StationID != 1 || r.Received != 1 || r.ReceivedBytes != 100 || r.DroppedRetryExhausted != 0 {
		t.Fatalf("record = %+v", r)
	}
	if r.MeanDelay() != time.Millisecond {
		t.Fatalf("MeanDelay = %v, want 1ms", r.MeanDelay())
	}
	if !r.Conserved() {
		t.Fatalf("record not conserved: %+v", r)
	}
}

func TestFlowMonitorClassifiesDrops(t *testing.T) {
	fm := NewFlowMonitor([]model.NodeID{1})
	for seq := uint32(0); seq < 5; seq++ {
		p := model.Packet{Source: 1, Seq: seq, SizeBytes: 10}
		fm.PacketGenerated(p)
		switch seq {
		case 0:
			fm.PacketQueueDropped(p)
		default:
			fm.PacketSent(p)
		}
	}
	fm.PacketDropped(model.Packet{Source: 1, Seq: 1}, model.DropCollision)
	fm.PacketDropped(model.Packet{Source: 1, Seq: 2}, model.DropRetryExhausted)
	fm.PacketReceived(model.Packet{Source: 1, Seq: 3, SizeBytes: 10}, 0)
	// seq 4 stays in flight.

	r := fm.Records()[0]
	want := model.FlowRecord{
		StationID:             1,
		Generated:             5,
		Sent:                  4,
		Received:              1,
		ReceivedBytes:         10,
		DroppedByCollision:    1,
		DroppedRetryExhausted: 1,
		DroppedByQueue:        1,
		InFlight:              1,
	}
	if r != want {
		t.Fatalf("record = %+v\nwant     %+v", r, want)
	}
	if !r.Conserved() {
		t.Fatalf("record not conserved")
	}
	if got := DropPercent(r); got != 60 {
		t.Fatalf("DropPercent = %v, want 60", got)
	}
}

func TestSummarizeTotalsAndIdempotence(t *testing.T) {
	fm := NewFlowMonitor([]model.NodeID{2, 1})
	for _, id := range []model.NodeID{1, 2} {
		p := model.Packet{Source: id, SizeBytes: 1250}
		fm.PacketGenerated(p)
		fm.PacketSent(p)
		fm.PacketReceived(p, 0)
	}

	a := fm.Summarize(time.Second)
	b := fm.Summarize(time.Second)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Summarize is not idempotent")
	}
	if a.Flows[0].StationID != 1 || a.Flows[1].StationID != 2 {
		t.Fatalf("flows not ordered by station: %+v", a.Flows)
	}
	if a.Total.Received != 2 || a.Total.ReceivedBytes != 2500 {
		t.Fatalf("totals = %+v", a.Total)
	}
	// 2500 bytes in one second is 0.02 Mbit/s.
	if a.ThroughputMbps != 0.02 {
		t.Fatalf("ThroughputMbps = %v, want 0.02", a.ThroughputMbps)
	}
}

func TestThroughputZeroWindow(t *testing.T) {
	if got := Throughput(1000, 0); got != 0 {
		t.Fatalf("Throughput over zero time = %v, want 0", got)
	}
}

func TestNilFlowMonitorIsSafe(t *testing.T) {
	var fm *FlowMonitor
	p := model.Packet{Source: 1}
	fm.PacketGenerated(p)
	fm.PacketSent(p)
	fm.PacketQueueDropped(p)
	fm.PacketReceived(p, 0)
	fm.PacketDropped(p, model.DropCollision)
}
