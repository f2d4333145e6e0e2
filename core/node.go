package core

import (
	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

// Node is one device in the simulation: a fixed position, a MAC, and the
// application attached to it. Stations carry a Source; the AP carries a
// Sink.
type Node struct {
	model.NodeDefinition

	MAC    *Mac
	Source *Generator
	Sink   *Sink
}

// IsAccessPoint reports whether the node is the AP.
func (n *Node) IsAccessPoint() bool {
	return n.Kind == model.NodeKindAccessPoint
}

// send is the entry point from the traffic source into the MAC.
func (n *Node) send(flows *FlowMonitor) func(model.Packet) {
	return func(p model.Packet) {
		flows.PacketGenerated(p)
		n.MAC.Enqueue(p)
	}
}
