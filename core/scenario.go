package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/wlan-hidden-sim/kb"
	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

// APID is the node ID of the access point in generated topologies.
const APID model.NodeID = 0

// HiddenStationTopology places the AP at (R, R, 0) and NumStations
// stations evenly on a circle of radius R around it, starting due north
// and going clockwise. With four stations and R equal to the radio range
// every station reaches the AP but no station reaches another.
func HiddenStationTopology(cfg Config) []model.NodeDefinition {
	r := cfg.stationRadius()
	center := model.Position{X: r, Y: r}

	nodes := make([]model.NodeDefinition, 0, cfg.NumStations+1)
	nodes = append(nodes, model.NodeDefinition{
		ID:       APID,
		Name:     "ap",
		Kind:     model.NodeKindAccessPoint,
		Position: center,
	})
	for k := 1; k <= cfg.NumStations; k++ {
		theta := math.Pi/2 - 2*math.Pi*float64(k-1)/float64(cfg.NumStations)
		nodes = append(nodes, model.NodeDefinition{
			ID:   model.NodeID(k),
			Name: fmt.Sprintf("sta%d", k),
			Kind: model.NodeKindStation,
			Position: model.Position{
				X: roundCoord(center.X + r*math.Cos(theta)),
				Y: roundCoord(center.Y + r*math.Sin(theta)),
			},
		})
	}
	return nodes
}

// roundCoord snaps trigonometric noise to 1e-9 so that the canonical
// coordinates come out exact.
func roundCoord(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// BuildTopology registers the configured nodes, or the generated ring when
// none are configured, in a fresh knowledge base.
func BuildTopology(cfg Config) (*kb.KnowledgeBase, error) {
	defs := cfg.Nodes
	if len(defs) == 0 {
		defs = HiddenStationTopology(cfg)
	}
	topo := kb.NewKnowledgeBase()
	for _, d := range defs {
		if err := topo.AddNode(d); err != nil {
			return nil, fmt.Errorf("build topology: %w", err)
		}
	}
	if _, ok := topo.AccessPoint(); !ok {
		return nil, configErr("nodes", "topology has no access point")
	}
	return topo, nil
}
