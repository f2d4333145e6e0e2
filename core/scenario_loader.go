package core

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

// TopologyFile is what was loaded from a topology document.
type TopologyFile struct {
	Name     string
	MaxRange float64
	Nodes    []model.NodeDefinition
}

// internal document shapes, unexported so the file format can evolve.
type topologyDoc struct {
	Name     string    `yaml:"name"`
	MaxRange *float64  `yaml:"maxRange"`
	Nodes    []nodeDoc `yaml:"nodes"`
}

type nodeDoc struct {
	ID       *int           `yaml:"id"`
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"` // "ap" | "station"
	Position model.Position `yaml:"position"`
}

// LoadTopology decodes a YAML (or JSON) topology from r. It fails on
// decode errors and on structurally invalid nodes; duplicate IDs and the
// single-AP rule are enforced later by the knowledge base.
func LoadTopology(r io.Reader) (*TopologyFile, error) {
	var doc topologyDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("LoadTopology: decode failed: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("LoadTopology: no nodes")
	}

	out := &TopologyFile{Name: doc.Name}
	if doc.MaxRange != nil {
		if *doc.MaxRange <= 0 {
			return nil, fmt.Errorf("LoadTopology: maxRange must be positive, got %g", *doc.MaxRange)
		}
		out.MaxRange = *doc.MaxRange
	}
	for i, n := range doc.Nodes {
		if n.ID == nil {
			return nil, fmt.Errorf("LoadTopology: node %d has no id", i)
		}
		kind := kindFromString(n.Kind)
		if kind == model.NodeKindUnknown {
			return nil, fmt.Errorf("LoadTopology: node %d has unknown kind %q", *n.ID, n.Kind)
		}
		out.Nodes = append(out.Nodes, model.NodeDefinition{
			ID:       model.NodeID(*n.ID),
			Name:     n.Name,
			Kind:     kind,
			Position: n.Position,
		})
	}
	return out, nil
}

// LoadTopologyFile opens path and decodes it with LoadTopology.
func LoadTopologyFile(path string) (*TopologyFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open topology: %w", err)
	}
	defer f.Close()
	return LoadTopology(f)
}

// Apply installs the loaded nodes into cfg. NumStations is updated to
// match, and MaxRange is overridden when the file sets one.
func (t *TopologyFile) Apply(cfg *Config) {
	cfg.Nodes = append([]model.NodeDefinition(nil), t.Nodes...)
	stations := 0
	for _, n := range t.Nodes {
		if n.Kind == model.NodeKindStation {
			stations++
		}
	}
	cfg.NumStations = stations
	if t.MaxRange > 0 {
		cfg.Propagation.MaxRange = t.MaxRange
	}
	if t.Name != "" {
		cfg.Name = t.Name
	}
}

// kindFromString is tolerant of the usual spellings; an empty kind means
// station.
func kindFromString(s string) model.NodeKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ap", "access_point", "access-point", "accesspoint":
		return model.NodeKindAccessPoint
	case "", "sta", "station":
		return model.NodeKindStation
	default:
		return model.NodeKindUnknown
	}
}
