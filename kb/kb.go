package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

var (
	// ErrNodeExists is returned when a node ID is registered twice.
	ErrNodeExists = errors.New("node already exists")
	// ErrNodeInvalid is returned for structurally invalid node definitions.
	ErrNodeInvalid = errors.New("invalid node")
)

// KnowledgeBase is the topology registry for one simulation: the set of node
// definitions keyed by stable ID. Station IDs double as flow IDs, so they
// are assigned explicitly rather than derived from insertion order.
type KnowledgeBase struct {
	mu sync.RWMutex

	nodes map[model.NodeID]model.NodeDefinition
	apID  model.NodeID
	hasAP bool
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		nodes: make(map[model.NodeID]model.NodeDefinition),
	}
}

// AddNode registers a node. A topology holds at most one access point and
// node IDs must be non-negative and unique.
func (kb *KnowledgeBase) AddNode(n model.NodeDefinition) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if n.ID < 0 {
		return fmt.Errorf("%w: node ID %d must be non-negative", ErrNodeInvalid, n.ID)
	}
	switch n.Kind {
	case model.NodeKindAccessPoint:
		if kb.hasAP {
			return fmt.Errorf("%w: node %d is a second access point (already have %d)", ErrNodeInvalid, n.ID, kb.apID)
		}
	case model.NodeKindStation:
	default:
		return fmt.Errorf("%w: node %d has unknown kind", ErrNodeInvalid, n.ID)
	}
	if _, exists := kb.nodes[n.ID]; exists {
		return fmt.Errorf("%w: node with ID %d", ErrNodeExists, n.ID)
	}

	if n.Name == "" {
		if n.Kind == model.NodeKindAccessPoint {
			n.Name = "ap"
		} else {
			n.Name = fmt.Sprintf("sta%d", n.ID)
		}
	}
	kb.nodes[n.ID] = n
	if n.Kind == model.NodeKindAccessPoint {
		kb.apID = n.ID
		kb.hasAP = true
	}
	return nil
}

// GetNode returns the node with the given ID.
func (kb *KnowledgeBase) GetNode(id model.NodeID) (model.NodeDefinition, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	n, ok := kb.nodes[id]
	return n, ok
}

// AccessPoint returns the access point, if one has been registered.
func (kb *KnowledgeBase) AccessPoint() (model.NodeDefinition, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if !kb.hasAP {
		return model.NodeDefinition{}, false
	}
	return kb.nodes[kb.apID], true
}

// ListNodes returns all nodes ordered by ID.
func (kb *KnowledgeBase) ListNodes() []model.NodeDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.NodeDefinition, 0, len(kb.nodes))
	for _, n := range kb.nodes {
		res = append(res, n)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// ListStations returns the stations ordered by ID.
func (kb *KnowledgeBase) ListStations() []model.NodeDefinition {
	all := kb.ListNodes()
	res := all[:0]
	for _, n := range all {
		if n.Kind == model.NodeKindStation {
			res = append(res, n)
		}
	}
	return res
}

// Len returns the number of registered nodes.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.nodes)
}

// HiddenPairs returns every pair of stations that cannot hear each other
// while both reach the access point. inRange is the propagation model's
// reachability test.
func (kb *KnowledgeBase) HiddenPairs(inRange func(a, b model.Position) bool) [][2]model.NodeID {
	ap, ok := kb.AccessPoint()
	if !ok {
		return nil
	}
	stations := kb.ListStations()

	var pairs [][2]model.NodeID
	for i := 0; i < len(stations); i++ {
		a := stations[i]
		if !inRange(a.Position, ap.Position) {
			continue
		}
		for j := i + 1; j < len(stations); j++ {
			b := stations[j]
			if !inRange(b.Position, ap.Position) {
				continue
			}
			if !inRange(a.Position, b.Position) {
				pairs = append(pairs, [2]model.NodeID{a.ID, b.ID})
			}
		}
	}
	return pairs
}
