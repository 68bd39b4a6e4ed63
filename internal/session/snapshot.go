package session

import (
	"github.com/nerrad567/luke-core/internal/node"
)

// NodeState is a node as the UI renders it.
type NodeState struct {
	Anchor    string                              `json:"anchor"`
	Kind      node.Kind                           `json:"kind"`
	Resources map[node.ResourceKind]node.Resource `json:"resources"`
	LinkLocal bool                                `json:"link_local"`
	Hidden    bool                                `json:"hidden"`
	Points    *int                                `json:"points,omitempty"`
	Ratio     *float64                            `json:"ratio,omitempty"`
	LinkedTo  node.Kind                           `json:"linked_to,omitempty"`
}

// LinkState is one known source -> target wiring.
type LinkState struct {
	Source       node.Kind `json:"source"`
	Target       node.Kind `json:"target"`
	SourceAnchor string    `json:"source_anchor"`
	TargetAnchor string    `json:"target_anchor"`
}

// ObservationState describes one open observation.
type ObservationState struct {
	URL      string `json:"url"`
	State    string `json:"state"`
	Attempts int64  `json:"attempts"`
}

// Snapshot is the full dashboard state.
type Snapshot struct {
	Nodes        []NodeState        `json:"nodes"`
	Links        []LinkState        `json:"links"`
	Observations []ObservationState `json:"observations"`
}

// Snapshot returns the current state for rendering.
func (s *Session) Snapshot() Snapshot {
	nodes := s.registry.List()

	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make(map[string]node.Kind, len(nodes))
	for _, n := range nodes {
		kinds[n.Anchor] = n.Kind
	}

	snap := Snapshot{
		Nodes:        make([]NodeState, 0, len(nodes)),
		Links:        []LinkState{},
		Observations: make([]ObservationState, 0, len(s.subs)),
	}
	for _, n := range nodes {
		snap.Nodes = append(snap.Nodes, s.nodeStateLocked(n, kinds))
		if dst, ok := s.links[n.Anchor]; ok {
			if dk, ok := kinds[dst]; ok {
				snap.Links = append(snap.Links, LinkState{
					Source:       n.Kind,
					Target:       dk,
					SourceAnchor: n.Anchor,
					TargetAnchor: dst,
				})
			}
		}
		for _, res := range n.Resources {
			if sub, ok := s.subs[res.URL]; ok {
				snap.Observations = append(snap.Observations, ObservationState{
					URL:      sub.URL(),
					State:    sub.State().String(),
					Attempts: sub.Attempts(),
				})
			}
		}
	}
	return snap
}

// Node returns the state of the node of the given kind.
func (s *Session) Node(kind node.Kind) (NodeState, bool) {
	n, ok := s.registry.LookupByKind(kind)
	if !ok {
		return NodeState{}, false
	}

	kinds := make(map[string]node.Kind)
	for _, other := range s.registry.List() {
		kinds[other.Anchor] = other.Kind
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeStateLocked(n, kinds), true
}

func (s *Session) nodeStateLocked(n *node.Node, kinds map[string]node.Kind) NodeState {
	st := NodeState{
		Anchor:    n.Anchor,
		Kind:      n.Kind,
		Resources: n.Resources,
		LinkLocal: n.LinkLocal(),
		Hidden:    s.hidden[n.Anchor],
	}
	if p, ok := s.points[n.Anchor]; ok {
		ratio := FillRatio(p)
		st.Points = &p
		st.Ratio = &ratio
	}
	if dst, ok := s.links[n.Anchor]; ok {
		st.LinkedTo = kinds[dst]
	}
	return st
}
