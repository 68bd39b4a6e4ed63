package node

import (
	"sort"
	"sync"

	"github.com/nerrad567/luke-core/internal/linkformat"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry maps device anchors to nodes.
//
// It holds at most one node per kind: when a node of some kind is upserted
// under a new anchor, any other node of that kind is evicted. Nodes are never
// removed for any other reason; there is no "device went away" signal.
//
// The registry lives in memory only and is rebuilt from discovery on restart.
// All public methods are thread-safe and return deep copies.
type Registry struct {
	nodes  map[string]*Node
	mu     sync.RWMutex
	logger Logger
}

// UpsertResult describes the effect of an Upsert.
type UpsertResult struct {
	// Node is the node the link was attributed to, after the update.
	Node *Node

	// Resource is the resource handle that was inserted or overwritten.
	Resource Resource

	// Created is true when the anchor was seen for the first time.
	Created bool

	// Evicted holds nodes that were dropped because they had the same kind
	// as Node under a different anchor.
	Evicted []*Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:  make(map[string]*Node),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Upsert attributes a discovered link to its node.
//
// An unknown anchor creates a node whose kind is classified from this link.
// A known anchor keeps its kind. Either way, other nodes with the same kind
// are evicted, and the resource classified from the link is stored under
// the node, replacing any previous resource of that kind.
//
// Returns ErrMissingAnchor, and leaves the registry untouched, for links
// without an anchor.
func (r *Registry) Upsert(link linkformat.Link) (UpsertResult, error) {
	if link.Anchor == "" {
		return UpsertResult{}, ErrMissingAnchor
	}

	res := Resource{
		URL:    link.URL,
		Anchor: link.Anchor,
		Kind:   ClassifyResource(link),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var result UpsertResult
	n, ok := r.nodes[link.Anchor]
	if !ok {
		n = newNode(link)
		r.nodes[link.Anchor] = n
		result.Created = true
	}

	for anchor, other := range r.nodes {
		if anchor != n.Anchor && other.Kind == n.Kind {
			delete(r.nodes, anchor)
			result.Evicted = append(result.Evicted, other.DeepCopy())
		}
	}
	sort.Slice(result.Evicted, func(i, j int) bool {
		return result.Evicted[i].Anchor < result.Evicted[j].Anchor
	})

	n.Resources[res.Kind] = res
	result.Node = n.DeepCopy()
	result.Resource = res

	if result.Created {
		r.logger.Info("node discovered", "anchor", n.Anchor, "kind", n.Kind)
	}
	for _, e := range result.Evicted {
		r.logger.Warn("node evicted by duplicate kind",
			"anchor", e.Anchor,
			"kind", e.Kind,
			"replaced_by", n.Anchor,
		)
	}
	r.logger.Debug("resource stored", "anchor", n.Anchor, "resource", res.Kind, "url", res.URL)

	return result, nil
}

// LookupByKind returns the node of the given kind, if any.
func (r *Registry) LookupByKind(kind Kind) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.nodes {
		if n.Kind == kind {
			return n.DeepCopy(), true
		}
	}
	return nil, false
}

// Get returns the node with the given anchor.
func (r *Registry) Get(anchor string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[anchor]
	if !ok {
		return nil, false
	}
	return n.DeepCopy(), true
}

// NodeForURL returns the node owning a resource URL. A node that already
// holds a resource with that URL wins; otherwise the URL's scheme://authority
// prefix is looked up as an anchor.
func (r *Registry) NodeForURL(url string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.nodes {
		for _, res := range n.Resources {
			if res.URL == url {
				return n.DeepCopy(), true
			}
		}
	}
	if n, ok := r.nodes[linkformat.Origin(url)]; ok {
		return n.DeepCopy(), true
	}
	return nil, false
}

// List returns all nodes ordered by kind, then anchor.
func (r *Registry) List() []*Node {
	r.mu.RLock()
	nodes := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		nodes = append(nodes, n.DeepCopy())
	}
	r.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool {
		if oi, oj := nodes[i].Kind.order(), nodes[j].Kind.order(); oi != oj {
			return oi < oj
		}
		return nodes[i].Anchor < nodes[j].Anchor
	})
	return nodes
}

// Count returns the number of nodes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalNodes     int                  `json:"total_nodes"`
	TotalResources int                  `json:"total_resources"`
	ByKind         map[Kind]int         `json:"by_kind"`
	ByResource     map[ResourceKind]int `json:"by_resource"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalNodes: len(r.nodes),
		ByKind:     make(map[Kind]int),
		ByResource: make(map[ResourceKind]int),
	}
	for _, n := range r.nodes {
		stats.ByKind[n.Kind]++
		for k := range n.Resources {
			stats.ByResource[k]++
			stats.TotalResources++
		}
	}
	return stats
}
