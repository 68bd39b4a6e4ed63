package node

import (
	"strings"

	"github.com/nerrad567/luke-core/internal/linkformat"
)

// Kind is the coarse device label a node is rendered as.
type Kind string

// Device kinds.
const (
	KindController Kind = "controller"
	KindDisplay    Kind = "display"
	KindDino       Kind = "dino"
	KindRegistry   Kind = "registry"
	KindUndefined  Kind = "undefined"
)

// WidgetKinds lists the kinds that get a widget, in the order targets are
// loaded after each discovery update.
var WidgetKinds = []Kind{KindController, KindDisplay, KindDino}

// AllKinds returns every device kind, including the fallback.
func AllKinds() []Kind {
	return []Kind{KindController, KindDisplay, KindDino, KindRegistry, KindUndefined}
}

// ParseKind converts a string to a Kind. Unknown strings map to KindUndefined
// with ok=false.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindController, KindDisplay, KindDino, KindRegistry, KindUndefined:
		return k, true
	}
	return KindUndefined, false
}

// order returns the listing position of a kind.
func (k Kind) order() int {
	for i, kk := range AllKinds() {
		if kk == k {
			return i
		}
	}
	return len(AllKinds())
}

// ResourceKind labels one endpoint of a device.
type ResourceKind string

// Resource kinds.
const (
	ResourcePoints         ResourceKind = "points"
	ResourceTarget         ResourceKind = "target"
	ResourceReboot         ResourceKind = "reboot"
	ResourceResourceLookup ResourceKind = "resource-lookup"
	ResourceUndefined      ResourceKind = "undefined"
)

// Resource is one addressable endpoint of a node.
type Resource struct {
	URL    string       `json:"url"`
	Anchor string       `json:"anchor"`
	Kind   ResourceKind `json:"kind"`
}

// Node is a device seen in discovery, keyed by its anchor.
//
// Kind is fixed from the first resource the node was created from and
// never changes afterwards.
type Node struct {
	Anchor    string                    `json:"anchor"`
	Kind      Kind                      `json:"kind"`
	Resources map[ResourceKind]Resource `json:"resources"`
}

// newNode creates a node from its first link. The caller must set the
// resource afterwards.
func newNode(link linkformat.Link) *Node {
	return &Node{
		Anchor:    link.Anchor,
		Kind:      ClassifyDevice(link),
		Resources: make(map[ResourceKind]Resource),
	}
}

// Resource returns the node's resource of the given kind.
func (n *Node) Resource(kind ResourceKind) (Resource, bool) {
	r, ok := n.Resources[kind]
	return r, ok
}

// LinkLocal reports whether the node is only reachable via an IPv6
// link-local address. Such nodes cannot be addressed by other devices.
func (n *Node) LinkLocal() bool {
	return strings.Contains(strings.ToLower(n.Anchor), "[fe80::")
}

// DeepCopy returns a copy whose resource map is not shared with n.
func (n *Node) DeepCopy() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Resources = make(map[ResourceKind]Resource, len(n.Resources))
	for k, v := range n.Resources {
		cp.Resources[k] = v
	}
	return &cp
}
