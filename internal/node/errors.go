package node

import "errors"

// Domain errors for the node package.
//
//	if errors.Is(err, node.ErrMissingAnchor) {
//	    // link cannot be routed to a device; skip it
//	}
var (
	// ErrMissingAnchor is returned when a link carries no anchor and
	// therefore cannot be attributed to a device.
	ErrMissingAnchor = errors.New("node: link has no anchor")

	// ErrNodeNotFound is returned when no node matches an anchor or kind.
	ErrNodeNotFound = errors.New("node: not found")

	// ErrResourceNotFound is returned when a node lacks the requested resource.
	ErrResourceNotFound = errors.New("node: resource not found")
)
