// Package node provides the in-memory registry of discovered devices.
//
// Every link from a discovery response is classified twice: once into a
// device Kind (controller, display, dino, registry) and once into a
// ResourceKind (points, target, reboot, resource-lookup). Both
// classifications are ordered URL pattern lists where the first match wins
// and anything unmatched is labelled "undefined" instead of being dropped.
//
// # Registry rules
//
//   - A node is created the first time its anchor is seen; its kind comes
//     from that first link and never changes.
//   - Each node holds one resource per ResourceKind; re-adding overwrites.
//   - At most one node per kind exists. Upserting a node evicts any other
//     node of the same kind (a device that rebooted with a new address
//     replaces its old entry).
//   - Links without an anchor are rejected with ErrMissingAnchor.
//
// # Usage
//
//	reg := node.NewRegistry()
//	reg.SetLogger(log)
//
//	for _, l := range linkformat.Parse(body) {
//	    res, err := reg.Upsert(l)
//	    if errors.Is(err, node.ErrMissingAnchor) {
//	        continue
//	    }
//	    ...
//	}
//
//	display, ok := reg.LookupByKind(node.KindDisplay)
package node
