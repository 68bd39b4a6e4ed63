package session

import (
	"context"

	"github.com/nerrad567/luke-core/internal/node"
)

// autoLinkPairs are wired automatically when both ends are known.
var autoLinkPairs = [][2]node.Kind{
	{node.KindController, node.KindDisplay},
	{node.KindDisplay, node.KindDino},
}

// autoLinkNodes links each pair once per (source, target) anchor pair.
// Nodes reachable only by a link-local address are skipped since other
// devices cannot send to them.
func (s *Session) autoLinkNodes() {
	for _, pair := range autoLinkPairs {
		source, ok := s.registry.LookupByKind(pair[0])
		if !ok {
			continue
		}
		target, ok := s.registry.LookupByKind(pair[1])
		if !ok {
			continue
		}
		if source.LinkLocal() || target.LinkLocal() {
			s.logger.Debug("skipping auto-link of link-local node",
				"source", source.Anchor,
				"target", target.Anchor,
			)
			continue
		}
		if _, ok := source.Resource(node.ResourceTarget); !ok {
			continue
		}
		if _, ok := target.Resource(node.ResourcePoints); !ok {
			continue
		}

		key := pairKey{source: source.Anchor, target: target.Anchor}
		s.mu.Lock()
		done := s.autoLinked[key]
		if !done {
			s.autoLinked[key] = true
		}
		s.mu.Unlock()
		if done {
			continue
		}

		sourceKind, targetKind := pair[0], pair[1]
		s.goAsync(func(ctx context.Context) {
			if err := s.Link(WithSource(ctx, "auto-link"), sourceKind, targetKind); err != nil {
				s.logger.Warn("auto-link failed",
					"source", sourceKind,
					"target", targetKind,
					"error", err,
				)
				s.mu.Lock()
				delete(s.autoLinked, key)
				s.mu.Unlock()
				return
			}
			s.logger.Info("auto-linked", "source", sourceKind, "target", targetKind)
		})
	}
}
