package session

import (
	"fmt"
	"strings"

	"github.com/nerrad567/luke-core/internal/gateway"
	"github.com/nerrad567/luke-core/internal/history"
	"github.com/nerrad567/luke-core/internal/linkformat"
	"github.com/nerrad567/luke-core/internal/node"
)

// MaxPoints is the points reading that fills a widget's bar.
const MaxPoints = 64

// defaultCoAPPort is dropped from target addresses that do not resolve.
const defaultCoAPPort = ":5683"

// FillRatio maps a points reading to the [0, 1] fill of a widget.
func FillRatio(points int) float64 {
	r := float64(points) / MaxPoints
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// pointsPayload is the body of a points resource.
type pointsPayload struct {
	Points *int `json:"points" cbor:"points"`
}

// TargetPayload is the body of a target resource: the address and path of
// the points resource the device sends to. Both are empty when unlinked.
type TargetPayload struct {
	Addr string `json:"addr" cbor:"addr"`
	Path string `json:"path" cbor:"path"`
}

// dispatchMessage routes an observation message by the kind of the
// observed resource.
func (s *Session) dispatchMessage(res node.Resource, msg gateway.Message) error {
	switch res.Kind {
	case node.ResourceResourceLookup:
		return s.handleDiscovery(string(msg.Data))
	case node.ResourcePoints:
		return s.handlePoints(res, msg.ContentType(), msg.Data)
	case node.ResourceTarget, node.ResourceReboot, node.ResourceUndefined:
		s.unhandled("observe", res)
		return nil
	default:
		s.unhandled("observe", res)
		return nil
	}
}

// dispatchResponse routes a GET response by the kind of the fetched
// resource.
func (s *Session) dispatchResponse(res node.Resource, resp *gateway.Response) error {
	switch res.Kind {
	case node.ResourcePoints:
		return s.handlePoints(res, resp.ContentType, resp.Body)
	case node.ResourceTarget:
		return s.handleTarget(resp)
	case node.ResourceResourceLookup, node.ResourceReboot, node.ResourceUndefined:
		s.unhandled("get", res)
		return nil
	default:
		s.unhandled("get", res)
		return nil
	}
}

func (s *Session) unhandled(via string, res node.Resource) {
	s.logger.Debug("no handler for resource",
		"via", via,
		"resource", res.Kind,
		"url", res.URL,
	)
}

// handleDiscovery applies one resource-lookup body to the registry.
func (s *Session) handleDiscovery(body string) error {
	links := linkformat.Parse(body)
	s.logger.Debug("discovery update", "links", len(links))

	for _, link := range links {
		if link.Anchor == "" {
			s.logger.Debug("skipping link without anchor", "url", link.URL)
			continue
		}
		result, err := s.registry.Upsert(link)
		if err != nil {
			s.logger.Warn("storing link failed", "link", link.String(), "error", err)
			continue
		}
		s.applyUpsert(result)
	}

	s.loadTargets()
	if s.autoLink {
		s.autoLinkNodes()
	}
	return nil
}

// applyUpsert turns a registry change into session state and events.
func (s *Session) applyUpsert(result node.UpsertResult) {
	n := result.Node

	if result.Created {
		s.mu.Lock()
		delete(s.hidden, n.Anchor)
		s.mu.Unlock()

		s.metrics.NodesDiscovered.WithLabelValues(string(n.Kind)).Inc()
		s.emit(Event{
			Type:      EventNodeDiscovered,
			Kind:      n.Kind,
			Anchor:    n.Anchor,
			LinkLocal: n.LinkLocal(),
		})
	}

	for _, evicted := range result.Evicted {
		s.evict(evicted, n.Anchor)
	}

	if !result.Created && len(result.Evicted) == 0 {
		return
	}

	stats := s.registry.GetStats()
	counts := make(map[string]int, len(stats.ByKind))
	for _, kind := range node.AllKinds() {
		s.metrics.Nodes.WithLabelValues(string(kind)).Set(float64(stats.ByKind[kind]))
		counts[string(kind)] = stats.ByKind[kind]
	}
	if s.telemetry != nil {
		s.telemetry.WriteNodeCounts(counts)
	}
}

// evict forgets everything about a node that was replaced by another node
// of the same kind.
func (s *Session) evict(evicted *node.Node, replacedBy string) {
	s.unobserve(evicted)

	var changed []string
	s.mu.Lock()
	delete(s.points, evicted.Anchor)
	delete(s.hidden, evicted.Anchor)
	delete(s.links, evicted.Anchor)
	for src, dst := range s.links {
		if dst == evicted.Anchor {
			delete(s.links, src)
			changed = append(changed, src)
		}
	}
	for key := range s.autoLinked {
		if key.source == evicted.Anchor || key.target == evicted.Anchor {
			delete(s.autoLinked, key)
		}
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.metrics.NodesEvicted.WithLabelValues(string(evicted.Kind)).Inc()
	if ctx != nil {
		s.record(WithSource(ctx, "discovery"), &history.Entry{
			Action:  history.ActionEvict,
			Kind:    string(evicted.Kind),
			Anchor:  evicted.Anchor,
			Details: map[string]any{"replaced_by": replacedBy},
		})
	}
	s.emit(Event{
		Type:       EventNodeEvicted,
		Kind:       evicted.Kind,
		Anchor:     evicted.Anchor,
		ReplacedBy: replacedBy,
	})

	for _, src := range changed {
		if n, ok := s.registry.Get(src); ok {
			s.emit(Event{Type: EventLinkChanged, Kind: n.Kind, Anchor: n.Anchor})
		}
	}
}

// loadTargets refreshes the widgets after a discovery update: the display's
// points are observed and every widget's target is fetched.
func (s *Session) loadTargets() {
	for _, kind := range node.WidgetKinds {
		n, ok := s.registry.LookupByKind(kind)
		if !ok {
			continue
		}
		if kind == node.KindDisplay {
			if pts, ok := n.Resource(node.ResourcePoints); ok {
				s.observe(pts)
			}
		}
		if target, ok := n.Resource(node.ResourceTarget); ok {
			s.fetch(target)
		}
	}
}

// handlePoints stores a points reading.
func (s *Session) handlePoints(res node.Resource, contentType string, data []byte) error {
	var p pointsPayload
	if err := gateway.Decode(contentType, data, &p); err != nil {
		s.logger.Warn("malformed points payload", "url", res.URL, "error", err)
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if p.Points == nil {
		s.logger.Debug("points payload without points", "url", res.URL)
		return nil
	}

	n, ok := s.registry.Get(res.Anchor)
	if !ok {
		s.logger.Debug("points for unknown node", "anchor", res.Anchor)
		return nil
	}

	points := *p.Points
	ratio := FillRatio(points)

	s.mu.Lock()
	s.points[n.Anchor] = points
	s.mu.Unlock()

	s.emit(Event{
		Type:   EventPointsUpdated,
		Kind:   n.Kind,
		Anchor: n.Anchor,
		Points: &points,
		Ratio:  &ratio,
	})
	if s.telemetry != nil {
		s.telemetry.WritePoints(n.Anchor, string(n.Kind), points, ratio)
	}
	return nil
}

// handleTarget records which node a device currently sends its points to.
func (s *Session) handleTarget(resp *gateway.Response) error {
	var t TargetPayload
	if err := gateway.DecodePayload(resp, &t); err != nil {
		s.logger.Warn("malformed target payload", "url", resp.URL, "error", err)
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	source, ok := s.registry.NodeForURL(resp.URL)
	if !ok {
		s.logger.Debug("target response for unknown node", "url", resp.URL)
		return nil
	}

	if t.Addr == "" {
		s.setLink(source, nil)
		return nil
	}

	target, ok := s.resolveTarget(t.Addr, t.Path)
	if !ok {
		s.logger.Debug("link target not discovered",
			"source", source.Anchor,
			"addr", t.Addr,
			"path", t.Path,
		)
		return nil
	}
	s.setLink(source, target)
	return nil
}

// resolveTarget finds the node addressed by a target payload.
func (s *Session) resolveTarget(addr, path string) (*node.Node, bool) {
	n, ok := s.registry.Get("coap://" + addr)
	if !ok {
		host, hadPort := strings.CutSuffix(addr, defaultCoAPPort)
		if !hadPort {
			return nil, false
		}
		if n, ok = s.registry.Get("coap://" + host); !ok {
			return nil, false
		}
	}
	// An empty path matches the node's first resource.
	for _, res := range n.Resources {
		if strings.HasSuffix(res.URL, path) {
			return n, true
		}
	}
	return nil, false
}

// setLink records source -> target (nil target means unlinked) and emits
// link.changed when it differs from what was known.
func (s *Session) setLink(source, target *node.Node) {
	s.mu.Lock()
	prev, had := s.links[source.Anchor]
	switch {
	case target == nil && !had:
		s.mu.Unlock()
		return
	case target != nil && had && prev == target.Anchor:
		s.mu.Unlock()
		return
	case target == nil:
		delete(s.links, source.Anchor)
	default:
		s.links[source.Anchor] = target.Anchor
	}
	s.mu.Unlock()

	ev := Event{Type: EventLinkChanged, Kind: source.Kind, Anchor: source.Anchor}
	if target != nil {
		ev.Target = target.Kind
		s.logger.Info("link changed", "source", source.Kind, "target", target.Kind)
	} else {
		s.logger.Info("link cleared", "source", source.Kind)
	}
	s.emit(ev)
}
