package session

import (
	"context"
	"fmt"

	"github.com/nerrad567/luke-core/internal/history"
	"github.com/nerrad567/luke-core/internal/linkformat"
	"github.com/nerrad567/luke-core/internal/node"
)

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Confirmed is a Confirmer with a fixed answer, for callers that collected
// the approval up front (an API request flag).
type Confirmed bool

// Confirm returns c.
func (c Confirmed) Confirm(context.Context, string) bool {
	return bool(c)
}

// Confirmation prompts.
const (
	PromptRebootAll = "Restart everything?"
)

// RebootPrompt is shown before rebooting one node.
func RebootPrompt(n *node.Node) string {
	return fmt.Sprintf("Restart %s: %s?", n.Kind, n.Anchor)
}

// HidePrompt is shown before hiding a node's widget.
func HidePrompt(n *node.Node) string {
	return fmt.Sprintf("Remove %s: %s widget?", n.Kind, n.Anchor)
}

// Link makes the source node send its output to the target node's points
// resource.
func (s *Session) Link(ctx context.Context, sourceKind, targetKind node.Kind) error {
	if sourceKind == targetKind {
		return ErrSelfLink
	}

	source, targetRes, err := s.targetResource(sourceKind)
	if err != nil {
		return err
	}
	target, ok := s.registry.LookupByKind(targetKind)
	if !ok {
		return fmt.Errorf("%w: %s", node.ErrNodeNotFound, targetKind)
	}
	points, ok := target.Resource(node.ResourcePoints)
	if !ok {
		return fmt.Errorf("%w: %s has no points resource", node.ErrResourceNotFound, targetKind)
	}
	addr, path, ok := linkformat.SplitURL(points.URL)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidResourceURL, points.URL)
	}

	err = s.transport.Send(ctx, targetRes.URL, TargetPayload{Addr: addr, Path: path}, "")
	s.finish(ctx, &history.Entry{
		Action: history.ActionLink,
		Kind:   string(sourceKind),
		Anchor: source.Anchor,
		Target: target.Anchor,
	}, err)
	if err != nil {
		return fmt.Errorf("linking %s to %s: %w", sourceKind, targetKind, err)
	}

	s.setLink(source, target)
	return nil
}

// Unlink clears the source node's target.
func (s *Session) Unlink(ctx context.Context, sourceKind node.Kind) error {
	source, targetRes, err := s.targetResource(sourceKind)
	if err != nil {
		return err
	}

	err = s.transport.Send(ctx, targetRes.URL, TargetPayload{}, "")
	s.finish(ctx, &history.Entry{
		Action: history.ActionUnlink,
		Kind:   string(sourceKind),
		Anchor: source.Anchor,
	}, err)
	if err != nil {
		return fmt.Errorf("unlinking %s: %w", sourceKind, err)
	}

	s.setLink(source, nil)
	return nil
}

func (s *Session) targetResource(kind node.Kind) (*node.Node, node.Resource, error) {
	n, ok := s.registry.LookupByKind(kind)
	if !ok {
		return nil, node.Resource{}, fmt.Errorf("%w: %s", node.ErrNodeNotFound, kind)
	}
	res, ok := n.Resource(node.ResourceTarget)
	if !ok {
		return nil, node.Resource{}, fmt.Errorf("%w: %s has no target resource", node.ErrResourceNotFound, kind)
	}
	return n, res, nil
}

// Reboot restarts one node after confirmation.
func (s *Session) Reboot(ctx context.Context, kind node.Kind, c Confirmer) error {
	n, ok := s.registry.LookupByKind(kind)
	if !ok {
		return fmt.Errorf("%w: %s", node.ErrNodeNotFound, kind)
	}
	res, ok := n.Resource(node.ResourceReboot)
	if !ok {
		return fmt.Errorf("%w: %s has no reboot resource", node.ErrResourceNotFound, kind)
	}

	entry := &history.Entry{Action: history.ActionReboot, Kind: string(kind), Anchor: n.Anchor}
	if !confirm(ctx, c, RebootPrompt(n)) {
		s.decline(ctx, entry)
		return ErrNotConfirmed
	}

	err := s.transport.Send(ctx, res.URL, struct{}{}, "")
	s.finish(ctx, entry, err)
	if err != nil {
		return fmt.Errorf("rebooting %s: %w", kind, err)
	}
	s.logger.Info("node rebooted", "kind", kind, "anchor", n.Anchor)
	return nil
}

// RebootAll asks the gateway to restart every device after confirmation.
func (s *Session) RebootAll(ctx context.Context, c Confirmer) error {
	entry := &history.Entry{Action: history.ActionRebootAll}
	if !confirm(ctx, c, PromptRebootAll) {
		s.decline(ctx, entry)
		return ErrNotConfirmed
	}

	err := s.transport.RebootAll(ctx)
	s.finish(ctx, entry, err)
	if err != nil {
		return fmt.Errorf("rebooting all: %w", err)
	}
	s.logger.Info("all devices rebooted")
	return nil
}

// HideWidget removes a node's widget from the dashboard after confirmation.
// The node stays in the registry; the widget comes back if the node is
// discovered anew.
func (s *Session) HideWidget(ctx context.Context, kind node.Kind, c Confirmer) error {
	n, ok := s.registry.LookupByKind(kind)
	if !ok {
		return fmt.Errorf("%w: %s", node.ErrNodeNotFound, kind)
	}

	entry := &history.Entry{Action: history.ActionHide, Kind: string(kind), Anchor: n.Anchor}
	if !confirm(ctx, c, HidePrompt(n)) {
		s.decline(ctx, entry)
		return ErrNotConfirmed
	}

	s.mu.Lock()
	s.hidden[n.Anchor] = true
	s.mu.Unlock()

	s.finish(ctx, entry, nil)
	s.emit(Event{Type: EventWidgetHidden, Kind: n.Kind, Anchor: n.Anchor})
	return nil
}

// Refresh GETs a node's points and target resources.
func (s *Session) Refresh(kind node.Kind) error {
	n, ok := s.registry.LookupByKind(kind)
	if !ok {
		return fmt.Errorf("%w: %s", node.ErrNodeNotFound, kind)
	}
	for _, rk := range []node.ResourceKind{node.ResourcePoints, node.ResourceTarget} {
		if res, ok := n.Resource(rk); ok {
			s.fetch(res)
		}
	}
	return nil
}

func confirm(ctx context.Context, c Confirmer, prompt string) bool {
	if c == nil {
		return false
	}
	return c.Confirm(ctx, prompt)
}

func (s *Session) decline(ctx context.Context, e *history.Entry) {
	e.Outcome = history.OutcomeDeclined
	s.metrics.Actions.WithLabelValues(e.Action, e.Outcome).Inc()
	s.record(ctx, e)
}

// finish records the outcome of an action.
func (s *Session) finish(ctx context.Context, e *history.Entry, err error) {
	e.Outcome = history.OutcomeOK
	if err != nil {
		e.Outcome = history.OutcomeFailed
		e.Details = map[string]any{"error": err.Error()}
	}
	s.metrics.Actions.WithLabelValues(e.Action, e.Outcome).Inc()
	s.record(ctx, e)
}
