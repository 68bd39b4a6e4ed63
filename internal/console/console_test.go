package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/luke-core/internal/history"
	"github.com/nerrad567/luke-core/internal/node"
	"github.com/nerrad567/luke-core/internal/session"
)

// scriptedInput returns queued lines, then io.EOF.
type scriptedInput struct {
	lines   []string
	prompts []string
}

func (s *scriptedInput) ReadLine(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type dashCall struct {
	action string
	kind   node.Kind
	target node.Kind
	source string
}

type fakeDashboard struct {
	snap  session.Snapshot
	calls []dashCall
	err   error
}

func (d *fakeDashboard) Snapshot() session.Snapshot { return d.snap }

func (d *fakeDashboard) add(ctx context.Context, c dashCall) error {
	c.source = session.SourceFrom(ctx)
	d.calls = append(d.calls, c)
	return d.err
}

func (d *fakeDashboard) Link(ctx context.Context, source, target node.Kind) error {
	return d.add(ctx, dashCall{action: "link", kind: source, target: target})
}

func (d *fakeDashboard) Unlink(ctx context.Context, source node.Kind) error {
	return d.add(ctx, dashCall{action: "unlink", kind: source})
}

func (d *fakeDashboard) Reboot(ctx context.Context, kind node.Kind, c session.Confirmer) error {
	if !c.Confirm(ctx, "Restart "+string(kind)+"?") {
		return session.ErrNotConfirmed
	}
	return d.add(ctx, dashCall{action: "reboot", kind: kind})
}

func (d *fakeDashboard) RebootAll(ctx context.Context, c session.Confirmer) error {
	if !c.Confirm(ctx, session.PromptRebootAll) {
		return session.ErrNotConfirmed
	}
	return d.add(ctx, dashCall{action: "reboot_all"})
}

func (d *fakeDashboard) HideWidget(ctx context.Context, kind node.Kind, c session.Confirmer) error {
	if !c.Confirm(ctx, "Remove "+string(kind)+"?") {
		return session.ErrNotConfirmed
	}
	return d.add(ctx, dashCall{action: "hide", kind: kind})
}

func (d *fakeDashboard) Refresh(kind node.Kind) error {
	return d.add(context.Background(), dashCall{action: "refresh", kind: kind})
}

type fakeHistory struct {
	filter history.Filter
	result history.ListResult
}

func (h *fakeHistory) Record(context.Context, *history.Entry) error { return nil }

func (h *fakeHistory) List(_ context.Context, f history.Filter) (*history.ListResult, error) {
	h.filter = f
	return &h.result, nil
}

func newConsole(lines ...string) (*Console, *fakeDashboard, *scriptedInput, *bytes.Buffer) {
	points := 48
	dash := &fakeDashboard{snap: session.Snapshot{
		Nodes: []session.NodeState{
			{Anchor: "coap://[fe80::1]", Kind: node.KindController, LinkLocal: true, LinkedTo: node.KindDisplay},
			{Anchor: "coap://[2001:db8::2]", Kind: node.KindDisplay, Points: &points},
		},
		Observations: []session.ObservationState{
			{URL: "coap://[2001:db8::2]/dsp/points", State: "open", Attempts: 2},
		},
	}}
	in := &scriptedInput{lines: lines}
	out := &bytes.Buffer{}
	return New(dash, nil, in, out), dash, in, out
}

func TestExecute_Nodes(t *testing.T) {
	c, _, _, out := newConsole()

	assert.False(t, c.Execute(context.Background(), "nodes"))

	text := out.String()
	assert.Contains(t, text, "coap://[fe80::1]")
	assert.Contains(t, text, "link-local")
	assert.Contains(t, text, "48")
	assert.Contains(t, text, "observe coap://[2001:db8::2]/dsp/points: open (attempts 2)")
}

func TestExecute_NodesEmpty(t *testing.T) {
	c, dash, _, out := newConsole()
	dash.snap = session.Snapshot{}

	c.Execute(context.Background(), "nodes")

	assert.Contains(t, out.String(), "No nodes discovered.")
}

func TestExecute_Link(t *testing.T) {
	c, dash, _, out := newConsole()

	c.Execute(context.Background(), "link Controller dino")

	require.Len(t, dash.calls, 1)
	assert.Equal(t, dashCall{action: "link", kind: node.KindController, target: node.KindDino, source: "console"}, dash.calls[0])
	assert.Contains(t, out.String(), "controller -> dino")
}

func TestExecute_Usage(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"link controller", "Usage: link <source> <target>"},
		{"unlink", "Usage: unlink <kind>"},
		{"reboot a b", "Usage: reboot <kind>"},
		{"hide lamp", "Unknown kind: lamp"},
		{"link controller corerd", "Unknown kind: corerd"},
		{"dance", "Unknown command: dance"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c, dash, _, out := newConsole()
			c.Execute(context.Background(), tt.line)
			assert.Contains(t, out.String(), tt.want)
			assert.Empty(t, dash.calls)
		})
	}
}

func TestExecute_RebootConfirmed(t *testing.T) {
	c, dash, in, out := newConsole("y")

	c.Execute(context.Background(), "reboot display")

	require.Len(t, dash.calls, 1)
	assert.Equal(t, "reboot", dash.calls[0].action)
	assert.Equal(t, []string{"Restart display? [y/N] "}, in.prompts)
	assert.Contains(t, out.String(), "reboot requested for display")
}

func TestExecute_RebootDeclined(t *testing.T) {
	for _, answer := range []string{"", "n", "nope"} {
		c, dash, _, out := newConsole(answer)

		c.Execute(context.Background(), "reboot-all")

		assert.Empty(t, dash.calls, "answer %q", answer)
		assert.Contains(t, out.String(), "Cancelled.", "answer %q", answer)
	}
}

func TestExecute_HideAndRefresh(t *testing.T) {
	c, dash, _, _ := newConsole("YES")

	c.Execute(context.Background(), "hide dino")
	c.Execute(context.Background(), "refresh display")

	require.Len(t, dash.calls, 2)
	assert.Equal(t, "hide", dash.calls[0].action)
	assert.Equal(t, "refresh", dash.calls[1].action)
}

func TestExecute_ActionError(t *testing.T) {
	c, dash, _, out := newConsole()
	dash.err = errors.New("gateway: request failed")

	c.Execute(context.Background(), "unlink controller")

	assert.Contains(t, out.String(), "Error: gateway: request failed")
}

func TestExecute_History(t *testing.T) {
	c, _, _, out := newConsole()
	repo := &fakeHistory{result: history.ListResult{
		Entries: []history.Entry{{
			Action: history.ActionLink, Kind: "controller", Target: "display",
			Outcome: history.OutcomeOK, Source: "api", CreatedAt: time.Now(),
		}},
		Total: 3,
	}}
	c.history = repo

	c.Execute(context.Background(), "history link")

	assert.Equal(t, history.Filter{Action: "link", Limit: historyLimit}, repo.filter)
	assert.Contains(t, out.String(), "controller")
	assert.Contains(t, out.String(), "(1 of 3)")
}

func TestExecute_HistoryDisabled(t *testing.T) {
	c, _, _, out := newConsole()

	c.Execute(context.Background(), "history")

	assert.Contains(t, out.String(), "History is not enabled.")
}

func TestRun_StopsOnQuitAndEOF(t *testing.T) {
	c, dash, _, out := newConsole("", "refresh display", "quit", "refresh dino")
	c.Run(context.Background())

	require.Len(t, dash.calls, 1, "commands after quit are not read")
	assert.Contains(t, out.String(), "Exiting...")

	c, dash, _, _ = newConsole("refresh display")
	c.Run(context.Background())
	assert.Len(t, dash.calls, 1)
}

func TestRun_CancelledContext(t *testing.T) {
	c, dash, in, _ := newConsole("refresh display")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.Run(ctx)

	assert.Empty(t, dash.calls)
	assert.Empty(t, in.prompts)
}

func TestConsole_IsConfirmer(t *testing.T) {
	var _ session.Confirmer = (*Console)(nil)
}
