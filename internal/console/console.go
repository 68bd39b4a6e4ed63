// Package console provides the interactive command line of the dashboard.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"

	"github.com/nerrad567/luke-core/internal/history"
	"github.com/nerrad567/luke-core/internal/node"
	"github.com/nerrad567/luke-core/internal/session"
)

// Dashboard is the session surface the console drives.
type Dashboard interface {
	Snapshot() session.Snapshot
	Link(ctx context.Context, source, target node.Kind) error
	Unlink(ctx context.Context, source node.Kind) error
	Reboot(ctx context.Context, kind node.Kind, c session.Confirmer) error
	RebootAll(ctx context.Context, c session.Confirmer) error
	HideWidget(ctx context.Context, kind node.Kind, c session.Confirmer) error
	Refresh(kind node.Kind) error
}

// LineReader reads one line after printing prompt.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// historyLimit is how many entries the history command prints.
const historyLimit = 20

// Console runs commands against a Dashboard.
type Console struct {
	dash    Dashboard
	history history.Repository
	in      LineReader
	out     io.Writer
}

// New creates a console. repo may be nil when history is disabled.
func New(dash Dashboard, repo history.Repository, in LineReader, out io.Writer) *Console {
	return &Console{dash: dash, history: repo, in: in, out: out}
}

// Confirm asks a y/N question. Anything but "y" or "yes" declines.
func (c *Console) Confirm(_ context.Context, prompt string) bool {
	line, err := c.in.ReadLine(prompt + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Run reads commands until quit, EOF or ctx is cancelled.
func (c *Console) Run(ctx context.Context) {
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.in.ReadLine("luke> ")
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			return
		}

		if quit := c.Execute(ctx, line); quit {
			fmt.Fprintln(c.out, "Exiting...")
			return
		}
	}
}

// Execute runs one command line. It reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	ctx = session.WithSource(ctx, "console")

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "nodes", "n":
		c.cmdNodes()
	case "link", "l":
		c.cmdLink(ctx, args)
	case "unlink", "u":
		c.cmdUnlink(ctx, args)
	case "reboot":
		c.cmdReboot(ctx, args)
	case "reboot-all":
		c.report(c.dash.RebootAll(ctx, c), "reboot requested for all devices")
	case "hide":
		c.cmdHide(ctx, args)
	case "refresh":
		c.cmdRefresh(args)
	case "history", "h":
		c.cmdHistory(ctx, args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
luke commands:
  nodes                  - List discovered nodes, links and observations
  link <source> <target> - Point a widget at another widget's points
  unlink <source>        - Clear a widget's target
  reboot <kind>          - Restart one node
  reboot-all             - Restart everything behind the gateway
  hide <kind>            - Remove a widget until it is rediscovered
  refresh <kind>         - Re-read a node's points and target
  history [action]       - Show recent actions
  quit                   - Exit

Kinds: controller, display, dino`)
}

func (c *Console) cmdNodes() {
	snap := c.dash.Snapshot()
	if len(snap.Nodes) == 0 {
		fmt.Fprintln(c.out, "No nodes discovered.")
		return
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tANCHOR\tPOINTS\tLINKED TO\tFLAGS")
	for _, n := range snap.Nodes {
		points := "-"
		if n.Points != nil {
			points = fmt.Sprintf("%d", *n.Points)
		}
		linked := "-"
		if n.LinkedTo != "" {
			linked = string(n.LinkedTo)
		}
		var flags []string
		if n.LinkLocal {
			flags = append(flags, "link-local")
		}
		if n.Hidden {
			flags = append(flags, "hidden")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.Kind, n.Anchor, points, linked, strings.Join(flags, ","))
	}
	//nolint:errcheck // best-effort terminal output
	tw.Flush()

	for _, o := range snap.Observations {
		fmt.Fprintf(c.out, "observe %s: %s (attempts %d)\n", o.URL, o.State, o.Attempts)
	}
}

func (c *Console) cmdLink(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: link <source> <target>")
		return
	}
	source, ok := c.parseKind(args[0])
	if !ok {
		return
	}
	target, ok := c.parseKind(args[1])
	if !ok {
		return
	}
	c.report(c.dash.Link(ctx, source, target), fmt.Sprintf("%s -> %s", source, target))
}

func (c *Console) cmdUnlink(ctx context.Context, args []string) {
	kind, ok := c.kindArg("unlink", args)
	if !ok {
		return
	}
	c.report(c.dash.Unlink(ctx, kind), fmt.Sprintf("%s unlinked", kind))
}

func (c *Console) cmdReboot(ctx context.Context, args []string) {
	kind, ok := c.kindArg("reboot", args)
	if !ok {
		return
	}
	c.report(c.dash.Reboot(ctx, kind, c), fmt.Sprintf("reboot requested for %s", kind))
}

func (c *Console) cmdHide(ctx context.Context, args []string) {
	kind, ok := c.kindArg("hide", args)
	if !ok {
		return
	}
	c.report(c.dash.HideWidget(ctx, kind, c), fmt.Sprintf("%s hidden", kind))
}

func (c *Console) cmdRefresh(args []string) {
	kind, ok := c.kindArg("refresh", args)
	if !ok {
		return
	}
	c.report(c.dash.Refresh(kind), fmt.Sprintf("refreshing %s", kind))
}

func (c *Console) cmdHistory(ctx context.Context, args []string) {
	if c.history == nil {
		fmt.Fprintln(c.out, "History is not enabled.")
		return
	}
	filter := history.Filter{Limit: historyLimit}
	if len(args) > 0 {
		filter.Action = args[0]
	}

	result, err := c.history.List(ctx, filter)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if len(result.Entries) == 0 {
		fmt.Fprintln(c.out, "No history.")
		return
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tKIND\tTARGET\tOUTCOME\tSOURCE")
	for _, e := range result.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format("15:04:05"), e.Action, dash(e.Kind), dash(e.Target), e.Outcome, e.Source)
	}
	//nolint:errcheck // best-effort terminal output
	tw.Flush()
	if result.Total > len(result.Entries) {
		fmt.Fprintf(c.out, "(%d of %d)\n", len(result.Entries), result.Total)
	}
}

func (c *Console) kindArg(cmd string, args []string) (node.Kind, bool) {
	if len(args) != 1 {
		fmt.Fprintf(c.out, "Usage: %s <kind>\n", cmd)
		return "", false
	}
	return c.parseKind(args[0])
}

func (c *Console) parseKind(s string) (node.Kind, bool) {
	kind, ok := node.ParseKind(strings.ToLower(s))
	if !ok {
		fmt.Fprintf(c.out, "Unknown kind: %s\n", s)
	}
	return kind, ok
}

func (c *Console) report(err error, done string) {
	switch {
	case err == nil:
		fmt.Fprintln(c.out, done)
	case errors.Is(err, session.ErrNotConfirmed):
		fmt.Fprintln(c.out, "Cancelled.")
	default:
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
