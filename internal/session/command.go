package session

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/nerrad567/luke-core/internal/node"
)

// Command is a link or unlink request received over MQTT.
type Command struct {
	Source string `json:"source"`
	Target string `json:"target,omitempty"`
}

// Command names, the last segment of the command topic.
const (
	CommandLink   = "link"
	CommandUnlink = "unlink"
)

// HandleCommand executes an MQTT command. The command name is the last
// topic segment; the payload is a JSON Command.
//
// Reboot and hide are not accepted here: they need an interactive
// confirmation.
func (s *Session) HandleCommand(topic string, payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	source, ok := node.ParseKind(cmd.Source)
	if !ok {
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalidCommand, cmd.Source)
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return ErrNotStarted
	}
	ctx = WithSource(ctx, "mqtt")

	switch name := path.Base(topic); name {
	case CommandLink:
		target, ok := node.ParseKind(cmd.Target)
		if !ok {
			return fmt.Errorf("%w: unknown target kind %q", ErrInvalidCommand, cmd.Target)
		}
		return s.Link(ctx, source, target)
	case CommandUnlink:
		return s.Unlink(ctx, source)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, name)
	}
}
