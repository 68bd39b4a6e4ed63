package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/luke-core/internal/history"
	"github.com/nerrad567/luke-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/luke-core/internal/node"
)

// EventType names a change pushed to the UI.
type EventType string

// Event types. They double as WebSocket channel names.
const (
	EventNodeDiscovered EventType = "node.discovered"
	EventNodeEvicted    EventType = "node.evicted"
	EventPointsUpdated  EventType = "points.updated"
	EventLinkChanged    EventType = "link.changed"
	EventWidgetHidden   EventType = "widget.hidden"
)

// AllEvents lists every event type.
func AllEvents() []EventType {
	return []EventType{
		EventNodeDiscovered,
		EventNodeEvicted,
		EventPointsUpdated,
		EventLinkChanged,
		EventWidgetHidden,
	}
}

// Event is a state change of the session.
type Event struct {
	Type       EventType `json:"type"`
	Kind       node.Kind `json:"kind,omitempty"`
	Anchor     string    `json:"anchor,omitempty"`
	ReplacedBy string    `json:"replaced_by,omitempty"`
	Target     node.Kind `json:"target,omitempty"`
	Points     *int      `json:"points,omitempty"`
	Ratio      *float64  `json:"ratio,omitempty"`
	LinkLocal  bool      `json:"link_local,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier pushes events to connected UIs.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// Recorder keeps the action history.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
}

// Telemetry stores points readings as time series.
type Telemetry interface {
	WritePoints(anchor, kind string, points int, ratio float64)
	WriteNodeCounts(byKind map[string]int)
}

// Publisher publishes events to the message broker.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// emit fans an event out to the notifier and the broker.
func (s *Session) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if s.notifier != nil {
		s.notifier.Broadcast(string(ev.Type), ev)
	}

	if s.publisher != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("marshalling event", "type", ev.Type, "error", err)
			return
		}
		topics := mqtt.Topics{}
		if err := s.publisher.Publish(topics.Event(string(ev.Type)), payload, 0, false); err != nil {
			s.logger.Debug("publishing event failed", "type", ev.Type, "error", err)
		}
		if ev.Type == EventPointsUpdated {
			if err := s.publisher.Publish(topics.NodePoints(string(ev.Kind)), payload, 0, true); err != nil {
				s.logger.Debug("publishing points failed", "kind", ev.Kind, "error", err)
			}
		}
	}
}

// record writes a history entry, logging failures.
func (s *Session) record(ctx context.Context, e *history.Entry) {
	if s.recorder == nil {
		return
	}
	if e.Source == "" {
		e.Source = SourceFrom(ctx)
	}
	if err := s.recorder.Record(ctx, e); err != nil {
		s.logger.Warn("recording history failed", "action", e.Action, "error", err)
	}
}

type sourceKey struct{}

// WithSource tags ctx with the origin of an action ("api", "console",
// "mqtt", "auto-link"). The tag ends up in the history.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the tag set by WithSource, or "system".
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "system"
}
