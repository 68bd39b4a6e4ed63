package mqtt

import "fmt"

// Topic prefixes. Everything the dashboard publishes or listens to lives
// under TopicPrefix:
//
//	luke/event/{event_type}         session events (node.discovered, ...)
//	luke/node/{kind}/points         last points reading, retained
//	luke/command/{link|unlink}      link commands from other systems
//	luke/system/status              online/offline, retained, LWT
const (
	// TopicPrefix is the base for all topics.
	TopicPrefix = "luke"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "luke/system"
)

// Topics provides builders for the dashboard's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.NodePoints("display")
//	// Returns: "luke/node/display/points"
type Topics struct{}

// Event returns the topic for a session event.
//
// Example: luke/event/link.changed
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// NodePoints returns the retained topic holding a node's last points reading.
//
// Example: luke/node/dino/points
func (Topics) NodePoints(kind string) string {
	return fmt.Sprintf("%s/node/%s/points", TopicPrefix, kind)
}

// Command returns the topic for a command.
//
// Example: luke/command/link
func (Topics) Command(name string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, name)
}

// SystemStatus returns the system status topic.
//
// Example: luke/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEvents returns a pattern matching all session events.
//
// Pattern: luke/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllNodePoints returns a pattern matching every node's points topic.
//
// Pattern: luke/node/+/points
func (Topics) AllNodePoints() string {
	return fmt.Sprintf("%s/node/+/points", TopicPrefix)
}

// AllCommands returns a pattern matching all commands.
//
// Pattern: luke/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllTopics returns a pattern matching every dashboard topic.
//
// Pattern: luke/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
