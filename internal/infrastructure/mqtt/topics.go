package mqtt

import (
	"fmt"
	"strings"
)

// DefaultBaseTopic is the OctoPrint-MQTT plugin's default base topic.
const DefaultBaseTopic = "octoPrint/"

// Topics provides builders for the OctoPrint-MQTT topic hierarchy.
//
// The plugin publishes under a configurable base topic (with trailing slash):
//
//	topics := mqtt.Topics{Base: "octoPrint/"}
//	topics.Event("PrintStarted")
//	// Returns: "octoPrint/event/PrintStarted"
type Topics struct {
	Base string
}

func (t Topics) base() string {
	if t.Base == "" {
		return DefaultBaseTopic
	}
	return t.Base
}

// Event returns the topic an event is published on.
//
// Example: octoPrint/event/PrinterStateChanged
func (t Topics) Event(name string) string {
	return fmt.Sprintf("%sevent/%s", t.base(), name)
}

// AllEvents returns a pattern matching every event topic.
//
// Pattern: octoPrint/event/+
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%sevent/+", t.base())
}

// EventName extracts the event name from an event topic.
// It reports false when the topic is not an event topic under this base.
func (t Topics) EventName(topic string) (string, bool) {
	prefix := t.base() + "event/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(topic, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// Status returns the topic the forwarder announces its own presence on.
// Online/offline payloads are retained; the LWT reports crashes.
//
// Example: octoprint-influxdb/status
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/status", clientID)
}
