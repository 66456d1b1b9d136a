package octoprint

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/agrif/OctoPrint-InfluxDB/internal/infrastructure/mqtt"
)

// Metadata keys the MQTT plugin adds to every event payload.
const (
	eventKey     = "_event"
	timestampKey = "_timestamp"
)

// Event names with special handling.
const (
	EventZChange      = "ZChange"
	EventPrintStarted = "PrintStarted"
	EventDisconnected = "Disconnected"
)

// Event is one decoded lifecycle event.
type Event struct {
	Name    string
	Payload map[string]any
}

// DecodeEvent parses an MQTT event message.
//
// Integral JSON numbers decode as int64, other numbers as float64. Nested
// objects and arrays are kept as generic values. The plugin's _event and
// _timestamp metadata keys are removed.
func DecodeEvent(topics mqtt.Topics, topic string, payload []byte) (Event, error) {
	name, ok := topics.EventName(topic)
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrNotEventTopic, topic)
	}

	ev := Event{Name: name, Payload: map[string]any{}}
	if len(bytes.TrimSpace(payload)) == 0 {
		return ev, nil
	}
	if !gjson.ValidBytes(payload) {
		return Event{}, fmt.Errorf("%w: %s: malformed JSON", ErrInvalidEvent, name)
	}

	root := gjson.ParseBytes(payload)
	if root.Type == gjson.Null {
		return ev, nil
	}
	if !root.IsObject() {
		return Event{}, fmt.Errorf("%w: %s: not an object", ErrInvalidEvent, name)
	}

	root.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if k == eventKey || k == timestampKey {
			return true
		}
		ev.Payload[k] = jsonValue(value)
		return true
	})
	return ev, nil
}

func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.String:
		return v.Str
	case gjson.Number:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
		return v.Num
	default:
		return v.Value()
	}
}

// Subscriber is the subset of the MQTT client used for events.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// ZTracker records the nozzle height carried by ZChange events.
type ZTracker interface {
	SetCurrentZ(z float64)
	ResetCurrentZ()
}

// EventHandler receives decoded events.
type EventHandler func(ctx context.Context, name string, payload map[string]any)

// eventStream adapts MQTT messages to an EventHandler.
type eventStream struct {
	ctx     context.Context
	topics  mqtt.Topics
	z       ZTracker
	handler EventHandler
}

// Subscribe listens for every event under topics and passes each one to
// handler. ZChange events update z (which may be nil) before the handler
// runs. Handlers stop being called once ctx is cancelled.
func Subscribe(ctx context.Context, sub Subscriber, topics mqtt.Topics, qos byte, z ZTracker, handler EventHandler) error {
	s := &eventStream{ctx: ctx, topics: topics, z: z, handler: handler}
	if err := sub.Subscribe(topics.AllEvents(), qos, s.handle); err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	return nil
}

func (s *eventStream) handle(topic string, payload []byte) error {
	ev, err := DecodeEvent(s.topics, topic, payload)
	if err != nil {
		return err
	}

	s.track(ev)

	if s.ctx.Err() != nil {
		return nil
	}
	s.handler(s.ctx, ev.Name, ev.Payload)
	return nil
}

func (s *eventStream) track(ev Event) {
	if s.z == nil {
		return
	}
	switch ev.Name {
	case EventZChange:
		switch z := ev.Payload["new"].(type) {
		case int64:
			s.z.SetCurrentZ(float64(z))
		case float64:
			s.z.SetCurrentZ(z)
		}
	case EventPrintStarted, EventDisconnected:
		s.z.ResetCurrentZ()
	}
}
