package mqtt

import (
	"fmt"
)

// Subscribe registers handler for messages matching topic.
//
// The registration outlives the connection: it is (re)applied every time the
// client connects, including the first connect after Start and every
// automatic reconnect. Registering the same topic again replaces the handler.
//
// When the client is connected the subscription is also made immediately and
// Subscribe waits for the broker to acknowledge it. While disconnected it
// only registers and returns nil.
//
// Topics can use MQTT wildcards, e.g. "octoPrint/event/+" for every event.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrClosed, or ErrSubscribeFailed
//     when the broker rejects or does not acknowledge a live subscription
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	sub := subscription{topic: topic, qos: qos, handler: handler}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.subscriptions[topic] = sub
	c.mu.Unlock()

	// A connect racing with this call replays the registration too; a
	// duplicate SUBSCRIBE simply replaces the first.
	if !c.IsConnected() {
		return nil
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}
