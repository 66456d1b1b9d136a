package mqtt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/agrif/OctoPrint-InfluxDB/internal/infrastructure/config"
)

// Client consumes OctoPrint's MQTT event stream.
//
// A Client is created disconnected by New. Handlers registered with Subscribe
// are kept for the lifetime of the client and applied every time a connection
// is established, so they can be attached before the broker is reachable.
// Start begins connecting; paho keeps retrying in the background until Close.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Message handlers run on paho's goroutines, in arrival order.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// connectWait bounds how long Start blocks for the first connection.
	connectWait time.Duration

	mu            sync.RWMutex
	subscriptions map[string]subscription
	connected     bool
	started       bool
	closed        bool
	connects      int
	lastErr       error

	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription is a registered handler, replayed on every connect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload (JSON for OctoPrint events)
//
// Returns:
//   - error: Logged as a warning; the message is not redelivered
type MessageHandler func(topic string, payload []byte) error

// New creates a client for the configured broker without connecting.
//
// The returned client announces itself on <client_id>/status once connected
// and leaves a Last Will on the same topic for unexpected disconnects.
func New(cfg config.MQTTConfig) *Client {
	c := &Client{
		cfg:           cfg,
		connectWait:   defaultConnectTimeout,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	// paho calls these on its own goroutines, for the first connection
	// and for every reconnect after it.
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Start connects to the broker, waiting a bounded time for the first
// connection.
//
// Returns:
//   - nil: Connected
//   - ErrConnectPending: The broker did not answer in time; paho keeps
//     retrying and registered subscriptions are applied once it connects
//   - ErrConnectionFailed: The broker refused the connection; the client
//     stops retrying
//   - ErrClosed: Close was already called
func (c *Client) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	wait := c.connectWait
	c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("%w: no answer from %s after %v", ErrConnectPending, c.brokerAddr(), wait)
	}
	if err := token.Error(); err != nil {
		// Refusals (credentials, client ID) are not retried; stop the
		// background goroutines now.
		c.client.Disconnect(0)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.brokerAddr(), err)
	}
	return nil
}

func (c *Client) brokerAddr() string {
	return fmt.Sprintf("%s:%d", c.cfg.Broker.Host, c.cfg.Broker.Port)
}

// handleConnect replays subscriptions and announces the forwarder.
func (c *Client) handleConnect() {
	c.mu.Lock()
	c.connected = true
	c.connects++
	c.lastErr = nil
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	callback := c.onConnect
	c.mu.Unlock()

	for _, sub := range subs {
		c.subscribeAsync(sub)
	}
	c.publishStatus(buildOnlinePayload(c.cfg.Broker.ClientID), false)

	if callback != nil {
		callback()
	}
}

// subscribeAsync subscribes without blocking paho's connect handler.
func (c *Client) subscribeAsync(sub subscription) {
	token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	go func() {
		if !token.WaitTimeout(defaultPublishTimeout) {
			c.warn("MQTT subscribe timed out", "topic", sub.topic)
			return
		}
		if err := token.Error(); err != nil {
			c.warn("MQTT subscribe failed", "topic", sub.topic, "error", err)
		}
	}()
}

// handleDisconnect records a lost connection; paho reconnects on its own.
func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	c.connected = false
	c.lastErr = err
	callback := c.onDisconnect
	c.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// publishStatus writes a retained presence message to <client_id>/status.
// When wait is set it blocks until the broker acknowledges or the publish
// timeout expires.
func (c *Client) publishStatus(payload string, wait bool) {
	// #nosec G115 -- qos validated to 0-2 by config.Validate
	token := c.client.Publish(Topics{}.Status(c.cfg.Broker.ClientID), byte(c.cfg.QoS), true, payload)
	if wait {
		token.WaitTimeout(defaultPublishTimeout)
	}
}

// Close announces a graceful shutdown and disconnects. Background connection
// attempts stop. Close is idempotent.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	if c.IsConnected() {
		c.publishStatus(buildOfflinePayload(c.cfg.Broker.ClientID), true)
	}
	if started {
		// Also aborts a connect that is still retrying.
		c.client.Disconnect(defaultDisconnectQuiesce)
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// HealthCheck reports whether the event stream is live.
//
// Returns:
//   - error: nil when connected; ErrNotConnected (wrapping the last
//     connection error, if any) otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if c.IsConnected() {
		return nil
	}

	c.mu.RLock()
	lastErr := c.lastErr
	c.mu.RUnlock()
	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, lastErr)
	}
	return ErrNotConnected
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Connects returns how many times a connection has been established.
func (c *Client) Connects() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connects
}

// Topics returns the registered subscription patterns in sorted order.
func (c *Client) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// SetOnConnect sets a callback invoked after every successful connect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets a logger for handler errors, panics and failed
// resubscriptions. Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

func (c *Client) warn(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
}

// wrapHandler adapts a MessageHandler to paho, recovering panics so one bad
// event cannot take down the daemon.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.warn("MQTT handler returned error",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}
