package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/agrif/OctoPrint-InfluxDB/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connection attempt and how long
	// Start waits for the first one.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish and
	// subscribe acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// minRetryInterval and defaultMaxRetryInterval bound the reconnect
	// delays taken from config; zero values would make paho spin.
	minRetryInterval        = time.Second
	defaultMaxRetryInterval = time.Minute

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho options for consuming the event stream.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and optional credentials
//   - Retry of the first connect and automatic reconnect, with delays
//     clamped to [minRetryInterval, max_delay]
//   - Ordered delivery, so events reach the recorder in publish order
//   - A clean session without paho's own resubscription; Client replays
//     its registered subscriptions on every connect instead
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Missed events are not replayed; there is nothing to keep on the broker.
	opts.SetCleanSession(true)
	opts.SetResumeSubs(false)
	opts.SetOrderMatters(true)

	initial, maxDelay := retryIntervals(cfg.Reconnect)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(initial)
	opts.SetMaxReconnectInterval(maxDelay)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// retryIntervals converts the reconnect settings (seconds) to durations.
func retryIntervals(cfg config.MQTTReconnectConfig) (initial, maxDelay time.Duration) {
	initial = time.Duration(cfg.InitialDelay) * time.Second
	if initial < minRetryInterval {
		initial = minRetryInterval
	}
	maxDelay = time.Duration(cfg.MaxDelay) * time.Second
	if maxDelay <= 0 {
		maxDelay = defaultMaxRetryInterval
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	return initial, maxDelay
}

// statusPayload is the retained presence message on <client_id>/status.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildStatusPayload(status, clientID, reason string) string {
	data, err := json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Only strings are marshalled.
		return fmt.Sprintf(`{"status":%q}`, status)
	}
	return string(data)
}

// configureLWT sets the Last Will: the broker publishes it, retained, on
// <client_id>/status if the forwarder disappears without Close.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(Topics{}.Status(clientID), buildStatusPayload("offline", clientID, "unexpected_disconnect"), 1, true)
}

// buildOnlinePayload creates the payload announced after each connect.
func buildOnlinePayload(clientID string) string {
	return buildStatusPayload("online", clientID, "")
}

// buildOfflinePayload creates the payload announced by Close.
func buildOfflinePayload(clientID string) string {
	return buildStatusPayload("offline", clientID, "graceful_shutdown")
}
