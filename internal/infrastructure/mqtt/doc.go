// Package mqtt provides MQTT client connectivity for the forwarder.
//
// This package manages:
//   - Connection to the broker OctoPrint's MQTT plugin publishes to
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// OctoPrint publishes every lifecycle event on <base>event/<Name> with a JSON
// payload. The forwarder subscribes to <base>event/+ and hands events to the
// recorder:
//
//	OctoPrint → MQTT Broker → forwarder → InfluxDB
//
// # Lifecycle
//
// New builds a disconnected client. Subscribe registers handlers at any time;
// registrations are replayed on every connect, so a broker that comes up after
// the forwarder still delivers events. Start waits a bounded time for the first
// connection and otherwise leaves paho retrying in the background. Close
// publishes a graceful offline status and stops all retries.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	defer client.Close()
//
//	topics := mqtt.Topics{Base: cfg.MQTT.BaseTopic}
//	_ = client.Subscribe(topics.AllEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	if err := client.Start(); errors.Is(err, mqtt.ErrConnectPending) {
//	    log.Printf("broker not reachable yet, retrying")
//	}
package mqtt
