// Package mqtt provides MQTT client connectivity for the broker-fed
// ingest path.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Sensors that live on flaky links or behind NAT publish readings to the
// broker instead of calling the HTTP API; the service subscribes to the
// ingest wildcard and every message traverses the same pipeline as an
// HTTP submission, with the same auth, validation, and audit trail.
//
//	Sensors ─▶ MQTT Broker ─▶ sensord ingest pipeline
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all device submissions
//	err = client.Subscribe(mqtt.Topics{}.AllIngest(), 1,
//	    func(topic string, payload []byte) error {
//	        return feed.Handle(topic, payload)
//	    })
//
// # Error Handling
//
// A disabled feed is signalled with ErrDisabled so startup can carry on
// without it. Handler panics are recovered and logged; handler errors
// are logged but never block message acknowledgment.
package mqtt
