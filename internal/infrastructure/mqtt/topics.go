package mqtt

import "fmt"

// Topic prefixes for the sensord MQTT namespace.
//
// Devices publish readings to sensord/ingest/{device_id}; the service
// subscribes with a wildcard and feeds every message through the same
// ingest pipeline as the HTTP endpoint.
const (
	// TopicPrefix is the base for all sensord topics.
	TopicPrefix = "sensord"

	// TopicPrefixIngest is the base for device reading submissions.
	TopicPrefixIngest = "sensord/ingest"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "sensord/system"
)

// Topics provides builders for sensord MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	feed := topics.AllIngest()
//	// Returns: "sensord/ingest/#"
type Topics struct{}

// Ingest returns the submission topic for a single device.
//
// Example: sensord/ingest/ESP32-001
func (Topics) Ingest(deviceID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixIngest, deviceID)
}

// AllIngest returns a pattern matching every device submission topic.
//
// Pattern: sensord/ingest/#
func (Topics) AllIngest() string {
	return fmt.Sprintf("%s/#", TopicPrefixIngest)
}

// SystemStatus returns the collector status topic.
//
// Carries retained online/offline payloads, including the LWT published
// by the broker on an unexpected disconnect.
//
// Example: sensord/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
