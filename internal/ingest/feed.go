package ingest

import (
	"context"

	"github.com/quietlane/sensord/internal/infrastructure/mqtt"
)

// feedSource tags broker-fed submissions in results and audit entries.
const feedSource = "mqtt"

// Broker is the subset of the MQTT client the feed uses.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Feed bridges broker submissions into the ingest pipeline.
//
// Sensors publish the same JSON document they would POST to the HTTP
// endpoint, with the API key carried in an api_key payload field instead
// of a header. Every message traverses the full pipeline, so broker
// submissions get the same auth, validation, and audit trail.
type Feed struct {
	pipeline *Pipeline
	topic    string
	qos      byte
}

// NewFeed constructs a broker feed for the given pipeline.
// An empty topic subscribes to the full ingest wildcard.
func NewFeed(pipeline *Pipeline, topic string, qos byte) *Feed {
	if topic == "" {
		topic = mqtt.Topics{}.AllIngest()
	}
	return &Feed{
		pipeline: pipeline,
		topic:    topic,
		qos:      qos,
	}
}

// Topic returns the subscription topic the feed was configured with.
func (f *Feed) Topic() string {
	return f.topic
}

// Start subscribes the feed's handler on the broker.
func (f *Feed) Start(broker Broker) error {
	return broker.Subscribe(f.topic, f.qos, f.Handle)
}

// Handle processes a single broker message.
//
// The credential is pulled out of the payload before submission so the
// pipeline checks it ahead of parsing, exactly as it does for the HTTP
// header. Errors propagate to the MQTT wrapper, which logs them; a bad
// reading never disturbs the subscription.
func (f *Feed) Handle(topic string, payload []byte) error {
	key, present := ExtractAPIKey(payload)

	_, err := f.pipeline.Submit(context.Background(), Request{
		Body:          payload,
		APIKey:        key,
		APIKeyPresent: present,
		ClientAddr:    feedSource + ":" + topic,
		UserAgent:     feedSource,
		Source:        feedSource,
	})
	return err
}
