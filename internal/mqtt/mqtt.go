// Package mqtt publishes classified minutes to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/dokzlo13/lampd/internal/classify"
)

// DefaultTopic is the MQTT topic for minute events.
const DefaultTopic = "lampd/state"

// SystemTopic returns the topic for lifecycle events under a base topic.
func SystemTopic(topic string) string {
	return topic + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends one flushed minute to the broker.
	Publish(event MinuteEvent) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// MinuteEvent is one flushed minute and its classification.
type MinuteEvent struct {
	Timestamp time.Time
	State     classify.State
	Color     classify.Color
	Red       float64
	Yellow    float64
	Green     float64
	Current   float64
}

// SystemEvent represents a lifecycle event such as STARTUP or SHUTDOWN.
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Lamp LampPayload `json:"lamp"`
}

// LampPayload contains the minute details.
type LampPayload struct {
	Timestamp string  `json:"timestamp"`
	State     string  `json:"state"`
	Color     string  `json:"color"`
	Red       float64 `json:"red"`
	Yellow    float64 `json:"yellow"`
	Green     float64 `json:"green"`
	Current   float64 `json:"current"`
}

// FormatPayload creates the JSON payload for a minute event.
func FormatPayload(event MinuteEvent) ([]byte, error) {
	payload := Payload{
		Lamp: LampPayload{
			Timestamp: event.Timestamp.Format(time.RFC3339),
			State:     string(event.State),
			Color:     string(event.Color),
			Red:       event.Red,
			Yellow:    event.Yellow,
			Green:     event.Green,
			Current:   event.Current,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
