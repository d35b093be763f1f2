// Package mqtt publishes button events, metric readings and lifecycle
// events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/datatracker/internal/button"
	"github.com/sweeney/datatracker/internal/metric"
)

// DefaultTopicPrefix is used when the config leaves topic_prefix empty.
const DefaultTopicPrefix = "datatracker"

// Topics holds the three topics derived from a prefix.
type Topics struct {
	Events  string
	Metrics string
	System  string
}

// NewTopics derives topics from prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events:  prefix + "/events",
		Metrics: prefix + "/metrics",
		System:  prefix + "/system",
	}
}

// Publisher publishes device events to MQTT.
type Publisher interface {
	// PublishButton sends a classified button event.
	// Returns error if publishing fails (should not crash the process).
	PublishButton(event ButtonEvent) error

	// PublishReading sends the latest metric reading, retained.
	PublishReading(r metric.Reading) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ButtonEvent is a classified press with the module active at the time.
type ButtonEvent struct {
	Timestamp time.Time
	Event     button.Event
	Module    string
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RESTART", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "factory_reset"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ButtonPayload is the MQTT message payload for button events.
type ButtonPayload struct {
	Button ButtonPayloadInner `json:"button"`
}

// ButtonPayloadInner contains the button event details.
type ButtonPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Module    string `json:"module,omitempty"`
}

// FormatButtonPayload creates the JSON payload for a button event.
func FormatButtonPayload(event ButtonEvent) ([]byte, error) {
	return json.Marshal(ButtonPayload{
		Button: ButtonPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event.String(),
			Module:    event.Module,
		},
	})
}

// ReadingPayload is the MQTT message payload for metric readings.
type ReadingPayload struct {
	Metric ReadingPayloadInner `json:"metric"`
}

// ReadingPayloadInner contains the reading details.
type ReadingPayloadInner struct {
	Timestamp string  `json:"timestamp"`
	Module    string  `json:"module"`
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Change24h float64 `json:"change_24h"`
	Display   string  `json:"display"`
}

// FormatReadingPayload creates the JSON payload for a metric reading.
func FormatReadingPayload(r metric.Reading) ([]byte, error) {
	return json.Marshal(ReadingPayload{
		Metric: ReadingPayloadInner{
			Timestamp: r.Time.UTC().Format(time.RFC3339),
			Module:    r.Module,
			Label:     r.Label,
			Value:     r.Value,
			Change24h: r.Change24h,
			Display:   r.Format(),
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for the OFFLINE will message and any event published without a
// status snapshot in RawPayload.
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
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
