// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/oven-controller/internal/logic"
)

// Topic is the MQTT topic for oven events.
const Topic = "kitchen/oven/controller/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "kitchen/oven/controller/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an oven event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Oven OvenPayload `json:"oven"`
}

// OvenPayload contains the oven event details.
type OvenPayload struct {
	Timestamp    string `json:"timestamp"`
	Event        string `json:"event"`
	Mode         string `json:"mode"`
	Doneness     string `json:"doneness"`
	State        string `json:"state"`
	Heater       string `json:"heater"`
	TemperatureC *int   `json:"temperature_c,omitempty"`
	TargetC      int    `json:"target_c,omitempty"`
	RunID        string `json:"run_id,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
}

// FormatPayload creates the JSON payload for an oven event.
// Temperature is only present on TEMPERATURE events; run fields only
// while a cycle is attached to the event.
func FormatPayload(event logic.Event) ([]byte, error) {
	heater := "OFF"
	if event.Heater {
		heater = "ON"
	}
	p := OvenPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Mode:      string(event.Mode),
		Doneness:  string(event.Doneness),
		State:     string(event.Status),
		Heater:    heater,
	}
	if event.Type == logic.EventTemperature {
		c := event.TemperatureC
		p.TemperatureC = &c
	}
	if event.Run != nil {
		p.TargetC = event.Run.TargetC
		p.RunID = event.Run.ID
		p.DurationMs = event.Run.Duration.Milliseconds()
	}
	return json.Marshal(Payload{Oven: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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
