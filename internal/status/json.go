package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Doneness      string       `json:"doneness"`
	State         string       `json:"state"`
	Heater        string       `json:"heater"`
	TemperatureC  *int         `json:"temperature_c"`
	Run           *RunJSON     `json:"run,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// RunJSON describes the cycle in progress.
type RunJSON struct {
	ID          string `json:"id"`
	TargetC     int    `json:"target_c"`
	DurationMs  int64  `json:"duration_ms"`
	RemainingMs int64  `json:"remaining_ms"`
	StartedAt   string `json:"started_at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Cycles     int `json:"cycles"`
	HeaterOn   int `json:"heater_on"`
	HeaterOff  int `json:"heater_off"`
	Selections int `json:"selections"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPPort     string `json:"http_port"`
	Sensor       string `json:"sensor"`
	SelectionLag bool   `json:"selection_lag"`
	HysteresisC  int    `json:"hysteresis_c"`
}

// HeaterLabel renders a heater level as ON/OFF.
func HeaterLabel(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Mode:          string(snap.Mode),
		Doneness:      string(snap.Doneness),
		State:         string(snap.Status),
		Heater:        HeaterLabel(snap.Heater),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:     snap.Counts.Cycles,
			HeaterOn:   snap.Counts.HeaterOn,
			HeaterOff:  snap.Counts.HeaterOff,
			Selections: snap.Counts.Selections,
		},
		Config: ConfigJSON{
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPPort:     snap.Config.HTTPPort,
			Sensor:       snap.Config.Sensor,
			SelectionLag: snap.Config.SelectionLag,
			HysteresisC:  snap.Config.HysteresisC,
		},
	}
	if snap.HaveTemperature {
		c := snap.TemperatureC
		inner.TemperatureC = &c
	}
	if snap.Run != nil {
		inner.Run = &RunJSON{
			ID:          snap.Run.ID,
			TargetC:     snap.Run.TargetC,
			DurationMs:  snap.Run.Duration.Milliseconds(),
			RemainingMs: snap.Remaining().Milliseconds(),
			StartedAt:   snap.Run.StartedAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
