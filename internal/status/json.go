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
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Mode          string      `json:"mode"`
	SSID          string      `json:"ssid,omitempty"`
	APName        string      `json:"ap_name,omitempty"`
	ActiveModule  string      `json:"active_module"`
	Display       string      `json:"display,omitempty"`
	Metric        *MetricJSON `json:"metric,omitempty"`
	Scan          ScanJSON    `json:"scan"`
	Button        ButtonJSON  `json:"button"`
	MQTTConnected bool        `json:"mqtt_connected"`
	Version       string      `json:"version,omitempty"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
}

// MetricJSON is the JSON representation of the last fetch.
type MetricJSON struct {
	Module    string  `json:"module"`
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Change24h float64 `json:"change_24h"`
	UpdatedAt string  `json:"updated_at,omitempty"`
	OK        bool    `json:"ok"`
	Error     string  `json:"error,omitempty"`
}

// ScanJSON summarises the scan cache.
type ScanJSON struct {
	Networks int    `json:"networks"`
	Outcome  string `json:"outcome,omitempty"`
}

// ButtonJSON reports live button state.
type ButtonJSON struct {
	Pressed bool  `json:"pressed"`
	HeldMs  int64 `json:"held_ms"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := snap.Mode
	if mode == "" {
		mode = "UNKNOWN"
	}

	inner := StatusInner{
		Mode:          mode,
		SSID:          snap.SSID,
		APName:        snap.APName,
		ActiveModule:  snap.ActiveModule,
		Display:       snap.Display,
		Scan:          ScanJSON{Networks: snap.Networks, Outcome: snap.ScanOutcome},
		Button:        ButtonJSON{Pressed: snap.ButtonPressed, HeldMs: snap.PressDuration.Milliseconds()},
		MQTTConnected: snap.MQTTConnected,
		Version:       snap.Version,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
	}

	if m := snap.Metric; m != nil {
		mj := &MetricJSON{
			Module:    m.Module,
			Label:     m.Label,
			Value:     m.Value,
			Change24h: m.Change24h,
			OK:        m.OK,
			Error:     m.Error,
		}
		if !m.UpdatedAt.IsZero() {
			mj.UpdatedAt = m.UpdatedAt.UTC().Format(time.RFC3339)
		}
		inner.Metric = mj
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
