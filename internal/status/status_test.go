package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewTracker(t *testing.T) {
	tr := NewTracker(start, "1.2.0")

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Version != "1.2.0" {
		t.Errorf("Version: got %q", snap.Version)
	}
	if snap.Metric != nil {
		t.Error("expected nil Metric initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestSetConnectivity(t *testing.T) {
	tr := NewTracker(start, "")
	tr.SetConnectivity(Connectivity{Mode: "CONFIG_AP", APName: "DataTracker-ABCD", Networks: 4, ScanOutcome: "COMPLETE"})

	snap := tr.Snapshot()
	if snap.Mode != "CONFIG_AP" || snap.APName != "DataTracker-ABCD" {
		t.Errorf("mode/ap: got %q %q", snap.Mode, snap.APName)
	}
	if snap.Networks != 4 || snap.ScanOutcome != "COMPLETE" {
		t.Errorf("scan: got %d %q", snap.Networks, snap.ScanOutcome)
	}
}

func TestSetButtonAndModule(t *testing.T) {
	tr := NewTracker(start, "")
	tr.SetButton(true, 1500*time.Millisecond)
	tr.SetActiveModule("ethereum")
	tr.SetDisplay("Ethereum\n$3000.00 | +1.0%")

	snap := tr.Snapshot()
	if !snap.ButtonPressed || snap.PressDuration != 1500*time.Millisecond {
		t.Errorf("button: got %v %v", snap.ButtonPressed, snap.PressDuration)
	}
	if snap.ActiveModule != "ethereum" {
		t.Errorf("ActiveModule: got %q", snap.ActiveModule)
	}
	if snap.Display == "" {
		t.Error("expected Display to be set")
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(start, "")

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, "")

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, "")
	tr.SetMetric(MetricInfo{Module: "bitcoin", Value: 100, OK: true})

	snap1 := tr.Snapshot()
	snap1.Metric.Value = 1

	tr.SetConnectivity(Connectivity{Mode: "CONNECTED"})

	snap2 := tr.Snapshot()
	if snap2.Metric.Value != 100 {
		t.Error("snapshot metric should be a copy")
	}
	if snap1.Mode != "" {
		t.Error("snapshot should be a copy; Mode was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	updated := start.Add(10 * time.Minute)
	snap := Snapshot{
		Mode:          "CONNECTED",
		SSID:          "HomeNet",
		ActiveModule:  "bitcoin",
		Metric:        &MetricInfo{Module: "bitcoin", Label: "BTC/USD", Value: 42000.5, Change24h: -1.2, UpdatedAt: updated, OK: true},
		Networks:      0,
		PressDuration: 250 * time.Millisecond,
		ButtonPressed: true,
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Mode != "CONNECTED" || s.SSID != "HomeNet" {
		t.Errorf("mode/ssid: got %q %q", s.Mode, s.SSID)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	if s.Metric == nil || s.Metric.Value != 42000.5 || s.Metric.UpdatedAt != "2026-01-01T00:10:00Z" {
		t.Errorf("metric: got %+v", s.Metric)
	}
	if !s.Button.Pressed || s.Button.HeldMs != 250 {
		t.Errorf("button: got %+v", s.Button)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected no event/reason for web format, got %q %q", s.Event, s.Reason)
	}
}

func TestFormatJSONUnknownMode(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Mode != "UNKNOWN" {
		t.Errorf("Mode: got %q, want UNKNOWN", parsed.Status.Mode)
	}
	if parsed.Status.Metric != nil {
		t.Error("metric should be omitted before the first fetch")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Mode:      "CONFIG_AP",
		APName:    "DataTracker-ABCD",
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
	}

	data := FormatStatusEvent(snap, "RESTART", "factory_reset")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "RESTART" || parsed.Status.Reason != "factory_reset" {
		t.Errorf("event/reason: got %q %q", parsed.Status.Event, parsed.Status.Reason)
	}
	if parsed.Status.APName != "DataTracker-ABCD" {
		t.Errorf("APName: got %q", parsed.Status.APName)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), "")
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.SetConnectivity(Connectivity{Mode: "CONNECTED", Networks: i})
			tr.SetMetric(MetricInfo{Value: float64(i)})
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = FormatJSON(tr.Snapshot())
		}
	}()

	wg.Wait()
}
