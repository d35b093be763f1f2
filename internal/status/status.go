// Package status provides a thread-safe status tracker for the device.
// The polling loop writes it; the portal and MQTT heartbeat read it.
package status

import (
	"sync"
	"time"
)

// MetricInfo is the last fetch result of the active module.
type MetricInfo struct {
	Module    string
	Label     string
	Value     float64
	Change24h float64
	UpdatedAt time.Time
	OK        bool
	Error     string
}

// Snapshot is a point-in-time view of device state.
// Safe to use after the lock is released.
type Snapshot struct {
	Mode          string
	SSID          string
	APName        string
	ActiveModule  string
	Display       string
	Metric        *MetricInfo
	Networks      int
	ScanOutcome   string
	ButtonPressed bool
	PressDuration time.Duration
	MQTTConnected bool
	Version       string
	StartTime     time.Time
	Now           time.Time
}

// Uptime returns the duration since the device started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Connectivity is the per-tick connectivity view.
type Connectivity struct {
	Mode        string
	SSID        string
	APName      string
	Networks    int
	ScanOutcome string
}

// Tracker holds mutable device state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and version.
func NewTracker(startTime time.Time, version string) *Tracker {
	return &Tracker{
		snap: Snapshot{StartTime: startTime, Version: version},
		now:  time.Now,
	}
}

// SetConnectivity records the connectivity state. Called every tick.
func (t *Tracker) SetConnectivity(c Connectivity) {
	t.mu.Lock()
	t.snap.Mode = c.Mode
	t.snap.SSID = c.SSID
	t.snap.APName = c.APName
	t.snap.Networks = c.Networks
	t.snap.ScanOutcome = c.ScanOutcome
	t.mu.Unlock()
}

// SetButton records live button state for progress feedback.
func (t *Tracker) SetButton(pressed bool, held time.Duration) {
	t.mu.Lock()
	t.snap.ButtonPressed = pressed
	t.snap.PressDuration = held
	t.mu.Unlock()
}

// SetActiveModule records the module currently shown.
func (t *Tracker) SetActiveModule(id string) {
	t.mu.Lock()
	t.snap.ActiveModule = id
	t.mu.Unlock()
}

// SetMetric records the latest fetch result.
func (t *Tracker) SetMetric(m MetricInfo) {
	t.mu.Lock()
	t.snap.Metric = &m
	t.mu.Unlock()
}

// SetDisplay records the text currently on the display.
func (t *Tracker) SetDisplay(text string) {
	t.mu.Lock()
	t.snap.Display = text
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the device state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Metric != nil {
		m := *s.Metric
		s.Metric = &m
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
