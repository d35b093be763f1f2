package wifi

import (
	"errors"
	"testing"
	"time"
)

// testClock is a manual clock. Sleep advances it, so blocking loops run
// instantly in tests.
type testClock struct {
	t      time.Time
	sleeps int
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Sleep(d time.Duration)   { c.t = c.t.Add(d); c.sleeps++ }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type staticCreds struct{ ssid, password string }

func (s staticCreds) Credentials() (string, string) { return s.ssid, s.password }

// fakeService records Start/Stop calls into a shared log.
type fakeService struct {
	name     string
	log      *[]string
	startErr error
}

func (s *fakeService) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.log = append(*s.log, "start "+s.name)
	return nil
}

func (s *fakeService) Stop() error {
	*s.log = append(*s.log, "stop "+s.name)
	return nil
}

func newTestManager(creds Credentials) (*Manager, *FakeRadio, *testClock) {
	clock := newTestClock()
	radio := NewFakeRadio()
	if creds == nil {
		creds = staticCreds{}
	}
	m := NewManager(radio, creds, Options{Now: clock.Now, Sleep: clock.Sleep})
	return m, radio, clock
}

func TestConnectWiFiSuccess(t *testing.T) {
	m, radio, clock := newTestManager(nil)
	radio.ConnectOnBegin = true

	if !m.ConnectWiFi("net", "pw", 2*time.Second) {
		t.Fatal("expected success")
	}
	if radio.RadioMode != RadioSTA {
		t.Errorf("radio mode: got %s, want STA", radio.RadioMode)
	}
	if len(radio.Begins) != 1 || radio.Begins[0] != (Credential{SSID: "net", Password: "pw"}) {
		t.Errorf("begins: got %+v", radio.Begins)
	}
	if m.Mode() != ModeConnectedSTA {
		t.Errorf("mode: got %s, want CONNECTED", m.Mode())
	}
	if clock.sleeps != 0 {
		t.Errorf("expected no sleeps when already connected, got %d", clock.sleeps)
	}
}

func TestConnectWiFiTimeout(t *testing.T) {
	m, radio, clock := newTestManager(nil)
	start := clock.Now()

	if m.ConnectWiFi("net", "pw", 2*time.Second) {
		t.Fatal("expected failure with a radio that never connects")
	}
	elapsed := clock.Now().Sub(start)
	if elapsed < 2*time.Second {
		t.Errorf("returned after %v, want >= 2s", elapsed)
	}
	if elapsed > 2*time.Second+ConnectPollInterval {
		t.Errorf("returned after %v, want about 2s", elapsed)
	}
	if len(radio.Begins) != 1 {
		t.Errorf("expected exactly one association attempt, got %d", len(radio.Begins))
	}
	if m.Mode() != ModeDisconnected {
		t.Errorf("mode: got %s, want DISCONNECTED", m.Mode())
	}
}

func TestConnectWiFiConnectsMidway(t *testing.T) {
	clock := newTestClock()
	radio := &slowRadio{FakeRadio: NewFakeRadio(), clock: clock, connectAt: clock.Now().Add(1200 * time.Millisecond)}
	m := NewManager(radio, staticCreds{}, Options{Now: clock.Now, Sleep: clock.Sleep})

	if !m.ConnectWiFi("net", "pw", 0) {
		t.Fatal("expected success")
	}
	if clock.sleeps != 3 {
		t.Errorf("sleeps: got %d, want 3 polls of 500ms", clock.sleeps)
	}
}

// slowRadio reports connected once the clock passes connectAt.
type slowRadio struct {
	*FakeRadio
	clock     *testClock
	connectAt time.Time
}

func (r *slowRadio) Status() LinkStatus {
	if !r.clock.Now().Before(r.connectAt) {
		return LinkConnected
	}
	return LinkConnecting
}

func TestConnectWiFiBeginError(t *testing.T) {
	m, radio, _ := newTestManager(nil)
	radio.BeginError = errors.New("radio busy")

	if m.ConnectWiFi("net", "pw", time.Second) {
		t.Fatal("expected failure")
	}
}

func TestAPName(t *testing.T) {
	name, err := APName([]byte{0x24, 0x6f, 0x28, 0x01, 0xab, 0xcd})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "DataTracker-ABCD" {
		t.Errorf("got %q, want DataTracker-ABCD", name)
	}

	if _, err := APName([]byte{0x01}); err == nil {
		t.Error("expected error for short address")
	}
}

func TestStartConfigAP(t *testing.T) {
	m, radio, _ := newTestManager(nil)
	var log []string
	m.AddService(&fakeService{name: "portal", log: &log})
	m.AddService(&fakeService{name: "mdns", log: &log})

	if err := m.StartConfigAP(); err != nil {
		t.Fatalf("StartConfigAP: %v", err)
	}

	if !m.InAPMode() || m.Mode() != ModeConfigAP {
		t.Errorf("mode: got %s, want CONFIG_AP", m.Mode())
	}
	if m.APName() != "DataTracker-ABCD" {
		t.Errorf("APName: got %q", m.APName())
	}
	if !radio.APActive || radio.APSSID != "DataTracker-ABCD" {
		t.Errorf("radio AP: active=%v ssid=%q", radio.APActive, radio.APSSID)
	}
	if radio.RadioMode != RadioAPSTA {
		t.Errorf("radio mode: got %s, want AP_STA", radio.RadioMode)
	}
	if got := m.Networks(); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil cache, got %#v", got)
	}
	if len(log) != 2 || log[0] != "start portal" || log[1] != "start mdns" {
		t.Errorf("service log: %v", log)
	}

	// Idempotent.
	if err := m.StartConfigAP(); err != nil {
		t.Fatalf("second StartConfigAP: %v", err)
	}
	if len(log) != 2 {
		t.Errorf("services restarted: %v", log)
	}
}

func TestStartConfigAPServiceFailureRollsBack(t *testing.T) {
	m, radio, _ := newTestManager(nil)
	var log []string
	m.AddService(&fakeService{name: "portal", log: &log})
	m.AddService(&fakeService{name: "mdns", log: &log, startErr: errors.New("no multicast")})

	if err := m.StartConfigAP(); err == nil {
		t.Fatal("expected error")
	}
	if m.InAPMode() {
		t.Error("should not be in AP mode after failure")
	}
	if radio.APActive {
		t.Error("AP should be torn down after failure")
	}
	if len(log) != 2 || log[1] != "stop portal" {
		t.Errorf("service log: %v", log)
	}
}

func TestStartConfigAPOptionalServiceFailureKeepsAP(t *testing.T) {
	m, radio, _ := newTestManager(nil)
	var log []string
	m.AddService(&fakeService{name: "portal", log: &log})
	m.AddOptionalService(&fakeService{name: "mdns", log: &log, startErr: errors.New("no multicast")})
	m.AddService(&fakeService{name: "after", log: &log})

	if err := m.StartConfigAP(); err != nil {
		t.Fatalf("StartConfigAP: %v", err)
	}
	if m.Mode() != ModeConfigAP || !radio.APActive {
		t.Errorf("AP should stay up: mode=%s active=%v", m.Mode(), radio.APActive)
	}
	if len(log) != 2 || log[0] != "start portal" || log[1] != "start after" {
		t.Errorf("service log: %v", log)
	}

	if err := m.StopConfigAP(); err != nil {
		t.Fatalf("StopConfigAP: %v", err)
	}
	if m.Mode() != ModeDisconnected {
		t.Errorf("mode after stop: %s", m.Mode())
	}
}

func TestStartConfigAPRadioFailure(t *testing.T) {
	m, radio, _ := newTestManager(nil)
	radio.StartAPError = errors.New("unsupported")

	if err := m.StartConfigAP(); err == nil {
		t.Fatal("expected error")
	}
	if m.InAPMode() {
		t.Error("should not be in AP mode")
	}
}

func TestStopConfigAP(t *testing.T) {
	m, radio, _ := newTestManager(nil)
	var log []string
	m.AddService(&fakeService{name: "portal", log: &log})
	m.AddService(&fakeService{name: "mdns", log: &log})

	if err := m.StopConfigAP(); err != nil {
		t.Fatalf("StopConfigAP before start: %v", err)
	}

	if err := m.StartConfigAP(); err != nil {
		t.Fatalf("StartConfigAP: %v", err)
	}
	if err := m.StopConfigAP(); err != nil {
		t.Fatalf("StopConfigAP: %v", err)
	}

	want := []string{"start portal", "start mdns", "stop mdns", "stop portal"}
	if len(log) != len(want) {
		t.Fatalf("service log: got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d]: got %q, want %q", i, log[i], want[i])
		}
	}
	if radio.APActive {
		t.Error("AP still active")
	}
	if m.InAPMode() {
		t.Error("still in AP mode")
	}
}

func TestReconnectThrottle(t *testing.T) {
	m, radio, clock := newTestManager(staticCreds{ssid: "home", password: "secret"})

	// Too soon after boot.
	m.Reconnect()
	if len(radio.Begins) != 0 {
		t.Fatalf("reconnect issued %v after boot", clock.Now().Sub(m.bootTime))
	}

	clock.Advance(ReconnectInterval)
	m.Reconnect()
	if len(radio.Begins) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(radio.Begins))
	}
	if radio.Begins[0] != (Credential{SSID: "home", Password: "secret"}) {
		t.Errorf("credentials: got %+v", radio.Begins[0])
	}
	if radio.Disconnects != 1 {
		t.Errorf("expected disconnect before re-association, got %d", radio.Disconnects)
	}

	// Hammering within the window issues nothing.
	for i := 0; i < 100; i++ {
		clock.Advance(290 * time.Millisecond)
		m.Reconnect()
	}
	if len(radio.Begins) != 1 {
		t.Fatalf("attempts within 30s window: got %d, want 1", len(radio.Begins))
	}

	clock.Advance(time.Second)
	m.Reconnect()
	if len(radio.Begins) != 2 {
		t.Errorf("expected second attempt after window, got %d", len(radio.Begins))
	}
}

func TestReconnectAttemptsNeverCloserThanInterval(t *testing.T) {
	clock := newTestClock()
	radio := &recordingRadio{FakeRadio: NewFakeRadio(), clock: clock}
	m := NewManager(radio, staticCreds{ssid: "home"}, Options{Now: clock.Now, Sleep: clock.Sleep})

	for i := 0; i < 10000; i++ {
		clock.Advance(37 * time.Millisecond)
		m.Tick()
	}
	if len(radio.beginTimes) < 2 {
		t.Fatalf("expected several attempts, got %d", len(radio.beginTimes))
	}
	for i := 1; i < len(radio.beginTimes); i++ {
		if gap := radio.beginTimes[i].Sub(radio.beginTimes[i-1]); gap < ReconnectInterval {
			t.Errorf("attempts %d and %d only %v apart", i-1, i, gap)
		}
	}
}

type recordingRadio struct {
	*FakeRadio
	clock      *testClock
	beginTimes []time.Time
}

func (r *recordingRadio) Begin(ssid, password string) error {
	r.beginTimes = append(r.beginTimes, r.clock.Now())
	return r.FakeRadio.Begin(ssid, password)
}

func TestReconnectDisabledInAPMode(t *testing.T) {
	m, radio, clock := newTestManager(staticCreds{ssid: "home"})
	if err := m.StartConfigAP(); err != nil {
		t.Fatalf("StartConfigAP: %v", err)
	}

	for i := 0; i < 10; i++ {
		clock.Advance(ReconnectInterval)
		m.Reconnect()
		m.Tick()
	}
	if len(radio.Begins) != 0 {
		t.Errorf("reconnect issued in AP mode: %d", len(radio.Begins))
	}
}

func TestReconnectNoCredentials(t *testing.T) {
	m, radio, clock := newTestManager(staticCreds{})
	clock.Advance(ReconnectInterval)
	m.Reconnect()
	if len(radio.Begins) != 0 {
		t.Errorf("reconnect without SSID: %d attempts", len(radio.Begins))
	}
}

func TestTickTracksLink(t *testing.T) {
	m, radio, _ := newTestManager(nil)

	radio.Link = LinkConnected
	m.Tick()
	if m.Mode() != ModeConnectedSTA || !m.IsConnected() {
		t.Errorf("mode: got %s, want CONNECTED", m.Mode())
	}

	radio.Link = LinkDisconnected
	m.Tick()
	if m.Mode() != ModeDisconnected || m.IsConnected() {
		t.Errorf("mode: got %s, want DISCONNECTED", m.Mode())
	}

	radio.Link = LinkConnecting
	m.Tick()
	if m.Mode() != ModeConnectingSTA {
		t.Errorf("mode: got %s, want CONNECTING", m.Mode())
	}
}

func TestModeStrings(t *testing.T) {
	tests := map[Mode]string{
		ModeDisconnected:  "DISCONNECTED",
		ModeConnectingSTA: "CONNECTING",
		ModeConnectedSTA:  "CONNECTED",
		ModeConfigAP:      "CONFIG_AP",
		Mode(99):          "UNKNOWN",
	}
	for m, want := range tests {
		if m.String() != want {
			t.Errorf("Mode(%d): got %q, want %q", int(m), m.String(), want)
		}
	}
}
