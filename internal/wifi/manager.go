package wifi

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/datatracker/internal/logging"
	"go.uber.org/zap"
)

// Mode is the connectivity mode of the device. Exactly one applies at a time.
type Mode int

const (
	ModeDisconnected Mode = iota
	ModeConnectingSTA
	ModeConnectedSTA
	ModeConfigAP
)

func (m Mode) String() string {
	switch m {
	case ModeDisconnected:
		return "DISCONNECTED"
	case ModeConnectingSTA:
		return "CONNECTING"
	case ModeConnectedSTA:
		return "CONNECTED"
	case ModeConfigAP:
		return "CONFIG_AP"
	default:
		return "UNKNOWN"
	}
}

// ScanState is the state of the asynchronous scan subsystem.
type ScanState int

const (
	ScanIdle ScanState = iota
	ScanScanning
	// ScanTimedOut is never held as the current state; it is reported by
	// LastScanOutcome when the previous scan hit the watchdog.
	ScanTimedOut
)

// ScanOutcome records how the previous scan ended.
type ScanOutcome string

const (
	OutcomeNone     ScanOutcome = ""
	OutcomeComplete ScanOutcome = "COMPLETE"
	OutcomeFailed   ScanOutcome = "FAILED"
	OutcomeTimedOut ScanOutcome = "TIMED_OUT"
)

// Timing and radio parameters.
const (
	DefaultConnectTimeout = 15 * time.Second
	ConnectPollInterval   = 500 * time.Millisecond
	ReconnectInterval     = 30 * time.Second
	BootScanDelay         = 10 * time.Second
	RescanInterval        = 30 * time.Second
	ScanTimeout           = 15 * time.Second
	ScanDwellPerChannel   = 500 * time.Millisecond
	ScanTxPowerDBm        = 19.5
	APNamePrefix          = "DataTracker-"
)

// Credentials supplies the last-known station credentials.
type Credentials interface {
	Credentials() (ssid, password string)
}

// Service is started when the access point comes up and stopped when it
// goes down (the configuration portal, the mDNS announcer).
type Service interface {
	Start() error
	Stop() error
}

// Options configures a Manager. Zero values select real time and sleep.
type Options struct {
	Now   func() time.Time
	Sleep func(time.Duration)

	// InsecureSkipVerify disables TLS certificate verification in HTTPGet.
	// Any server identity is accepted when set.
	InsecureSkipVerify bool
	// FetchTimeout bounds a whole HTTPGet. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration
}

// Manager owns the radio. All methods except Networks must be called from
// the same goroutine.
type Manager struct {
	radio Radio
	creds Credentials
	now   func() time.Time
	sleep func(time.Duration)

	bootTime time.Time
	mode     Mode
	apName   string
	services []apService

	scanState     ScanState
	scanOutcome   ScanOutcome
	scanStarted   time.Time
	lastScanTime  time.Time
	cache         ScanCache
	lastReconnect time.Time

	insecure     bool
	fetchTimeout time.Duration
}

// NewManager creates a Manager. Boot time is taken from the clock at
// construction; the first reconnect is allowed ReconnectInterval later.
func NewManager(radio Radio, creds Credentials, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	boot := opts.Now()
	return &Manager{
		radio:         radio,
		creds:         creds,
		now:           opts.Now,
		sleep:         opts.Sleep,
		bootTime:      boot,
		lastScanTime:  boot,
		lastReconnect: boot,
		insecure:      opts.InsecureSkipVerify,
		fetchTimeout:  opts.FetchTimeout,
	}
}

type apService struct {
	Service
	optional bool
}

// AddService registers a service to run while the access point is up.
// Services start in registration order and stop in reverse. If a service
// fails to start, the access point is torn down.
func (m *Manager) AddService(s Service) {
	m.services = append(m.services, apService{Service: s})
}

// AddOptionalService registers a service whose start failure is logged
// and otherwise ignored, leaving the access point up.
func (m *Manager) AddOptionalService(s Service) {
	m.services = append(m.services, apService{Service: s, optional: true})
}

// ConnectWiFi associates in station mode and waits up to timeout for the
// link to come up. It blocks and must only be called at boot, before the
// polling loop starts. A zero timeout selects DefaultConnectTimeout.
func (m *Manager) ConnectWiFi(ssid, password string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	logging.Info("connecting to wifi", zap.String("ssid", ssid), zap.Duration("timeout", timeout))

	if err := m.radio.SetMode(RadioSTA); err != nil {
		logging.Warn("set station mode failed", zap.Error(err))
		return false
	}
	if err := m.radio.Begin(ssid, password); err != nil {
		logging.Warn("begin association failed", zap.Error(err))
		m.mode = ModeDisconnected
		return false
	}
	m.mode = ModeConnectingSTA

	start := m.now()
	for m.radio.Status() != LinkConnected && m.now().Sub(start) < timeout {
		m.sleep(ConnectPollInterval)
	}

	if m.radio.Status() == LinkConnected {
		logging.Info("wifi connected", zap.String("ssid", ssid), zap.Duration("elapsed", m.now().Sub(start)))
		m.mode = ModeConnectedSTA
		return true
	}

	logging.Warn("wifi connection failed", zap.String("ssid", ssid), zap.Duration("elapsed", m.now().Sub(start)))
	m.mode = ModeDisconnected
	return false
}

// StartConfigAP brings up the configuration access point and its services.
// The radio stays in AP+STA so scans keep working.
func (m *Manager) StartConfigAP() error {
	if m.mode == ModeConfigAP {
		return nil
	}

	mac, err := m.radio.HardwareAddr()
	if err != nil {
		return fmt.Errorf("read hardware address: %w", err)
	}
	name, err := APName(mac)
	if err != nil {
		return err
	}

	logging.Info("starting access point", zap.String("ap", name))

	if err := m.radio.SetMode(RadioAP); err != nil {
		return fmt.Errorf("set ap mode: %w", err)
	}
	if err := m.radio.StartAP(name); err != nil {
		return fmt.Errorf("start ap: %w", err)
	}
	if err := m.radio.SetMode(RadioAPSTA); err != nil {
		_ = m.radio.StopAP()
		return fmt.Errorf("set ap+sta mode: %w", err)
	}

	// Services read the name on Start.
	m.apName = name
	for i, s := range m.services {
		if err := s.Start(); err != nil {
			if s.optional {
				logging.Warn("optional ap service failed to start", zap.Error(err))
				continue
			}
			for j := i - 1; j >= 0; j-- {
				_ = m.services[j].Stop()
			}
			_ = m.radio.StopAP()
			return fmt.Errorf("start ap service: %w", err)
		}
	}

	m.cache.reset()
	m.scanState = ScanIdle
	m.scanOutcome = OutcomeNone
	m.lastScanTime = m.now()
	m.mode = ModeConfigAP

	logging.Info("access point ready", zap.String("ap", name))
	return nil
}

// StopConfigAP stops the AP services and disables the access point.
func (m *Manager) StopConfigAP() error {
	if m.mode != ModeConfigAP {
		return nil
	}

	var errs []error
	for i := len(m.services) - 1; i >= 0; i-- {
		if err := m.services[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.radio.StopAP(); err != nil {
		errs = append(errs, fmt.Errorf("stop ap: %w", err))
	}
	if m.scanState == ScanScanning {
		m.radio.ScanDelete()
		m.scanState = ScanIdle
	}
	m.mode = ModeDisconnected

	logging.Info("access point stopped", zap.String("ap", m.apName))
	return errors.Join(errs...)
}

// Tick advances the connectivity state machine. It never blocks.
func (m *Manager) Tick() {
	if m.mode == ModeConfigAP {
		m.updateScan(m.now())
		return
	}

	switch m.radio.Status() {
	case LinkConnected:
		if m.mode != ModeConnectedSTA {
			logging.Info("wifi link up")
		}
		m.mode = ModeConnectedSTA
	case LinkConnecting:
		m.mode = ModeConnectingSTA
	default:
		if m.mode == ModeConnectedSTA {
			logging.Warn("wifi link lost")
		}
		m.mode = ModeDisconnected
	}

	if m.mode != ModeConnectedSTA {
		m.Reconnect()
	}
}

// Reconnect re-issues association with the stored credentials without
// waiting for the result. It does nothing in AP mode, when the previous
// attempt was less than ReconnectInterval ago, or when no SSID is stored.
func (m *Manager) Reconnect() {
	if m.mode == ModeConfigAP {
		return
	}
	now := m.now()
	if now.Sub(m.lastReconnect) < ReconnectInterval {
		return
	}
	m.lastReconnect = now

	if m.creds == nil {
		return
	}
	ssid, password := m.creds.Credentials()
	if ssid == "" {
		return
	}

	logging.Info("reconnecting to wifi", zap.String("ssid", ssid))
	if err := m.radio.Disconnect(); err != nil {
		logging.Debug("disconnect before reconnect", zap.Error(err))
	}
	if err := m.radio.Begin(ssid, password); err != nil {
		logging.Warn("reconnect failed", zap.Error(err))
		return
	}
	m.mode = ModeConnectingSTA
}

// IsConnected reports whether the station link is up.
func (m *Manager) IsConnected() bool {
	return m.radio.Status() == LinkConnected
}

// Mode returns the current connectivity mode.
func (m *Manager) Mode() Mode { return m.mode }

// InAPMode reports whether the configuration access point is up.
func (m *Manager) InAPMode() bool { return m.mode == ModeConfigAP }

// APName returns the access point name, empty until StartConfigAP.
func (m *Manager) APName() string { return m.apName }

// ScanState returns the scan subsystem state.
func (m *Manager) ScanState() ScanState { return m.scanState }

// LastScanOutcome reports how the previous scan ended.
func (m *Manager) LastScanOutcome() ScanOutcome { return m.scanOutcome }

// Networks returns the cached scan results. Safe for concurrent use.
func (m *Manager) Networks() []Network { return m.cache.Networks() }

// Cache exposes the scan cache for readers on other goroutines.
func (m *Manager) Cache() *ScanCache { return &m.cache }

// APName derives the access point name from the last two bytes of the
// hardware address.
func APName(mac []byte) (string, error) {
	if len(mac) < 2 {
		return "", fmt.Errorf("hardware address too short: %d bytes", len(mac))
	}
	return fmt.Sprintf("%s%02X%02X", APNamePrefix, mac[len(mac)-2], mac[len(mac)-1]), nil
}
