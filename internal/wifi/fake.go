package wifi

import (
	"errors"
	"net"
)

// Credential is one recorded Begin call.
type Credential struct {
	SSID     string
	Password string
}

// FakeRadio is a scriptable Radio for tests. Tests set Link, Progress and
// Results directly to simulate the hardware.
type FakeRadio struct {
	RadioMode RadioMode
	Link      LinkStatus
	MAC       net.HardwareAddr

	// ConnectOnBegin makes Begin report the link as connected immediately.
	ConnectOnBegin bool

	APActive bool
	APSSID   string
	TxPower  float64

	Progress ScanProgress
	Results  []Network

	// Recorded calls.
	ModeChanges []RadioMode
	Begins      []Credential
	Disconnects int
	ScanStarts  int
	ScanOpts    ScanOptions
	ScanDeletes int

	// Injected errors.
	BeginError     error
	StartAPError   error
	StartScanError error
	MACError       error
}

// NewFakeRadio returns a powered-off radio with a fixed MAC.
func NewFakeRadio() *FakeRadio {
	return &FakeRadio{
		MAC: net.HardwareAddr{0x24, 0x6f, 0x28, 0x01, 0xab, 0xcd},
	}
}

func (f *FakeRadio) SetMode(mode RadioMode) error {
	f.RadioMode = mode
	f.ModeChanges = append(f.ModeChanges, mode)
	return nil
}

func (f *FakeRadio) Mode() RadioMode { return f.RadioMode }

func (f *FakeRadio) Begin(ssid, password string) error {
	if f.BeginError != nil {
		return f.BeginError
	}
	f.Begins = append(f.Begins, Credential{SSID: ssid, Password: password})
	if f.ConnectOnBegin {
		f.Link = LinkConnected
	} else {
		f.Link = LinkConnecting
	}
	return nil
}

func (f *FakeRadio) Disconnect() error {
	f.Disconnects++
	f.Link = LinkDisconnected
	return nil
}

func (f *FakeRadio) Status() LinkStatus { return f.Link }

func (f *FakeRadio) HardwareAddr() (net.HardwareAddr, error) {
	if f.MACError != nil {
		return nil, f.MACError
	}
	return f.MAC, nil
}

func (f *FakeRadio) StartAP(ssid string) error {
	if f.StartAPError != nil {
		return f.StartAPError
	}
	f.APActive = true
	f.APSSID = ssid
	return nil
}

func (f *FakeRadio) StopAP() error {
	f.APActive = false
	return nil
}

func (f *FakeRadio) SetTxPower(dBm float64) error {
	f.TxPower = dBm
	return nil
}

func (f *FakeRadio) StartScan(opts ScanOptions) error {
	if f.StartScanError != nil {
		return f.StartScanError
	}
	if f.Progress == ScanRunning {
		return errors.New("scan already running")
	}
	f.ScanStarts++
	f.ScanOpts = opts
	f.Progress = ScanRunning
	return nil
}

func (f *FakeRadio) ScanResult() (ScanProgress, []Network) {
	if f.Progress != ScanDone {
		return f.Progress, nil
	}
	return f.Progress, f.Results
}

func (f *FakeRadio) ScanDelete() {
	f.ScanDeletes++
	f.Progress = ScanNone
	f.Results = nil
}

// Complete finishes a running scan with the given results.
func (f *FakeRadio) Complete(results ...Network) {
	f.Progress = ScanDone
	f.Results = results
}
