// Package wifi manages the WiFi radio: station association, the
// configuration access point, asynchronous scanning and HTTPS fetches.
//
// All radio access happens from the caller's polling loop. The only
// state shared with other goroutines is the scan cache, which the
// configuration portal reads while serving requests.
package wifi

import (
	"net"
	"time"
)

// RadioMode is the operating mode of the radio hardware.
type RadioMode int

const (
	RadioOff RadioMode = iota
	RadioSTA
	RadioAP
	RadioAPSTA
)

func (m RadioMode) String() string {
	switch m {
	case RadioOff:
		return "OFF"
	case RadioSTA:
		return "STA"
	case RadioAP:
		return "AP"
	case RadioAPSTA:
		return "AP_STA"
	default:
		return "UNKNOWN"
	}
}

// LinkStatus is the station association status reported by the radio.
type LinkStatus int

const (
	LinkIdle LinkStatus = iota
	LinkConnecting
	LinkConnected
	LinkFailed
	LinkDisconnected
)

func (s LinkStatus) String() string {
	switch s {
	case LinkIdle:
		return "IDLE"
	case LinkConnecting:
		return "CONNECTING"
	case LinkConnected:
		return "CONNECTED"
	case LinkFailed:
		return "FAILED"
	case LinkDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// ScanProgress is the radio's report on an asynchronous scan.
type ScanProgress int

const (
	// ScanNone means no scan has been requested since the last ScanDelete.
	ScanNone ScanProgress = iota
	ScanRunning
	ScanFailed
	ScanDone
)

// Network is one scan result.
type Network struct {
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
}

// ScanOptions controls an asynchronous scan.
type ScanOptions struct {
	ShowHidden      bool
	DwellPerChannel time.Duration
}

// Radio is the hardware interface the Manager drives. Implementations
// must not block in any method; scans and association run in the
// background and are observed through Status and ScanResult.
type Radio interface {
	SetMode(mode RadioMode) error
	Mode() RadioMode

	// Begin starts association with the given network.
	Begin(ssid, password string) error
	Disconnect() error
	Status() LinkStatus

	HardwareAddr() (net.HardwareAddr, error)

	// StartAP brings up an open access point with the given name.
	StartAP(ssid string) error
	StopAP() error

	SetTxPower(dBm float64) error

	StartScan(opts ScanOptions) error
	// ScanResult reports progress of the last scan and, once done,
	// its results in radio order.
	ScanResult() (ScanProgress, []Network)
	// ScanDelete discards any scan results held by the radio.
	ScanDelete()
}
