package wifi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sweeney/datatracker/internal/logging"
	"go.uber.org/zap"
)

// DefaultInterface is the wireless interface on a Raspberry Pi.
const DefaultInterface = "wlan0"

const (
	// statusRefreshInterval limits how often Status asks NetworkManager
	// for the device state.
	statusRefreshInterval = time.Second

	associateTimeout = 30 * time.Second
	scanWaitTimeout  = 20 * time.Second
	commandTimeout   = 10 * time.Second
)

// nmBackend is the NetworkManager surface NMRadio drives. Every method may
// block; NMRadio only calls them from background goroutines.
type nmBackend interface {
	LinkState() (LinkStatus, error)
	// Connect activates a station profile and waits until it is up, fails,
	// or ctx is done. A cancelled attempt is deactivated.
	Connect(ctx context.Context, ssid, password string) error
	Disconnect() error
	StartHotspot(ssid string) error
	StopHotspot() error
	// Scan requests a fresh scan and waits for NetworkManager to report it.
	Scan(ctx context.Context, showHidden bool) ([]Network, error)
}

// runFunc executes a command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NMRadio drives a WiFi interface through NetworkManager.
//
// No method blocks. Association, AP changes and disconnects are queued and
// run one at a time on background goroutines; scans and status queries run
// on their own goroutines. Results land under mu and are read by Status and
// ScanResult.
type NMRadio struct {
	iface   string
	backend nmBackend
	run     runFunc
	now     func() time.Time

	mu          sync.Mutex
	mode        RadioMode
	status      LinkStatus
	statusAt    time.Time
	statusSeq   int
	refreshing  bool
	connecting  bool
	assocGen    int
	assocCancel context.CancelFunc
	tail        chan struct{}

	txPower      float64
	scanProgress ScanProgress
	scanResults  []Network
	scanGen      int
	scanCancel   context.CancelFunc
}

// NewNMRadio connects to NetworkManager on the system bus and binds the
// named wireless interface.
func NewNMRadio(iface string) (*NMRadio, error) {
	b, err := dialNetworkManager(iface)
	if err != nil {
		return nil, err
	}
	return newNMRadio(b, iface), nil
}

func newNMRadio(b nmBackend, iface string) *NMRadio {
	return &NMRadio{iface: iface, backend: b, run: execRun, now: time.Now}
}

// queue runs op after every previously queued op has returned.
// Caller holds mu.
func (r *NMRadio) queue(op func()) {
	prev := r.tail
	done := make(chan struct{})
	r.tail = done
	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		op()
	}()
}

// setStatusLocked records a status known from an operation result. A
// background refresh started earlier is discarded. Caller holds mu.
func (r *NMRadio) setStatusLocked(s LinkStatus) {
	r.status = s
	r.statusAt = r.now()
	r.statusSeq++
}

// cancelAssocLocked abandons any association in flight. Caller holds mu.
func (r *NMRadio) cancelAssocLocked() {
	if r.assocCancel != nil {
		r.assocCancel()
		r.assocCancel = nil
	}
	r.assocGen++
	if r.connecting {
		r.connecting = false
		r.setStatusLocked(LinkDisconnected)
	}
}

// SetMode records the requested mode. NetworkManager runs AP and station
// profiles without an explicit mode switch; entering AP or off mode
// abandons a pending association.
func (r *NMRadio) SetMode(mode RadioMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	if mode == RadioAP || mode == RadioOff {
		r.cancelAssocLocked()
	}
	return nil
}

func (r *NMRadio) Mode() RadioMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Begin queues association with the given network, replacing any
// association still in flight.
func (r *NMRadio) Begin(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelAssocLocked()
	ctx, cancel := context.WithTimeout(context.Background(), associateTimeout)
	gen := r.assocGen
	r.assocCancel = cancel
	r.connecting = true
	r.setStatusLocked(LinkConnecting)

	r.queue(func() {
		defer cancel()
		err := r.backend.Connect(ctx, ssid, password)

		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.assocGen {
			return
		}
		r.connecting = false
		r.assocCancel = nil
		if err != nil {
			logging.Debug("station activation failed", zap.String("ssid", ssid), zap.Error(err))
			r.setStatusLocked(LinkFailed)
			return
		}
		r.setStatusLocked(LinkConnected)
	})
	return nil
}

// Disconnect abandons any pending association and queues a device
// disconnect.
func (r *NMRadio) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelAssocLocked()
	r.setStatusLocked(LinkDisconnected)
	r.queue(func() {
		if err := r.backend.Disconnect(); err != nil {
			logging.Debug("device disconnect failed", zap.Error(err))
		}
	})
	return nil
}

// Status returns the last known link status. A refresh from
// NetworkManager is started in the background at most once per
// statusRefreshInterval.
func (r *NMRadio) Status() LinkStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.refreshing && r.now().Sub(r.statusAt) >= statusRefreshInterval {
		r.refreshing = true
		go r.refreshStatus(r.statusSeq)
	}
	return r.status
}

func (r *NMRadio) refreshStatus(seq int) {
	s, err := r.backend.LinkState()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshing = false
	r.statusAt = r.now()
	if err != nil {
		logging.Debug("device state query failed", zap.Error(err))
		return
	}
	// A state read before the latest operation result is stale.
	if r.connecting || seq != r.statusSeq {
		return
	}
	r.status = s
}

func (r *NMRadio) HardwareAddr() (net.HardwareAddr, error) {
	ifi, err := net.InterfaceByName(r.iface)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", r.iface, err)
	}
	return ifi.HardwareAddr, nil
}

// StartAP abandons any pending association and queues activation of an
// open shared-IPv4 hotspot. Activation failures are logged.
func (r *NMRadio) StartAP(ssid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelAssocLocked()
	r.queue(func() {
		if err := r.backend.StartHotspot(ssid); err != nil {
			logging.Warn("hotspot activation failed", zap.String("ssid", ssid), zap.Error(err))
		}
	})
	return nil
}

// StopAP queues removal of the hotspot profile.
func (r *NMRadio) StopAP() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queue(func() {
		if err := r.backend.StopHotspot(); err != nil {
			logging.Warn("hotspot removal failed", zap.Error(err))
		}
	})
	return nil
}

// SetTxPower records the transmit power. It is applied through iw when the
// next scan starts.
func (r *NMRadio) SetTxPower(dBm float64) error {
	r.mu.Lock()
	r.txPower = dBm
	r.mu.Unlock()
	return nil
}

func (r *NMRadio) applyTxPower(ctx context.Context, dBm float64) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	mbm := strconv.Itoa(int(dBm * 100))
	if out, err := r.run(ctx, "iw", "dev", r.iface, "set", "txpower", "fixed", mbm); err != nil {
		logging.Debug("iw set txpower failed", zap.Error(err), zap.String("output", strings.TrimSpace(string(out))))
	}
}

// StartScan starts a scan in the background. NetworkManager does not
// expose per-channel dwell, so DwellPerChannel is ignored.
func (r *NMRadio) StartScan(opts ScanOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanProgress == ScanRunning {
		return errors.New("scan already running")
	}

	r.scanGen++
	gen := r.scanGen
	ctx, cancel := context.WithTimeout(context.Background(), scanWaitTimeout)
	r.scanCancel = cancel
	r.scanProgress = ScanRunning
	r.scanResults = nil
	txPower := r.txPower

	go func() {
		defer cancel()
		if txPower > 0 {
			r.applyTxPower(ctx, txPower)
		}
		networks, err := r.backend.Scan(ctx, opts.ShowHidden)

		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.scanGen {
			return
		}
		r.scanCancel = nil
		if err != nil {
			logging.Debug("networkmanager scan failed", zap.Error(err))
			r.scanProgress = ScanFailed
			return
		}
		r.scanResults = networks
		r.scanProgress = ScanDone
	}()
	return nil
}

func (r *NMRadio) ScanResult() (ScanProgress, []Network) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanProgress != ScanDone {
		return r.scanProgress, nil
	}
	out := make([]Network, len(r.scanResults))
	copy(out, r.scanResults)
	return r.scanProgress, out
}

// ScanDelete discards results and cancels a scan still running.
func (r *NMRadio) ScanDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanCancel != nil {
		r.scanCancel()
		r.scanCancel = nil
	}
	r.scanGen++
	r.scanProgress = ScanNone
	r.scanResults = nil
}
