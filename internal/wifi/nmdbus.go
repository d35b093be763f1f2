package wifi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Wifx/gonetworkmanager/v2"
	"github.com/sweeney/datatracker/internal/logging"
	"go.uber.org/zap"
)

// Connection profile names owned by the daemon.
const (
	apConnection  = "datatracker-ap"
	staConnection = "datatracker-sta"
)

const (
	activationPoll    = 250 * time.Millisecond
	activationTimeout = 30 * time.Second
	scanPoll          = 250 * time.Millisecond
)

// dbusBackend talks to NetworkManager over the system D-Bus.
type dbusBackend struct {
	iface string
	nm    gonetworkmanager.NetworkManager
	dev   gonetworkmanager.DeviceWireless
}

func dialNetworkManager(iface string) (*dbusBackend, error) {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return nil, fmt.Errorf("connect to networkmanager: %w", err)
	}
	dev, err := nm.GetDeviceByIpIface(iface)
	if err != nil {
		return nil, fmt.Errorf("find device %s: %w", iface, err)
	}
	typ, err := dev.GetPropertyDeviceType()
	if err != nil {
		return nil, fmt.Errorf("device type of %s: %w", iface, err)
	}
	if typ != gonetworkmanager.NmDeviceTypeWifi {
		return nil, fmt.Errorf("%s is not a wifi device (type %d)", iface, uint32(typ))
	}
	wdev, err := gonetworkmanager.NewDeviceWireless(dev.GetPath())
	if err != nil {
		return nil, fmt.Errorf("open wireless device %s: %w", iface, err)
	}
	return &dbusBackend{iface: iface, nm: nm, dev: wdev}, nil
}

func (b *dbusBackend) LinkState() (LinkStatus, error) {
	state, err := b.dev.GetPropertyState()
	if err != nil {
		return LinkDisconnected, fmt.Errorf("device state: %w", err)
	}
	hotspot := false
	if state == gonetworkmanager.NmDeviceStateActivated {
		if ac, err := b.dev.GetPropertyActiveConnection(); err == nil && ac != nil {
			id, err := ac.GetPropertyID()
			hotspot = err == nil && id == apConnection
		}
	}
	return linkFromDevice(state, hotspot), nil
}

// linkFromDevice maps a device state onto the radio link status. An
// activated hotspot is not a station link.
func linkFromDevice(state gonetworkmanager.NmDeviceState, hotspot bool) LinkStatus {
	switch state {
	case gonetworkmanager.NmDeviceStateActivated:
		if hotspot {
			return LinkIdle
		}
		return LinkConnected
	case gonetworkmanager.NmDeviceStatePrepare,
		gonetworkmanager.NmDeviceStateConfig,
		gonetworkmanager.NmDeviceStateNeedAuth,
		gonetworkmanager.NmDeviceStateIpConfig,
		gonetworkmanager.NmDeviceStateIpCheck,
		gonetworkmanager.NmDeviceStateSecondaries:
		return LinkConnecting
	case gonetworkmanager.NmDeviceStateFailed:
		return LinkFailed
	default:
		return LinkDisconnected
	}
}

func (b *dbusBackend) Connect(ctx context.Context, ssid, password string) error {
	if err := deleteProfiles(staConnection); err != nil {
		logging.Debug("remove old station profile", zap.Error(err))
	}
	ac, err := b.nm.AddAndActivateConnection(stationSettings(ssid, password), b.dev)
	if err != nil {
		return fmt.Errorf("activate %q: %w", ssid, err)
	}
	if err := waitActivated(ctx, ac); err != nil {
		if ctx.Err() != nil {
			_ = b.nm.DeactivateConnection(ac)
		}
		return err
	}
	return nil
}

func (b *dbusBackend) Disconnect() error {
	return b.dev.Disconnect()
}

func (b *dbusBackend) StartHotspot(ssid string) error {
	if err := deleteProfiles(apConnection); err != nil {
		logging.Debug("remove old hotspot profile", zap.Error(err))
	}
	ac, err := b.nm.AddAndActivateConnection(hotspotSettings(b.iface, ssid), b.dev)
	if err != nil {
		return fmt.Errorf("activate hotspot: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), activationTimeout)
	defer cancel()
	return waitActivated(ctx, ac)
}

// StopHotspot deletes the hotspot profile, which also deactivates it.
func (b *dbusBackend) StopHotspot() error {
	return deleteProfiles(apConnection)
}

func (b *dbusBackend) Scan(ctx context.Context, showHidden bool) ([]Network, error) {
	before, err := b.dev.GetPropertyLastScan()
	if err != nil {
		return nil, fmt.Errorf("last scan: %w", err)
	}
	if err := b.dev.RequestScan(); err != nil {
		return nil, fmt.Errorf("request scan: %w", err)
	}

	t := time.NewTicker(scanPoll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
		last, err := b.dev.GetPropertyLastScan()
		if err != nil {
			return nil, fmt.Errorf("last scan: %w", err)
		}
		if last != before {
			break
		}
	}

	aps, err := b.dev.GetAllAccessPoints()
	if err != nil {
		return nil, fmt.Errorf("list access points: %w", err)
	}
	networks := make([]Network, 0, len(aps))
	for _, ap := range aps {
		ssid, err := ap.GetPropertySSID()
		if err != nil {
			continue
		}
		if ssid == "" && !showHidden {
			continue
		}
		strength, err := ap.GetPropertyStrength()
		if err != nil {
			continue
		}
		networks = append(networks, Network{SSID: ssid, RSSI: qualityToRSSI(strength)})
	}
	return networks, nil
}

func waitActivated(ctx context.Context, ac gonetworkmanager.ActiveConnection) error {
	t := time.NewTicker(activationPoll)
	defer t.Stop()
	for {
		state, err := ac.GetPropertyState()
		if err != nil {
			return fmt.Errorf("activation state: %w", err)
		}
		switch state {
		case gonetworkmanager.NmActiveConnectionStateActivated:
			return nil
		case gonetworkmanager.NmActiveConnectionStateDeactivating,
			gonetworkmanager.NmActiveConnectionStateDeactivated:
			return errors.New("activation failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// deleteProfiles removes every saved connection with the given id.
func deleteProfiles(id string) error {
	settings, err := gonetworkmanager.NewSettings()
	if err != nil {
		return err
	}
	conns, err := settings.ListConnections()
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range conns {
		s, err := c.GetSettings()
		if err != nil {
			continue
		}
		if name, _ := s["connection"]["id"].(string); name == id {
			if err := c.Delete(); err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}

func stationSettings(ssid, password string) map[string]map[string]interface{} {
	s := map[string]map[string]interface{}{
		"connection": {
			"id":   staConnection,
			"type": "802-11-wireless",
		},
		"802-11-wireless": {
			"ssid": []byte(ssid),
			"mode": "infrastructure",
		},
	}
	if password != "" {
		s["802-11-wireless"]["security"] = "802-11-wireless-security"
		s["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      password,
		}
	}
	return s
}

func hotspotSettings(iface, ssid string) map[string]map[string]interface{} {
	return map[string]map[string]interface{}{
		"connection": {
			"id":             apConnection,
			"type":           "802-11-wireless",
			"interface-name": iface,
			"autoconnect":    false,
		},
		"802-11-wireless": {
			"ssid": []byte(ssid),
			"mode": "ap",
		},
		"ipv4": {"method": "shared"},
		"ipv6": {"method": "ignore"},
	}
}

// qualityToRSSI maps the NetworkManager signal percentage linearly onto
// -100..-50 dBm.
func qualityToRSSI(quality uint8) int {
	return int(quality)/2 - 100
}
