// Package discovery advertises the configuration portal over mDNS so it can
// be found as <ap-name>.local while the access point is up.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/sweeney/datatracker/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type for the portal.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultPort is used when the portal address has no parsable port.
	DefaultPort = 80
)

// registration is a live advertisement.
type registration interface {
	Shutdown()
}

// registerFunc matches zeroconf.Register.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces)
}

// Announcer registers the portal while started.
type Announcer struct {
	instance func() string
	port     int
	text     []string
	register registerFunc

	mu  sync.Mutex
	reg registration
}

// NewAnnouncer advertises the portal listening on addr. The instance name is
// read at Start, since the AP name is only known once the radio is up.
func NewAnnouncer(instance func() string, addr string, text ...string) *Announcer {
	return &Announcer{
		instance: instance,
		port:     PortFromAddr(addr),
		text:     text,
		register: zeroconfRegister,
	}
}

// PortFromAddr extracts the port of a listen address such as ":80".
func PortFromAddr(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return DefaultPort
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 {
		return DefaultPort
	}
	return port
}

// Start registers the service. Calling Start twice is a no-op.
func (a *Announcer) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reg != nil {
		return nil
	}

	name := a.instance()
	reg, err := a.register(name, ServiceType, ServiceDomain, a.port, a.text, nil)
	if err != nil {
		return fmt.Errorf("mdns register %s: %w", name, err)
	}
	a.reg = reg
	logging.Info("mdns announcing portal", zap.String("instance", name), zap.Int("port", a.port))
	return nil
}

// Stop withdraws the advertisement.
func (a *Announcer) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reg == nil {
		return nil
	}
	a.reg.Shutdown()
	a.reg = nil
	return nil
}
