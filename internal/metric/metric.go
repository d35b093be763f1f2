// Package metric contains the fixed set of metric sources the display can
// show. Modules are registered at build time; there is no runtime plug-in
// mechanism.
package metric

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/datatracker/internal/config"
)

// Refresh bounds for every module.
const (
	DefaultRefresh = 300 * time.Second
	MinRefresh     = 60 * time.Second
)

// Getter performs a blocking HTTPS GET and returns the response body.
type Getter interface {
	HTTPGet(ctx context.Context, url string) ([]byte, error)
}

// Reading is one successful fetch.
type Reading struct {
	Module    string
	Label     string
	Value     float64
	Change24h float64
	Time      time.Time
}

// Format renders the reading for the display.
func (r Reading) Format() string {
	return fmt.Sprintf("$%.2f | %+.1f%%", r.Value, r.Change24h)
}

// Module is a metric source.
type Module interface {
	ID() string
	DisplayName(settings config.ModuleSettings) string
	Fetch(ctx context.Context, get Getter, settings config.ModuleSettings, now time.Time) (Reading, error)
}

// registry lists modules in cycle order.
var registry = []Module{
	bitcoinModule{},
	cryptoModule{},
}

// Modules returns the registered modules in cycle order.
func Modules() []Module {
	out := make([]Module, len(registry))
	copy(out, registry)
	return out
}

// IDs returns the registered module ids in cycle order.
func IDs() []string {
	ids := make([]string, len(registry))
	for i, m := range registry {
		ids[i] = m.ID()
	}
	return ids
}

// Lookup returns the module with the given id.
func Lookup(id string) (Module, bool) {
	for _, m := range registry {
		if m.ID() == id {
			return m, true
		}
	}
	return nil, false
}

// RefreshInterval returns the configured refresh interval, clamped to
// MinRefresh and defaulting to DefaultRefresh.
func RefreshInterval(settings config.ModuleSettings) time.Duration {
	if settings.RefreshSeconds <= 0 {
		return DefaultRefresh
	}
	d := time.Duration(settings.RefreshSeconds) * time.Second
	if d < MinRefresh {
		return MinRefresh
	}
	return d
}
