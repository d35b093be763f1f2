package wifi

import "sync"

// MaxScanResults caps the number of networks kept in the cache.
const MaxScanResults = 20

// ScanCache holds the most recent completed scan. It is replaced wholesale
// or reset to empty, never partially updated.
type ScanCache struct {
	mu       sync.RWMutex
	networks []Network
}

// Networks returns a copy of the cached networks. The result is never nil
// so it encodes as a JSON array.
func (c *ScanCache) Networks() []Network {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Network, len(c.networks))
	copy(out, c.networks)
	return out
}

// Len returns the number of cached networks.
func (c *ScanCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.networks)
}

func (c *ScanCache) replace(networks []Network) {
	n := len(networks)
	if n > MaxScanResults {
		n = MaxScanResults
	}
	next := make([]Network, n)
	copy(next, networks[:n])

	c.mu.Lock()
	c.networks = next
	c.mu.Unlock()
}

func (c *ScanCache) reset() {
	c.mu.Lock()
	c.networks = nil
	c.mu.Unlock()
}
