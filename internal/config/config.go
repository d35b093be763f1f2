// Package config persists device settings as YAML.
//
// A Store is created once at startup and passed to every component that
// needs settings. Reads return copies; writes go through Update, which
// commits to disk before the in-memory copy changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon keeps its configuration.
const DefaultPath = "/var/lib/datatracker/config.yaml"

// Config is the persisted device configuration.
type Config struct {
	WiFi    WiFi                      `yaml:"wifi"`
	Device  Device                    `yaml:"device"`
	Modules map[string]ModuleSettings `yaml:"modules,omitempty"`
	MQTT    MQTT                      `yaml:"mqtt"`
	Fetch   Fetch                     `yaml:"fetch"`
}

// WiFi holds station credentials.
type WiFi struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// Device holds device-level preferences.
type Device struct {
	ActiveModule string `yaml:"active_module"`
}

// ModuleSettings holds per-metric-module options.
type ModuleSettings struct {
	CryptoID       string `yaml:"crypto_id,omitempty"`
	CryptoName     string `yaml:"crypto_name,omitempty"`
	RefreshSeconds int    `yaml:"refresh_seconds,omitempty"`
}

// MQTT configures the status publisher. An empty broker disables it.
type MQTT struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id,omitempty"`
}

// Fetch configures outbound HTTPS.
type Fetch struct {
	// InsecureSkipVerify disables certificate validation for metric
	// providers. Enabled by default to match the shipped firmware;
	// any server identity is accepted while set.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Default returns the factory configuration.
func Default() Config {
	return Config{
		Device: Device{ActiveModule: "bitcoin"},
		MQTT:   MQTT{TopicPrefix: "datatracker"},
		Fetch:  Fetch{InsecureSkipVerify: true},
	}
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	if c.Modules != nil {
		out.Modules = make(map[string]ModuleSettings, len(c.Modules))
		for k, v := range c.Modules {
			out.Modules[k] = v
		}
	}
	return out
}

// Module returns the settings for a module id (zero value if unset).
func (c Config) Module(id string) ModuleSettings {
	return c.Modules[id]
}

// Store owns the configuration file.
type Store struct {
	path string

	mu  sync.Mutex
	cfg Config
}

// NewStore creates a store for path holding the default configuration.
// Call Load to read the file.
func NewStore(path string) *Store {
	return &Store{path: path, cfg: Default()}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the file. A missing file leaves the defaults in place.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.cfg = Default()
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Update applies fn to a copy of the configuration and writes it out.
// The in-memory configuration only changes if the write succeeds.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// Reset removes the configuration file and restores defaults.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove config file: %w", err)
	}
	s.cfg = Default()
	return nil
}

// Credentials returns the stored WiFi credentials.
func (s *Store) Credentials() (ssid, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.WiFi.SSID, s.cfg.WiFi.Password
}

// write saves cfg via a temp file and rename so a crash never leaves a
// truncated file behind.
func (s *Store) write(cfg Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}
