// Datatracker runs a networked metric display.
//
// It joins the configured WiFi network, or brings up a configuration access
// point with a setup portal when it cannot, then polls a button and fetches
// the active metric on a single cooperative loop.
//
// Usage:
//
//	datatracker run [flags]
//
// See 'datatracker run --help' for available options.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/datatracker/internal/button"
	"github.com/sweeney/datatracker/internal/config"
	"github.com/sweeney/datatracker/internal/discovery"
	"github.com/sweeney/datatracker/internal/display"
	"github.com/sweeney/datatracker/internal/gpio"
	"github.com/sweeney/datatracker/internal/logging"
	"github.com/sweeney/datatracker/internal/metric"
	"github.com/sweeney/datatracker/internal/mqtt"
	"github.com/sweeney/datatracker/internal/portal"
	"github.com/sweeney/datatracker/internal/status"
	"github.com/sweeney/datatracker/internal/version"
	"github.com/sweeney/datatracker/internal/wifi"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "datatracker",
	Short:   "Networked metric display daemon",
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var (
	configPath     string
	pinOffset      int
	chipName       string
	iface          string
	poll           time.Duration
	portalAddr     string
	logLevel       string
	connectTimeout time.Duration
	heartbeat      time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the device loop",
	Example: `  # Run with defaults (button on BCM17, portal on :80)
  datatracker run

  # Use a local config file and debug logging
  datatracker run --config ./config.yaml --log-level debug`,
	RunE: runDevice,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file")
	runCmd.Flags().IntVar(&pinOffset, "pin", gpio.DefaultPinButton, "BCM pin number of the button")
	runCmd.Flags().StringVar(&chipName, "chip", gpio.DefaultChip, "GPIO chip name")
	runCmd.Flags().StringVar(&iface, "iface", wifi.DefaultInterface, "WiFi interface managed by NetworkManager")
	runCmd.Flags().DurationVar(&poll, "poll", 20*time.Millisecond, "Loop polling interval")
	runCmd.Flags().StringVar(&portalAddr, "portal-addr", portal.DefaultAddr, "Configuration portal listen address")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, off)")
	runCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", wifi.DefaultConnectTimeout, "Boot-time WiFi association timeout")
	runCmd.Flags().DurationVar(&heartbeat, "heartbeat", 15*time.Minute, "MQTT heartbeat interval (0 to disable)")
}

func runDevice(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	store := config.NewStore(configPath)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := store.Get()

	pin, err := gpio.NewRealPin(chipName, pinOffset)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pin.Close()

	radio, err := wifi.NewNMRadio(iface)
	if err != nil {
		return fmt.Errorf("init wifi: %w", err)
	}
	manager := wifi.NewManager(radio, store, wifi.Options{
		InsecureSkipVerify: cfg.Fetch.InsecureSkipVerify,
	})
	tracker := status.NewTracker(time.Now(), version.Version)

	d := &device{
		button:    button.New(pin),
		manager:   manager,
		store:     store,
		sched:     metric.NewScheduler(cfg.Device.ActiveModule),
		screen:    display.NewLogDisplay(),
		tracker:   tracker,
		getter:    manager,
		restart:   make(chan string, 1),
		heartbeat: heartbeat,
		now:       time.Now,
	}

	srv := portal.New(portal.Options{
		Addr:    portalAddr,
		APName:  manager.APName,
		Scans:   manager.Cache(),
		Store:   store,
		Status:  tracker,
		Restart: func() { d.requestRestart(reasonConfigSaved) },
	})
	manager.AddService(srv)
	manager.AddOptionalService(discovery.NewAnnouncer(manager.APName, portalAddr, "path=/"))
	defer manager.StopConfigAP()

	d.publisher, d.mqttConn = newPublisher(cfg.MQTT)
	defer d.publisher.Close()

	logging.Info("started",
		zap.String("version", version.Full()),
		zap.String("config", store.Path()),
		zap.Int("pin", pinOffset),
		zap.String("iface", iface),
		zap.Duration("poll", poll),
		zap.String("module", d.sched.Active().ID()),
		zap.Bool("insecure_tls", cfg.Fetch.InsecureSkipVerify))

	d.boot(connectTimeout)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.runLoop(ticker.C, sigCh)
}

// newPublisher returns a no-op publisher when no broker is configured or
// the client cannot be created; MQTT is never fatal.
func newPublisher(c config.MQTT) (mqtt.Publisher, mqtt.ConnectionStatus) {
	if c.Broker == "" {
		logging.Info("mqtt disabled: no broker configured")
		return mqtt.NopPublisher{}, nil
	}
	p, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   c.Broker,
		ClientID: c.ClientID,
		Topics:   mqtt.NewTopics(c.TopicPrefix),
	})
	if err != nil {
		logging.Warn("mqtt unavailable", zap.String("broker", c.Broker), zap.Error(err))
		return mqtt.NopPublisher{}, nil
	}
	return p, p
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("datatracker %s\n", version.Full())
	},
}
