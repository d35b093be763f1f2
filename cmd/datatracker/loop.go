package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/datatracker/internal/button"
	"github.com/sweeney/datatracker/internal/config"
	"github.com/sweeney/datatracker/internal/display"
	"github.com/sweeney/datatracker/internal/logging"
	"github.com/sweeney/datatracker/internal/metric"
	"github.com/sweeney/datatracker/internal/mqtt"
	"github.com/sweeney/datatracker/internal/status"
	"github.com/sweeney/datatracker/internal/wifi"
	"go.uber.org/zap"
)

// Restart reasons reported in the RESTART system event.
const (
	reasonConfigSaved  = "config_saved"
	reasonFactoryReset = "factory_reset"
)

// device owns everything the polling loop touches. All fields are used
// from the loop goroutine only; the portal talks to it through the store,
// tracker, scan cache and restart channel.
type device struct {
	button    *button.Classifier
	manager   *wifi.Manager
	store     *config.Store
	sched     *metric.Scheduler
	screen    display.Display
	publisher mqtt.Publisher
	mqttConn  mqtt.ConnectionStatus
	tracker   *status.Tracker
	getter    metric.Getter
	restart   chan string

	heartbeat time.Duration
	now       func() time.Time

	lastHeartbeat time.Time
	lastMode      wifi.Mode
	modeShown     bool
}

// requestRestart asks the loop to exit for a restart. Safe from any goroutine.
func (d *device) requestRestart(reason string) {
	select {
	case d.restart <- reason:
	default:
	}
}

// boot joins the stored network, falling back to the configuration AP.
// ConnectWiFi blocks; this runs before the loop starts.
func (d *device) boot(connectTimeout time.Duration) {
	ssid, password := d.store.Credentials()
	if ssid != "" {
		d.screen.Show(display.Connecting(ssid))
		if d.manager.ConnectWiFi(ssid, password, connectTimeout) {
			return
		}
	} else {
		logging.Info("no wifi credentials stored")
	}
	d.enterConfigAP()
}

func (d *device) enterConfigAP() {
	if err := d.manager.StartConfigAP(); err != nil {
		logging.Error("failed to start config AP", zap.Error(err))
		return
	}
	d.screen.Show(display.ConfigAP(d.manager.APName()))
}

// publishStatus sends a system event carrying a full status snapshot.
func (d *device) publishStatus(event, reason string, retained bool) {
	if d.mqttConn != nil {
		d.tracker.SetMQTTConnected(d.mqttConn.IsConnected())
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		logging.Warn("failed to publish system event", zap.String("event", event), zap.Error(err))
		return
	}
	logging.Debug("published system event", zap.String("event", event))
}

// runLoop polls until a signal arrives or a restart is requested.
func (d *device) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	d.lastHeartbeat = d.now()
	d.updateStatus(d.now())
	d.publishStatus("STARTUP", "", true)

	for {
		select {
		case s := <-sig:
			logging.Info("shutting down", zap.String("signal", s.String()))
			d.publishStatus("SHUTDOWN", signalName(s), true)
			return nil

		case reason := <-d.restart:
			logging.Info("restarting", zap.String("reason", reason))
			d.publishStatus("RESTART", reason, true)
			return nil

		case <-tick:
			d.step(d.now())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// step is one loop iteration.
func (d *device) step(t time.Time) {
	ev := d.button.Check(t)
	d.manager.Tick()

	if ev != button.None {
		d.handleButton(t, ev)
	}

	d.showMode()
	d.showHold(t)
	d.maybeFetch(t)
	d.maybeHeartbeat(t)
	d.updateStatus(t)
}

func (d *device) handleButton(t time.Time, ev button.Event) {
	logging.Info("button event", zap.String("event", ev.String()), zap.String("module", d.sched.Active().ID()))
	if err := d.publisher.PublishButton(mqtt.ButtonEvent{Timestamp: t, Event: ev, Module: d.sched.Active().ID()}); err != nil {
		logging.Warn("publish button event failed", zap.Error(err))
	}

	switch ev {
	case button.ShortPress:
		m := d.sched.Cycle()
		if err := d.store.Update(func(c *config.Config) { c.Device.ActiveModule = m.ID() }); err != nil {
			logging.Warn("failed to persist active module", zap.Error(err))
		}
		logging.Info("active module changed", zap.String("module", m.ID()))

	case button.LongPress:
		d.enterConfigAP()

	case button.FactoryReset:
		logging.Warn("factory reset")
		if err := d.store.Reset(); err != nil {
			logging.Error("factory reset failed", zap.Error(err))
		}
		d.requestRestart(reasonFactoryReset)
	}
}

// showMode updates the display when connectivity changes.
func (d *device) showMode() {
	mode := d.manager.Mode()
	if d.modeShown && mode == d.lastMode {
		return
	}
	prev, shown := d.lastMode, d.modeShown
	d.lastMode, d.modeShown = mode, true

	switch mode {
	case wifi.ModeConfigAP:
		d.screen.Show(display.ConfigAP(d.manager.APName()))
	case wifi.ModeConnectedSTA:
		// Refresh right away after a reconnect.
		if shown && prev != wifi.ModeConnectedSTA {
			d.sched.ForceDue()
		}
	default:
		d.screen.Show(display.Offline())
	}
}

// showHold shows reset progress once a hold passes the long-press mark.
func (d *device) showHold(t time.Time) {
	if !d.button.IsPressed() {
		return
	}
	held := d.button.PressDuration(t)
	if held < button.LongPressMin {
		return
	}
	d.screen.Show(display.Hold(held.Truncate(time.Second).Seconds(), button.FactoryResetMin.Seconds()))
}

// maybeFetch fetches the active module when connected and due. The fetch
// blocks the loop for up to the HTTP timeout.
func (d *device) maybeFetch(t time.Time) {
	if !d.manager.IsConnected() {
		return
	}
	mod := d.sched.Active()
	settings := d.store.Get().Module(mod.ID())
	if !d.sched.Due(t, metric.RefreshInterval(settings)) {
		return
	}
	d.sched.MarkFetched(t)

	r, err := mod.Fetch(context.Background(), d.getter, settings, t)
	if err != nil {
		logging.Warn("fetch failed", zap.String("module", mod.ID()), zap.Error(err))
		frame := display.FetchError(mod.DisplayName(settings), err)
		d.screen.Show(frame)
		d.tracker.SetDisplay(frame.String())
		d.tracker.SetMetric(status.MetricInfo{Module: mod.ID(), Label: mod.DisplayName(settings), UpdatedAt: t, Error: err.Error()})
		return
	}

	logging.Info("fetched",
		zap.String("module", r.Module),
		zap.Float64("value", r.Value),
		zap.Float64("change_24h", r.Change24h))
	frame := display.Reading(r)
	d.screen.Show(frame)
	d.tracker.SetDisplay(frame.String())
	d.tracker.SetMetric(status.MetricInfo{
		Module:    r.Module,
		Label:     r.Label,
		Value:     r.Value,
		Change24h: r.Change24h,
		UpdatedAt: r.Time,
		OK:        true,
	})
	if err := d.publisher.PublishReading(r); err != nil {
		logging.Warn("publish reading failed", zap.Error(err))
	}
}

func (d *device) maybeHeartbeat(t time.Time) {
	if d.heartbeat <= 0 || t.Sub(d.lastHeartbeat) < d.heartbeat {
		return
	}
	d.lastHeartbeat = t
	d.updateStatus(t)
	d.publishStatus("HEARTBEAT", "", false)
}

func (d *device) updateStatus(t time.Time) {
	ssid, _ := d.store.Credentials()
	d.tracker.SetConnectivity(status.Connectivity{
		Mode:        d.manager.Mode().String(),
		SSID:        ssid,
		APName:      d.manager.APName(),
		Networks:    d.manager.Cache().Len(),
		ScanOutcome: string(d.manager.LastScanOutcome()),
	})
	d.tracker.SetButton(d.button.IsPressed(), d.button.PressDuration(t))
	d.tracker.SetActiveModule(d.sched.Active().ID())
	if d.mqttConn != nil {
		d.tracker.SetMQTTConnected(d.mqttConn.IsConnected())
	}
}
