package wifi

import (
	"time"

	"github.com/sweeney/datatracker/internal/logging"
	"go.uber.org/zap"
)

// updateScan runs one step of the scan state machine:
//
//	Idle --(trigger)--> Scanning --(done|failed|timeout)--> Idle
func (m *Manager) updateScan(now time.Time) {
	if m.scanState != ScanScanning {
		if m.scanDue(now) {
			m.startScan(now)
		}
		return
	}

	progress, results := m.radio.ScanResult()
	switch progress {
	case ScanRunning:
		if now.Sub(m.scanStarted) > ScanTimeout {
			logging.Warn("wifi scan timed out", zap.Duration("elapsed", now.Sub(m.scanStarted)))
			m.finishScan(now, OutcomeTimedOut)
		}

	case ScanDone:
		m.cache.replace(results)
		m.radio.ScanDelete()
		m.scanState = ScanIdle
		m.scanOutcome = OutcomeComplete
		m.lastScanTime = now
		logging.Info("wifi scan complete",
			zap.Int("found", len(results)),
			zap.Int("cached", m.cache.Len()),
		)

	default:
		// ScanFailed, or the radio lost track of the scan.
		logging.Warn("wifi scan failed")
		m.finishScan(now, OutcomeFailed)
	}
}

// scanDue reports whether a new scan should start: once just after the
// boot settle delay, then every RescanInterval.
func (m *Manager) scanDue(now time.Time) bool {
	settle := m.bootTime.Add(BootScanDelay)
	if m.lastScanTime.Before(settle) && now.After(settle) {
		return true
	}
	return now.Sub(m.lastScanTime) > RescanInterval
}

func (m *Manager) startScan(now time.Time) {
	logging.Debug("starting wifi scan")

	if m.radio.Mode() != RadioAPSTA {
		if err := m.radio.SetMode(RadioAPSTA); err != nil {
			logging.Warn("set ap+sta mode for scan", zap.Error(err))
		}
	}
	if err := m.radio.SetTxPower(ScanTxPowerDBm); err != nil {
		logging.Debug("set tx power", zap.Error(err))
	}

	err := m.radio.StartScan(ScanOptions{
		ShowHidden:      false,
		DwellPerChannel: ScanDwellPerChannel,
	})
	if err != nil {
		logging.Warn("wifi scan failed to start", zap.Error(err))
		m.scanOutcome = OutcomeFailed
		m.lastScanTime = now
		return
	}

	m.scanState = ScanScanning
	m.scanStarted = now
	logging.Debug("wifi scan started")
}

// finishScan ends an unsuccessful scan: partial results are discarded and
// the cache is emptied.
func (m *Manager) finishScan(now time.Time, outcome ScanOutcome) {
	m.radio.ScanDelete()
	m.cache.reset()
	m.scanState = ScanIdle
	m.scanOutcome = outcome
	m.lastScanTime = now
}
