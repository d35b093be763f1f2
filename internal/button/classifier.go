package button

import (
	"time"

	"github.com/sweeney/datatracker/internal/gpio"
	"github.com/sweeney/datatracker/internal/logging"
	"go.uber.org/zap"
)

// Classifier debounces a pulled-up, active-low button and emits one Event
// per completed press.
type Classifier struct {
	pin   gpio.Pin
	state State
}

// New creates a classifier. The pin must already be configured as an
// input with pull-up; the initial level is sampled immediately.
func New(pin gpio.Pin) *Classifier {
	c := &Classifier{pin: pin}
	c.state.RawLevel = true
	if level, err := pin.Read(); err == nil {
		c.state.RawLevel = level
	}
	return c
}

// Check samples the pin and returns the event for a press that completed
// on this call, or None. It never blocks.
func (c *Classifier) Check(now time.Time) Event {
	level, err := c.pin.Read()
	if err != nil {
		logging.Warn("button read failed", zap.Error(err))
		return None
	}

	s := &c.state
	if level != s.RawLevel {
		s.DebounceTimestamp = now
	}
	s.RawLevel = level

	if now.Sub(s.DebounceTimestamp) <= DebounceDelay {
		return None
	}

	pressed := !level
	switch {
	case pressed && !s.IsPressed:
		s.IsPressed = true
		s.PressStart = now
		logging.Debug("button pressed")

	case !pressed && s.IsPressed:
		s.IsPressed = false
		d := now.Sub(s.PressStart)
		ev := Classify(d)
		logging.Debug("button released",
			zap.Duration("duration", d),
			zap.Stringer("event", ev),
		)
		return ev
	}

	return None
}

// IsPressed reports whether a debounced press is in progress.
func (c *Classifier) IsPressed() bool {
	return c.state.IsPressed
}

// PressDuration returns how long the current press has lasted, or 0.
func (c *Classifier) PressDuration(now time.Time) time.Duration {
	if !c.state.IsPressed {
		return 0
	}
	return now.Sub(c.state.PressStart)
}

// State returns a copy of the debounce state.
func (c *Classifier) State() State {
	return c.state
}
