// Package button classifies presses of the single front-panel button.
// Time is always injectable via time.Time parameters; the package never sleeps.
package button

import "time"

// Timing thresholds for press classification.
const (
	DebounceDelay   = 50 * time.Millisecond
	ShortPressMax   = 1000 * time.Millisecond
	LongPressMin    = 3000 * time.Millisecond
	FactoryResetMin = 10000 * time.Millisecond
)

// Event is the outcome of a completed press.
type Event int

const (
	None Event = iota
	ShortPress
	LongPress
	FactoryReset
)

func (e Event) String() string {
	switch e {
	case None:
		return "NONE"
	case ShortPress:
		return "SHORT_PRESS"
	case LongPress:
		return "LONG_PRESS"
	case FactoryReset:
		return "FACTORY_RESET"
	default:
		return "UNKNOWN"
	}
}

// State is the debounce bookkeeping for the button.
type State struct {
	// Last sampled raw level (true = high).
	RawLevel bool
	// Time of the last observed raw level change.
	DebounceTimestamp time.Time
	// Start of the current press. Only meaningful while IsPressed.
	PressStart time.Time
	IsPressed  bool
}

// Classify maps a completed press duration to an event.
// Durations between ShortPressMax and LongPressMin return None.
func Classify(d time.Duration) Event {
	switch {
	case d >= FactoryResetMin:
		return FactoryReset
	case d >= LongPressMin:
		return LongPress
	case d >= DebounceDelay && d < ShortPressMax:
		return ShortPress
	default:
		return None
	}
}
