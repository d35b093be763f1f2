// Package display renders device state to a display sink.
package display

import (
	"fmt"
	"sync"

	"github.com/sweeney/datatracker/internal/logging"
	"github.com/sweeney/datatracker/internal/metric"
	"go.uber.org/zap"
)

// Frame is what the display shows: a title row and a body row.
type Frame struct {
	Title string
	Body  string
}

// String renders the frame as two lines.
func (f Frame) String() string {
	return f.Title + "\n" + f.Body
}

// Display shows frames.
type Display interface {
	Show(f Frame) error
}

// Reading renders a successful fetch.
func Reading(r metric.Reading) Frame {
	return Frame{Title: r.Label, Body: r.Format()}
}

// FetchError renders a failed fetch for the named module.
func FetchError(label string, err error) Frame {
	return Frame{Title: label, Body: "Error: " + err.Error()}
}

// Connecting renders boot-time association.
func Connecting(ssid string) Frame {
	return Frame{Title: "Connecting", Body: ssid}
}

// ConfigAP renders setup instructions while the access point is up.
func ConfigAP(apName string) Frame {
	return Frame{Title: "Setup", Body: "Join " + apName}
}

// Offline renders the station link being down.
func Offline() Frame {
	return Frame{Title: "Offline", Body: "Reconnecting..."}
}

// Hold renders progress while the button is held past the long-press mark.
func Hold(held, resetAt float64) Frame {
	return Frame{Title: "Hold for reset", Body: fmt.Sprintf("%.0f/%.0fs", held, resetAt)}
}

// LogDisplay writes frames to the structured log. Repeated identical frames
// are suppressed.
type LogDisplay struct {
	mu   sync.Mutex
	last Frame
	set  bool
}

// NewLogDisplay creates a LogDisplay.
func NewLogDisplay() *LogDisplay {
	return &LogDisplay{}
}

// Show logs f unless it equals the previous frame.
func (d *LogDisplay) Show(f Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.set && f == d.last {
		return nil
	}
	d.last, d.set = f, true
	logging.Info("display", zap.String("title", f.Title), zap.String("body", f.Body))
	return nil
}

// Fake records frames for tests.
type Fake struct {
	mu     sync.Mutex
	Frames []Frame
}

// Show records f.
func (d *Fake) Show(f Frame) error {
	d.mu.Lock()
	d.Frames = append(d.Frames, f)
	d.mu.Unlock()
	return nil
}

// Last returns the most recent frame, or the zero Frame.
func (d *Fake) Last() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Frames) == 0 {
		return Frame{}
	}
	return d.Frames[len(d.Frames)-1]
}
