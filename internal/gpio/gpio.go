// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Pin reads a single digital input.
type Pin interface {
	// Read returns the raw level of the pin: true = high.
	// The button is wired active-low against the pull-up, so
	// released reads high and pressed reads low.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip      = "gpiochip0"
	DefaultPinButton = 17
)
