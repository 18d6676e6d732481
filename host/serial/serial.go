// Package serial opens the controller's UART from the host.
package serial

import (
	"io"
)

// Port is a serial connection to the controller.
// Implementations: NativePort (github.com/tarm/serial) and the simulator's
// in-memory link.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string `yaml:"device"`

	// Baud rate of the controller UART
	Baud int `yaml:"baud"`

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int `yaml:"read_timeout_ms"`
}

// DefaultBaud matches the firmware UART setting
const DefaultBaud = 9600

// DefaultConfig returns the configuration for the firmware defaults
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}
