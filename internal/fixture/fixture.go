package fixture

import (
	"moving-head/internal/color"
	"moving-head/internal/servo"
)

// Device is the physical moving head: three LED channels and two servos
type Device interface {
	// WriteChannel sets one LED channel to an 8-bit PWM level
	WriteChannel(ch color.Channel, level uint8) error

	// Move commands a servo toward angle over transit and returns
	// without waiting for it to arrive
	servo.Driver

	// Close releases the underlying link
	Close() error
}

// Driver names accepted in configuration
const (
	DriverSim    = "sim"
	DriverSerial = "serial"
)
