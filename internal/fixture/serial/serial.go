// Package serial drives a PWM/servo bridge board attached over a serial line.
//
// Frames are [0x80|address] [command] [args...] [0xFF]. Argument bytes never
// have the high bit set, so 0xFF only ever terminates a frame.
//
//	channel write: 0x01 <channel> <level hi 1 bit> <level lo 7 bits>
//	servo move:    0x02 <axis> <angle hi 1 bit> <angle lo 7 bits> <transit/10ms hi 7> <transit/10ms lo 7>
package serial

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tarm "github.com/tarm/serial"

	"moving-head/internal/color"
	"moving-head/internal/fixture"
	"moving-head/internal/servo"
)

const (
	cmdChannel byte = 0x01
	cmdServo   byte = 0x02

	terminator byte = 0xFF

	// transit is sent in 10ms ticks over 14 bits
	maxTransitTicks = 1<<14 - 1
)

// Config for the serial bridge
type Config struct {
	Port    string // e.g. "/dev/ttyUSB0"
	Baud    int
	Address int // Board address (1-7), default 1
}

// Fixture writes frames to the bridge board
type Fixture struct {
	port io.ReadWriteCloser
	mu   sync.Mutex
	addr int
}

var _ fixture.Device = (*Fixture)(nil)

// Open opens the serial port and returns a fixture bound to it
func Open(cfg Config) (*Fixture, error) {
	baud := cfg.Baud
	if baud == 0 {
		baud = 115200
	}

	port, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Port,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	return New(port, cfg.Address), nil
}

// New wraps an already open link
func New(port io.ReadWriteCloser, address int) *Fixture {
	if address < 1 || address > 7 {
		address = 1
	}
	return &Fixture{port: port, addr: address}
}

// Close closes the serial link
func (f *Fixture) Close() error {
	if f.port != nil {
		return f.port.Close()
	}
	return nil
}

// WriteChannel sets one LED channel
func (f *Fixture) WriteChannel(ch color.Channel, level uint8) error {
	hi, lo := split7(int(level))
	return f.send([]byte{cmdChannel, byte(ch), hi, lo})
}

// Move commands a servo. The board interpolates over transit on its own.
func (f *Fixture) Move(axis servo.Axis, angle int, transit time.Duration) error {
	angle = clampInt(angle, 0, 255)
	ticks := clampInt(int(transit/(10*time.Millisecond)), 0, maxTransitTicks)

	ah, al := split7(angle)
	th, tl := split7(ticks)
	return f.send([]byte{cmdServo, byte(axis), ah, al, th, tl})
}

// buildFrame adds the address byte and terminator around payload
func (f *Fixture) buildFrame(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, byte(0x80|f.addr))
	frame = append(frame, payload...)
	frame = append(frame, terminator)
	return frame
}

func (f *Fixture) send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	frame := f.buildFrame(payload)
	if _, err := f.port.Write(frame); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}

	log.Trace().Hex("frame", frame).Msg("Serial frame sent")
	return nil
}

// split7 splits v into two 7-bit bytes
func split7(v int) (byte, byte) {
	return byte((v >> 7) & 0x7F), byte(v & 0x7F)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
