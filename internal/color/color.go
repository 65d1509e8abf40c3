package color

import (
	"fmt"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

// Channel identifies one of the three physical LED outputs
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Triple is a requested RGB intensity. Channels may be out of range until
// they pass through Clamp.
type Triple struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Off is the zero triple
var Off = Triple{}

// Clamp returns t with every channel limited to [0,255]
func Clamp(t Triple) Triple {
	return Triple{
		R: clampLevel(t.R),
		G: clampLevel(t.G),
		B: clampLevel(t.B),
	}
}

func clampLevel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func (t Triple) String() string {
	return fmt.Sprintf("RGB(%d, %d, %d)", t.R, t.G, t.B)
}

// Hex renders the clamped triple as #rrggbb
func (t Triple) Hex() string {
	c := Clamp(t)
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}

// ParseHex parses a #rrggbb (or #rgb) string into a Triple
func ParseHex(s string) (Triple, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return Triple{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return Triple{R: int(r), G: int(g), B: int(b)}, nil
}

// Output is a physical color surface. Each channel is written independently.
type Output interface {
	WriteChannel(ch Channel, level uint8) error
}

// Mixer maps requested triples onto an Output
type Mixer struct {
	out Output

	mu   sync.Mutex
	last Triple
}

// NewMixer creates a mixer writing to out
func NewMixer(out Output) *Mixer {
	return &Mixer{out: out}
}

// Apply clamps t and writes red, green then blue. There is no atomicity
// across channels; a concurrent reader of the hardware may see a partially
// written triple. The first write error is returned after all three writes
// have been attempted.
func (m *Mixer) Apply(t Triple) (Triple, error) {
	c := Clamp(t)

	m.mu.Lock()
	m.last = c
	m.mu.Unlock()

	var firstErr error
	for _, w := range [...]struct {
		ch    Channel
		level int
	}{{Red, c.R}, {Green, c.G}, {Blue, c.B}} {
		if err := m.out.WriteChannel(w.ch, uint8(w.level)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("write %s channel: %w", w.ch, err)
		}
	}
	return c, firstErr
}

// Last returns the most recently commanded (clamped) triple. It is what was
// sent, not a read-back of the hardware.
func (m *Mixer) Last() Triple {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
