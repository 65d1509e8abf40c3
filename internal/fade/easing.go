package fade

import "fmt"

// Curve shapes normalized progress over the course of a fade
type Curve int

const (
	Linear Curve = iota
	EaseInQuad
	EaseInCubic
	EaseInQuart
)

var curveNames = map[Curve]string{
	Linear:      "linear",
	EaseInQuad:  "ease-in-quad",
	EaseInCubic: "ease-in-cubic",
	EaseInQuart: "ease-in-quart",
}

func (c Curve) String() string {
	if name, ok := curveNames[c]; ok {
		return name
	}
	return fmt.Sprintf("curve(%d)", int(c))
}

// ParseCurve maps a curve name back to its value
func ParseCurve(name string) (Curve, error) {
	for c, n := range curveNames {
		if n == name {
			return c, nil
		}
	}
	return Linear, fmt.Errorf("unknown easing curve %q", name)
}

// Ease maps progress p in [0,1] through the curve
func Ease(p float64, c Curve) float64 {
	switch c {
	case EaseInQuad:
		return p * p
	case EaseInCubic:
		return p * p * p
	case EaseInQuart:
		return p * p * p * p
	default:
		return p
	}
}
