package render

import "math"

// Frame is the transform applied to a visual for one animation step.
// Offsets are fractions of the viewport; Rotation is in degrees; Clip is
// the radius of a circular reveal, 1 meaning fully revealed.
type Frame struct {
	Alpha    float64
	OffsetX  float64
	OffsetY  float64
	Scale    float64
	Rotation float64
	Blur     float64
	Clip     float64
}

// Identity is the resting frame of a visible visual.
func Identity() Frame {
	return Frame{Alpha: 1, Scale: 1, Clip: 1}
}

// IsIdentity reports whether f is the resting frame.
func (f Frame) IsIdentity() bool {
	return f == Identity()
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// easeInOutCubic applies smooth easing.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func clamp01(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}
