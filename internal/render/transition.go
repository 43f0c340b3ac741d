package render

import (
	"math"

	"github.com/dgnsrekt/scenecast/internal/timeline"
)

const (
	// DefaultTransitionDuration applies to fixed kinds with no configured
	// duration.
	DefaultTransitionDuration = 0.6

	// MaxFixedTransitionDuration caps every kind that does not stretch.
	MaxFixedTransitionDuration = 1.0
)

// EffectiveDuration returns the entrance length in seconds. Movement kinds
// stretch over the group's cached audio; the others use the configured
// duration capped to MaxFixedTransitionDuration.
func EffectiveDuration(kind timeline.TransitionKind, configured, groupAudio float64) float64 {
	switch {
	case kind == timeline.TransitionNone || kind == "":
		return 0
	case kind.IsMovement() && groupAudio > 0:
		return groupAudio
	}
	d := configured
	if d <= 0 {
		d = DefaultTransitionDuration
	}
	return math.Min(d, MaxFixedTransitionDuration)
}

// FrameAt returns the frame of kind at linear progress p in [0, 1]. The
// progress is eased before use.
func FrameAt(kind timeline.TransitionKind, p float64) Frame {
	p = clamp01(p)
	if p == 1 || kind == timeline.TransitionNone || kind == "" {
		return Identity()
	}

	e := easeInOutCubic(p)
	rest := 1 - e
	f := Identity()
	f.Alpha = e

	switch kind {
	case timeline.TransitionFade:
	case timeline.TransitionSlideLeft:
		f.OffsetX = rest
	case timeline.TransitionSlideRight:
		f.OffsetX = -rest
	case timeline.TransitionSlideUp:
		f.OffsetY = rest
	case timeline.TransitionSlideDown:
		f.OffsetY = -rest
	case timeline.TransitionZoomIn:
		f.Scale = lerp(0.5, 1, e)
	case timeline.TransitionZoomOut:
		f.Scale = lerp(1.5, 1, e)
	case timeline.TransitionRotate:
		f.Rotation = -90 * rest
		f.Scale = lerp(0.8, 1, e)
	case timeline.TransitionBlur:
		f.Blur = 20 * rest
	case timeline.TransitionGlitch:
		f.OffsetX = 0.05 * rest * math.Sin(p*60)
		f.OffsetY = 0.02 * rest * math.Cos(p*45)
	case timeline.TransitionRipple:
		f.Scale = 1 + 0.05*rest*math.Sin(p*4*math.Pi)
	case timeline.TransitionCircle:
		f.Clip = e
	}
	return f
}
