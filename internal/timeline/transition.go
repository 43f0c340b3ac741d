package timeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTransition is returned for transition names outside the catalogue.
var ErrUnknownTransition = errors.New("unknown transition")

// TransitionKind names an entrance effect.
type TransitionKind string

const (
	TransitionNone       TransitionKind = "none"
	TransitionFade       TransitionKind = "fade"
	TransitionSlideLeft  TransitionKind = "slide-left"
	TransitionSlideRight TransitionKind = "slide-right"
	TransitionSlideUp    TransitionKind = "slide-up"
	TransitionSlideDown  TransitionKind = "slide-down"
	TransitionZoomIn     TransitionKind = "zoom-in"
	TransitionZoomOut    TransitionKind = "zoom-out"
	TransitionRotate     TransitionKind = "rotate"
	TransitionBlur       TransitionKind = "blur"
	TransitionGlitch     TransitionKind = "glitch"
	TransitionRipple     TransitionKind = "ripple"
	TransitionCircle     TransitionKind = "circle"
)

// Transitions lists every supported kind.
var Transitions = []TransitionKind{
	TransitionNone,
	TransitionFade,
	TransitionSlideLeft,
	TransitionSlideRight,
	TransitionSlideUp,
	TransitionSlideDown,
	TransitionZoomIn,
	TransitionZoomOut,
	TransitionRotate,
	TransitionBlur,
	TransitionGlitch,
	TransitionRipple,
	TransitionCircle,
}

// Valid reports whether k is part of the catalogue.
func (k TransitionKind) Valid() bool {
	for _, t := range Transitions {
		if t == k {
			return true
		}
	}
	return false
}

// IsMovement reports whether the kind may stretch to the group's audio length.
func (k TransitionKind) IsMovement() bool {
	switch k {
	case TransitionSlideLeft, TransitionSlideRight, TransitionSlideUp, TransitionSlideDown,
		TransitionZoomIn, TransitionZoomOut:
		return true
	default:
		return false
	}
}

// HidesPreviousImmediately reports whether the previous scene disappears at
// the start of the entrance rather than at its end.
func (k TransitionKind) HidesPreviousImmediately() bool {
	switch k {
	case TransitionNone, TransitionRotate, TransitionBlur, TransitionGlitch, "":
		return true
	default:
		return false
	}
}

// ParseTransition parses a transition name.
func ParseTransition(s string) (TransitionKind, error) {
	k := TransitionKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return TransitionNone, nil
	}
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransition, s)
	}
	return k, nil
}
