package audio

import (
	"errors"
	"fmt"
)

// ErrSpeedOutOfRange is returned when speed is outside the valid range.
var ErrSpeedOutOfRange = errors.New("speed must be between 0.5 and 2.0")

// SpeedSteps are the playback speeds offered by the player.
var SpeedSteps = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0}

// ValidateSpeed checks a playback speed multiplier.
func ValidateSpeed(speed float64) error {
	if speed < SpeedSteps[0] || speed > SpeedSteps[len(SpeedSteps)-1] {
		return fmt.Errorf("%w: got %.2f", ErrSpeedOutOfRange, speed)
	}
	return nil
}

// FasterSpeed returns the next speed step above speed.
func FasterSpeed(speed float64) float64 {
	for _, s := range SpeedSteps {
		if s > speed {
			return s
		}
	}
	return speed
}

// SlowerSpeed returns the next speed step below speed.
func SlowerSpeed(speed float64) float64 {
	for i := len(SpeedSteps) - 1; i >= 0; i-- {
		if SpeedSteps[i] < speed {
			return SpeedSteps[i]
		}
	}
	return speed
}

// SpeedLabel returns a human-readable speed description.
func SpeedLabel(speed float64) string {
	switch speed {
	case 0.5:
		return "0.5x (Half Speed)"
	case 0.75:
		return "0.75x (Slow)"
	case 1.0:
		return "1.0x (Normal)"
	case 1.25:
		return "1.25x (Fast)"
	case 1.5:
		return "1.5x (Faster)"
	case 1.75:
		return "1.75x (Very Fast)"
	case 2.0:
		return "2.0x (Double Speed)"
	default:
		return fmt.Sprintf("%.2fx", speed)
	}
}
