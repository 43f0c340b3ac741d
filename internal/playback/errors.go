package playback

import "errors"

var (
	// ErrGroupUnavailable is returned when no segment of a group could be
	// synthesized.
	ErrGroupUnavailable = errors.New("no audio available for group")

	// ErrInvalidState is returned for a command the current state does not
	// accept.
	ErrInvalidState = errors.New("invalid playback state")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller is closed")
)
