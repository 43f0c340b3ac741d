package audio

import "github.com/dgnsrekt/scenecast/internal/wav"

// PlayerState represents the current state of a backend.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
	StateClosed
)

func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Backend plays raw PCM in its own Format.
type Backend interface {
	Format() wav.Format

	// Play stops anything playing and starts pcm. The returned channel is
	// closed when the clip plays to its end. It is never closed for a clip
	// that was stopped.
	Play(pcm []byte) (<-chan struct{}, error)

	Pause() error
	Resume() error

	// Stop rewinds and releases the current clip. Stopping an idle backend
	// is a no-op.
	Stop() error

	Close() error
}
