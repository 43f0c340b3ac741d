package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// Project file path, shown in the status bar.
	Path string

	// Watch reloads the project when the file changes.
	Watch bool

	// Engine name, used for setup guidance on synthesis failures.
	Engine string

	// SeekStep is how far left/right move the cursor.
	SeekStep time.Duration `env:"SCENECAST_SEEK_STEP" envDefault:"5s"`

	// FrameRate is how often the stage is redrawn while playing.
	FrameRate int `env:"SCENECAST_FRAME_RATE" envDefault:"20"`

	// Autoplay starts playback as soon as the player opens.
	Autoplay bool `env:"SCENECAST_AUTOPLAY" envDefault:"false"`

	EnableMouse bool `env:"SCENECAST_ENABLE_MOUSE" envDefault:"false"`
}
