package tts

import "context"

// Request asks an engine to speak markup in a voice.
type Request struct {
	Voice  string
	Markup string
}

// Clip is a synthesized WAV file and its length in seconds. Engines that
// cannot measure the audio leave Duration zero and the reconciler decodes it.
type Clip struct {
	Audio    []byte
	Duration float64
}

// Info describes an engine.
type Info struct {
	Name        string
	SampleRate  int
	MaxTextSize int
	Online      bool
	// Markup reports whether the engine understands speech markup natively.
	Markup bool
}

// Engine synthesizes speech.
type Engine interface {
	// Synthesize must honour ctx cancellation.
	Synthesize(ctx context.Context, req Request) (Clip, error)

	Info() Info

	// Validate checks that the engine's binaries and models are usable.
	Validate() error

	Close() error
}
