package engines

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/scenecast/internal/tts"
)

// Engine names accepted by New.
const (
	NamePiper = "piper"
	NameGTTS  = "gtts"
	NameMock  = "mock"
)

// Config selects and configures an engine.
type Config struct {
	Engine string      `mapstructure:"engine"`
	Piper  PiperConfig `mapstructure:"piper"`
	GTTS   GTTSConfig  `mapstructure:"gtts"`
	Mock   MockConfig  `mapstructure:"mock"`
}

// New creates the configured engine. "google" is accepted as an alias for
// gtts.
func New(cfg Config) (tts.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case NamePiper:
		e, err := NewPiperEngine(cfg.Piper)
		if err != nil {
			return nil, err
		}
		return e, nil
	case NameGTTS, "google":
		e, err := NewGTTSEngine(cfg.GTTS)
		if err != nil {
			return nil, err
		}
		return e, nil
	case NameMock:
		return NewMockEngine(cfg.Mock), nil
	case "":
		return nil, fmt.Errorf("%w: no engine configured", tts.ErrInvalidEngine)
	default:
		return nil, fmt.Errorf("%w: %s", tts.ErrInvalidEngine, cfg.Engine)
	}
}
