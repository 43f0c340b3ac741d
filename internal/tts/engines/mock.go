package engines

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/scenecast/internal/markup"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/wav"
)

// MockConfig configures the mock engine.
type MockConfig struct {
	SampleRate int `mapstructure:"sample_rate"`

	// WordsPerMinute sets the length of generated silence.
	WordsPerMinute int `mapstructure:"words_per_minute"`

	// Delay simulates synthesis latency.
	Delay time.Duration `mapstructure:"delay"`
}

// MockEngine returns silent WAV clips of predictable length. Durations and
// failures can be scripted per text.
type MockEngine struct {
	cfg MockConfig

	mu        sync.Mutex
	durations map[string]float64
	failures  map[string]error
	skew      float64

	calls atomic.Int64
}

// NewMockEngine creates a mock engine, applying defaults.
func NewMockEngine(cfg MockConfig) *MockEngine {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 8000
	}
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = 150
	}
	return &MockEngine{
		cfg:       cfg,
		durations: make(map[string]float64),
		failures:  make(map[string]error),
	}
}

// SetDuration makes text synthesize to seconds of audio.
func (e *MockEngine) SetDuration(text string, seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.durations[text] = seconds
}

// FailOn makes synthesis of text fail with err.
func (e *MockEngine) FailOn(text string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[text] = err
}

// ClearFailures removes every scripted failure.
func (e *MockEngine) ClearFailures() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.failures)
}

// SetSkew adds seconds to the reported clip duration without changing the
// audio, so that playback measures a different length.
func (e *MockEngine) SetSkew(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skew = seconds
}

// Calls returns the number of Synthesize calls.
func (e *MockEngine) Calls() int64 {
	return e.calls.Load()
}

// Synthesize returns silence for the plain text of req.Markup.
func (e *MockEngine) Synthesize(ctx context.Context, req tts.Request) (tts.Clip, error) {
	e.calls.Add(1)

	text := markup.Text(req.Markup)
	if err := checkText(text, 0); err != nil {
		return tts.Clip{}, err
	}

	if e.cfg.Delay > 0 {
		select {
		case <-time.After(e.cfg.Delay):
		case <-ctx.Done():
			return tts.Clip{}, tts.AsError(ctx.Err())
		}
	}

	e.mu.Lock()
	failure := e.failures[text]
	seconds, scripted := e.durations[text]
	skew := e.skew
	e.mu.Unlock()

	if failure != nil {
		return tts.Clip{}, failure
	}
	if !scripted {
		words := len(strings.Fields(text))
		seconds = float64(words) * 60 / float64(e.cfg.WordsPerMinute)
		if seconds < 0.5 {
			seconds = 0.5
		}
	}

	format := wav.Mono16(e.cfg.SampleRate)
	clip := tts.Clip{Audio: wav.Silence(seconds, format)}
	if skew != 0 {
		clip.Duration = format.Duration(len(clip.Audio)-wav.HeaderSize) + skew
	}
	return clip, nil
}

// Info describes the engine.
func (e *MockEngine) Info() tts.Info {
	return tts.Info{Name: "mock", SampleRate: e.cfg.SampleRate}
}

// Validate always succeeds.
func (e *MockEngine) Validate() error { return nil }

// Close is a no-op.
func (e *MockEngine) Close() error { return nil }

var _ tts.Engine = (*MockEngine)(nil)
