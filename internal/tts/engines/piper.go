package engines

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/markup"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/wav"
)

const piperMaxText = 5000

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	// Binary is the piper executable, "piper" by default.
	Binary string `mapstructure:"binary"`

	// ModelDir holds <voice>.onnx models. A voice may also be a model path.
	ModelDir string `mapstructure:"model_dir"`

	// Model is used when a voice does not resolve to a model file.
	Model string `mapstructure:"model"`

	SampleRate  int           `mapstructure:"sample_rate"`
	LengthScale float64       `mapstructure:"length_scale"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PiperEngine synthesizes speech with a fresh piper process per request.
type PiperEngine struct {
	cfg PiperConfig
}

// NewPiperEngine creates a Piper engine, applying defaults.
func NewPiperEngine(cfg PiperConfig) (*PiperEngine, error) {
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = wav.PiperSampleRate
	}
	if cfg.LengthScale <= 0 {
		cfg.LengthScale = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ModelDir == "" && cfg.Model == "" {
		return nil, fmt.Errorf("%w: piper needs a model or a model directory", tts.ErrEngineNotAvailable)
	}
	return &PiperEngine{cfg: cfg}, nil
}

// Synthesize speaks the plain text of req.Markup.
func (e *PiperEngine) Synthesize(ctx context.Context, req tts.Request) (tts.Clip, error) {
	text := markup.Text(req.Markup)
	if err := checkText(text, piperMaxText); err != nil {
		return tts.Clip{}, err
	}

	model, err := e.resolveModel(req.Voice)
	if err != nil {
		return tts.Clip{}, err
	}

	args := []string{
		"--model", model,
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", e.cfg.LengthScale),
	}
	if cfg := strings.TrimSuffix(model, filepath.Ext(model)) + ".onnx.json"; fileExists(cfg) {
		args = append(args, "--config", cfg)
	}

	log.Debug("running piper", "model", model, "chars", len(text))
	pcm, err := run(ctx, e.cfg.Timeout, strings.NewReader(text), e.cfg.Binary, args...)
	if err != nil {
		return tts.Clip{}, err
	}
	if len(pcm) == 0 {
		return tts.Clip{}, tts.NewError(tts.ErrorCodeAudioFormat, "piper produced no audio", nil)
	}

	format := wav.Mono16(e.cfg.SampleRate)
	return tts.Clip{Audio: wav.Wrap(pcm, format), Duration: format.Duration(len(pcm))}, nil
}

// resolveModel maps a voice to a model file. Voices may name a model in
// ModelDir or be a path to one.
func (e *PiperEngine) resolveModel(voice string) (string, error) {
	if voice != "" {
		if strings.HasSuffix(voice, ".onnx") && fileExists(voice) {
			return voice, nil
		}
		if e.cfg.ModelDir != "" {
			if p := filepath.Join(e.cfg.ModelDir, voice+".onnx"); fileExists(p) {
				return p, nil
			}
		}
	}
	if e.cfg.Model != "" {
		return e.cfg.Model, nil
	}
	return "", tts.NewError(tts.ErrorCodeEngineUnavailable, fmt.Sprintf("no piper model for voice %q", voice), nil)
}

// Info describes the engine.
func (e *PiperEngine) Info() tts.Info {
	return tts.Info{Name: "piper", SampleRate: e.cfg.SampleRate, MaxTextSize: piperMaxText}
}

// Validate checks the binary and the model configuration.
func (e *PiperEngine) Validate() error {
	if _, err := exec.LookPath(e.cfg.Binary); err != nil {
		return fmt.Errorf("%w: piper not found in PATH: %v", tts.ErrEngineNotAvailable, err)
	}
	if e.cfg.Model != "" && !fileExists(e.cfg.Model) {
		return fmt.Errorf("%w: model file not accessible: %s", tts.ErrEngineNotAvailable, e.cfg.Model)
	}
	if e.cfg.ModelDir != "" {
		if info, err := os.Stat(e.cfg.ModelDir); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: model directory not accessible: %s", tts.ErrEngineNotAvailable, e.cfg.ModelDir)
		}
	}
	return nil
}

// Close is a no-op; piper runs per request.
func (e *PiperEngine) Close() error { return nil }

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var _ tts.Engine = (*PiperEngine)(nil)
