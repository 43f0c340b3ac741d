package engines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/charmbracelet/log"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/scenecast/internal/markup"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/wav"
)

const (
	gttsMaxText = 5000

	// VoiceAuto asks the gTTS engine to detect the language of the text.
	VoiceAuto = "auto"
)

// GTTSConfig holds configuration for the gTTS engine.
type GTTSConfig struct {
	CLI    string `mapstructure:"cli"`
	FFmpeg string `mapstructure:"ffmpeg"`

	// Language is used for the empty voice and when detection finds nothing.
	Language string `mapstructure:"language"`
	Slow     bool   `mapstructure:"slow"`
	TempDir  string `mapstructure:"temp_dir"`

	SampleRate        int           `mapstructure:"sample_rate"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// GTTSEngine synthesizes through gtts-cli (MP3) and ffmpeg (PCM). Voices are
// language codes.
type GTTSEngine struct {
	cfg     GTTSConfig
	limiter *rate.Limiter
}

// NewGTTSEngine creates a gTTS engine, applying defaults.
func NewGTTSEngine(cfg GTTSConfig) (*GTTSEngine, error) {
	if cfg.CLI == "" {
		cfg.CLI = "gtts-cli"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if _, err := language.Parse(cfg.Language); err != nil {
		return nil, fmt.Errorf("invalid gtts language %q: %w", cfg.Language, err)
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &GTTSEngine{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Synthesize speaks the plain text of req.Markup in the voice's language.
func (e *GTTSEngine) Synthesize(ctx context.Context, req tts.Request) (tts.Clip, error) {
	text := markup.Text(req.Markup)
	if err := checkText(text, gttsMaxText); err != nil {
		return tts.Clip{}, err
	}
	lang, err := e.Language(req.Voice, text)
	if err != nil {
		return tts.Clip{}, err
	}

	if err := e.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return tts.Clip{}, tts.NewError(tts.ErrorCodeCanceled, "rate limit wait canceled", ctx.Err())
		}
		return tts.Clip{}, tts.NewError(tts.ErrorCodeRateLimited, "rate limited", err)
	}

	args := []string{text, "-l", lang}
	if e.cfg.Slow {
		args = append(args, "--slow")
	}
	args = append(args, "-o", "-")

	log.Debug("running gtts", "lang", lang, "chars", len(text))
	mp3, err := run(ctx, e.cfg.Timeout, nil, e.cfg.CLI, args...)
	if err != nil {
		return tts.Clip{}, err
	}
	if len(mp3) == 0 {
		return tts.Clip{}, tts.NewError(tts.ErrorCodeAudioFormat, "gtts-cli produced no audio", nil)
	}

	pcm, err := e.decode(ctx, mp3)
	if err != nil {
		return tts.Clip{}, err
	}
	format := wav.Mono16(e.cfg.SampleRate)
	return tts.Clip{Audio: wav.Wrap(pcm, format), Duration: format.Duration(len(pcm))}, nil
}

// Language resolves a voice to a gTTS language code.
func (e *GTTSEngine) Language(voice, text string) (string, error) {
	switch voice {
	case "":
		return e.cfg.Language, nil
	case VoiceAuto:
		if code := whatlanggo.DetectLang(text).Iso6391(); code != "" {
			return code, nil
		}
		return e.cfg.Language, nil
	}
	tag, err := language.Parse(voice)
	if err != nil {
		return "", tts.NewError(tts.ErrorCodeInvalidInput, fmt.Sprintf("voice %q is not a language", voice), err)
	}
	return tag.String(), nil
}

// decode converts MP3 bytes to raw 16-bit mono PCM with ffmpeg.
func (e *GTTSEngine) decode(ctx context.Context, mp3 []byte) ([]byte, error) {
	f, err := os.CreateTemp(e.cfg.TempDir, "gtts-*.mp3")
	if err != nil {
		return nil, tts.NewError(tts.ErrorCodeEngineFailure, "failed to create temp MP3 file", err)
	}
	defer os.Remove(f.Name())

	_, err = f.Write(mp3)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, tts.NewError(tts.ErrorCodeEngineFailure, "failed to write MP3 data", err)
	}

	pcm, err := run(ctx, 15*time.Second, nil, e.cfg.FFmpeg,
		"-loglevel", "error",
		"-i", f.Name(),
		"-f", "s16le",
		"-ar", strconv.Itoa(e.cfg.SampleRate),
		"-ac", "1",
		"-")
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, tts.NewError(tts.ErrorCodeAudioFormat, "ffmpeg produced no audio", nil)
	}
	return pcm, nil
}

// Info describes the engine.
func (e *GTTSEngine) Info() tts.Info {
	return tts.Info{Name: "gtts", SampleRate: e.cfg.SampleRate, MaxTextSize: gttsMaxText, Online: true}
}

// Validate checks that gtts-cli and ffmpeg are installed.
func (e *GTTSEngine) Validate() error {
	var errs []error
	if _, err := exec.LookPath(e.cfg.CLI); err != nil {
		errs = append(errs, fmt.Errorf("gtts-cli not found in PATH: %w", err))
	}
	if _, err := exec.LookPath(e.cfg.FFmpeg); err != nil {
		errs = append(errs, fmt.Errorf("ffmpeg not found in PATH: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", tts.ErrEngineNotAvailable, errors.Join(errs...))
	}
	return nil
}

// Close is a no-op.
func (e *GTTSEngine) Close() error { return nil }

var _ tts.Engine = (*GTTSEngine)(nil)
