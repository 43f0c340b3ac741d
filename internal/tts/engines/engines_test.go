package engines

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/scenecast/internal/markup"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/wav"
)

func speak(text string) tts.Request {
	return tts.Request{Voice: "en", Markup: markup.FromSubtitle(text)}
}

// script writes an executable shell script into dir.
func script(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestMockEngineDurations(t *testing.T) {
	e := NewMockEngine(MockConfig{})
	e.SetDuration("Hello there", 2)

	clip, err := e.Synthesize(context.Background(), speak("Hello there"))
	require.NoError(t, err)
	assert.Zero(t, clip.Duration)

	d, err := wav.Duration(clip.Audio)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 0.001)
	assert.EqualValues(t, 1, e.Calls())

	clip, err = e.Synthesize(context.Background(), speak("one two three four five six seven eight nine ten"))
	require.NoError(t, err)
	d, err = wav.Duration(clip.Audio)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, d, 0.001)
}

func TestMockEngineFailures(t *testing.T) {
	e := NewMockEngine(MockConfig{})
	boom := tts.NewError(tts.ErrorCodeEngineFailure, "boom", nil)
	e.FailOn("broken", boom)

	_, err := e.Synthesize(context.Background(), speak("broken"))
	assert.ErrorIs(t, err, tts.ErrSynthesisFailed)

	e.ClearFailures()
	_, err = e.Synthesize(context.Background(), speak("broken"))
	assert.NoError(t, err)

	_, err = e.Synthesize(context.Background(), tts.Request{})
	assert.ErrorIs(t, err, tts.ErrEmptyText)
}

func TestMockEngineSkew(t *testing.T) {
	e := NewMockEngine(MockConfig{})
	e.SetDuration("skewed", 1)
	e.SetSkew(0.5)

	clip, err := e.Synthesize(context.Background(), speak("skewed"))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, clip.Duration, 0.001)
}

func TestMockEngineCancel(t *testing.T) {
	e := NewMockEngine(MockConfig{Delay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Synthesize(ctx, speak("late"))
	require.Error(t, err)
	assert.Equal(t, tts.ErrorCodeCanceled, tts.AsError(err).Code)
}

func TestNew(t *testing.T) {
	e, err := New(Config{Engine: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "mock", e.Info().Name)

	_, err = New(Config{Engine: "espeak"})
	assert.ErrorIs(t, err, tts.ErrInvalidEngine)

	_, err = New(Config{})
	assert.ErrorIs(t, err, tts.ErrInvalidEngine)

	_, err = New(Config{Engine: "piper"})
	assert.ErrorIs(t, err, tts.ErrEngineNotAvailable)

	e, err = New(Config{Engine: "google", GTTS: GTTSConfig{TempDir: t.TempDir()}})
	require.NoError(t, err)
	assert.True(t, e.Info().Online)
}

func TestPiperSynthesize(t *testing.T) {
	dir := t.TempDir()
	// 0.1 s of 16-bit mono audio at 22050 Hz.
	bin := script(t, dir, "piper", "cat > /dev/null\nhead -c 4410 /dev/zero")
	model := filepath.Join(dir, "amy.onnx")
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))

	e, err := NewPiperEngine(PiperConfig{Binary: bin, ModelDir: dir})
	require.NoError(t, err)
	require.NoError(t, e.Validate())

	clip, err := e.Synthesize(context.Background(), tts.Request{Voice: "amy", Markup: markup.FromSubtitle("Hello")})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, clip.Duration, 0.001)

	d, err := wav.Duration(clip.Audio)
	require.NoError(t, err)
	assert.InDelta(t, clip.Duration, d, 0.001)
}

func TestPiperUnknownVoice(t *testing.T) {
	dir := t.TempDir()
	bin := script(t, dir, "piper", "cat > /dev/null")

	e, err := NewPiperEngine(PiperConfig{Binary: bin, ModelDir: dir})
	require.NoError(t, err)

	_, err = e.Synthesize(context.Background(), tts.Request{Voice: "nobody", Markup: markup.FromSubtitle("Hello")})
	require.Error(t, err)
	assert.Equal(t, tts.ErrorCodeEngineUnavailable, tts.AsError(err).Code)
}

func TestPiperFailure(t *testing.T) {
	dir := t.TempDir()
	bin := script(t, dir, "piper", "echo 'bad model' >&2\nexit 3")

	e, err := NewPiperEngine(PiperConfig{Binary: bin, Model: filepath.Join(dir, "m.onnx")})
	require.NoError(t, err)

	_, err = e.Synthesize(context.Background(), speak("Hello"))
	require.Error(t, err)
	te := tts.AsError(err)
	assert.Equal(t, tts.ErrorCodeEngineFailure, te.Code)
	assert.Contains(t, te.Error(), "bad model")
}

func TestPiperTimeout(t *testing.T) {
	dir := t.TempDir()
	bin := script(t, dir, "piper", "sleep 5")

	e, err := NewPiperEngine(PiperConfig{Binary: bin, Model: "m.onnx", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = e.Synthesize(context.Background(), speak("Hello"))
	require.Error(t, err)
	te := tts.AsError(err)
	assert.Equal(t, tts.ErrorCodeEngineTimeout, te.Code)
	assert.True(t, te.IsRetryable())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGTTSSynthesize(t *testing.T) {
	dir := t.TempDir()
	cli := script(t, dir, "gtts-cli", "printf 'ID3fake'")
	// 0.2 s at 8000 Hz.
	ffmpeg := script(t, dir, "ffmpeg", "head -c 3200 /dev/zero")

	e, err := NewGTTSEngine(GTTSConfig{CLI: cli, FFmpeg: ffmpeg, TempDir: dir, SampleRate: 8000})
	require.NoError(t, err)
	require.NoError(t, e.Validate())

	clip, err := e.Synthesize(context.Background(), speak("Hello world"))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, clip.Duration, 0.001)

	leftovers, err := filepath.Glob(filepath.Join(dir, "gtts-*.mp3"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestGTTSLanguage(t *testing.T) {
	e, err := NewGTTSEngine(GTTSConfig{TempDir: t.TempDir(), Language: "en"})
	require.NoError(t, err)

	tests := []struct {
		voice, text, want string
	}{
		{"", "anything", "en"},
		{"de", "anything", "de"},
		{"pt-BR", "anything", "pt-BR"},
		{VoiceAuto, "Ceci est une phrase assez longue écrite en français pour la détection.", "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.voice, func(t *testing.T) {
			got, err := e.Language(tt.voice, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = e.Language("not a language!", "text")
	assert.Error(t, err)
}

func TestGTTSInvalidLanguage(t *testing.T) {
	_, err := NewGTTSEngine(GTTSConfig{TempDir: t.TempDir(), Language: "!!"})
	assert.Error(t, err)
}

func TestGuidance(t *testing.T) {
	assert.Empty(t, Guidance("piper", nil))
	assert.Contains(t, Guidance("espeak", tts.ErrInvalidEngine), "--engine")
	assert.Contains(t, Guidance("piper", errors.New("piper not found in PATH")), "releases")
	assert.Contains(t, Guidance("piper", errors.New("piper needs a model")), "model_dir")
	assert.Contains(t, Guidance("gtts", errors.New("ffmpeg not found in PATH")), "apt install ffmpeg")
	assert.Contains(t, Guidance("gtts", errors.New("gtts-cli not found in PATH")), "pipx")
}
