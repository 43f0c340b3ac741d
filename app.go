package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/audio"
	"github.com/dgnsrekt/scenecast/internal/cache"
	"github.com/dgnsrekt/scenecast/internal/config"
	"github.com/dgnsrekt/scenecast/internal/playback"
	"github.com/dgnsrekt/scenecast/internal/render"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/tts/engines"
)

const defaultFrameRate = 30

type appOptions struct {
	// audio opens an output; synthesis-only commands leave it off.
	audio bool
	// mute plays through a silent backend in real time.
	mute bool
	// logSurface logs subtitles and visibility changes.
	logSurface bool
}

// app holds everything a command needs, wired from the configuration.
type app struct {
	cfg config.Config

	engine tts.Engine
	cache  *cache.Cache
	synth  *tts.Reconciler

	device  *audio.Device
	backend audio.Backend
	speaker *audio.Manager

	memory *render.MemorySurface
	stage  *render.Renderer
	orch   *playback.Orchestrator
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	engine, err := engines.New(cfg.TTS)
	if err != nil {
		return nil, withGuidance(cfg.TTS.Engine, err)
	}
	if err := engine.Validate(); err != nil {
		_ = engine.Close()
		return nil, withGuidance(cfg.TTS.Engine, err)
	}
	a.engine = engine

	c, err := cache.New(cfg.Cache.Cache())
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.cache = c
	a.synth = tts.NewReconciler(engine, c, cfg.Synthesis.Options())

	if !opts.audio {
		return a, nil
	}

	if opts.mute {
		a.backend = audio.NewMockPlayer(cfg.Audio.Format())
	} else {
		device, err := audio.NewDevice(cfg.Audio)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("unable to open audio device (try --mute): %w", err)
		}
		player := audio.NewPlayer(device)
		if err := player.SetVolume(cfg.Playback.Volume); err != nil {
			_ = a.Close()
			return nil, err
		}
		a.device = device
		a.backend = player
	}
	a.speaker = audio.NewManager(a.backend, c)

	a.memory = render.NewMemorySurface()
	var surface render.Surface = a.memory
	if opts.logSurface {
		surface = render.NewLogSurface(a.memory)
	}
	a.stage = render.New(surface, render.Options{FrameRate: defaultFrameRate})
	a.orch = playback.NewOrchestrator(a.synth, a.speaker, a.stage, playback.Options{})

	return a, nil
}

// applySpeed sets the playback rate. An explicit flag wins, then the
// project's own speed, then the configured default.
func (a *app) applySpeed(tl *timeline.Timeline, flag float64) error {
	rate := flag
	if rate == 0 && tl.PlaybackSpeed == 0 && a.cfg.Playback.Speed != 1 {
		rate = a.cfg.Playback.Speed
	}
	if rate == 0 {
		return nil
	}
	if err := audio.ValidateSpeed(rate); err != nil {
		return err
	}
	a.orch.SetSpeed(rate)
	return nil
}

// controller creates a controller for the project at path. Measured
// durations are written back to the project file.
func (a *app) controller(tl *timeline.Timeline, path string, cb playback.Callbacks) (*playback.Controller, error) {
	if a.orch == nil {
		return nil, errors.New("audio output is not enabled")
	}
	return playback.NewController(playback.ControllerConfig{
		Timeline:     tl,
		Orchestrator: a.orch,
		Store:        timeline.NewFileStore(path),
		Music:        a.music(tl, path),
		Callbacks:    cb,
		TickInterval: a.cfg.Playback.TickInterval,
	})
}

// music loads the project's background track. Music is optional, so
// problems are logged and playback goes on without it.
func (a *app) music(tl *timeline.Timeline, path string) playback.Music {
	if tl.Music == "" || a.device == nil {
		return nil
	}
	track := tl.Music
	if !filepath.IsAbs(track) {
		track = filepath.Join(filepath.Dir(path), track)
	}
	loop, err := audio.NewLoop(a.device, track, a.cfg.Playback.MusicVolume)
	if err != nil {
		log.Warn("background music disabled", "music", track, "error", err)
		return nil
	}
	return loop
}

func (a *app) Close() error {
	var errs []error
	if a.speaker != nil {
		errs = append(errs, a.speaker.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	return errors.Join(errs...)
}

// guidedError carries setup instructions for a failed engine.
type guidedError struct {
	err      error
	guidance string
}

func (e guidedError) Error() string { return e.err.Error() + "\n\n" + e.guidance }

func (e guidedError) Unwrap() error { return e.err }

func withGuidance(engine string, err error) error {
	if guide := engines.Guidance(engine, err); guide != "" {
		return guidedError{err: err, guidance: guide}
	}
	return err
}
