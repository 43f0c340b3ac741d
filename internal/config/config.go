// Package config holds the scenecast configuration file model.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/scenecast/internal/audio"
	"github.com/dgnsrekt/scenecast/internal/cache"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/tts/engines"
)

// AppName names the config file, env prefix and app directories.
const AppName = "scenecast"

// Config is the decoded scenecast.yml.
type Config struct {
	TTS       engines.Config     `mapstructure:"tts"`
	Synthesis SynthesisConfig    `mapstructure:"synthesis"`
	Cache     CacheConfig        `mapstructure:"cache"`
	Audio     audio.DeviceConfig `mapstructure:"audio"`
	Playback  PlaybackConfig     `mapstructure:"playback"`
}

// SynthesisConfig tunes the reconciler.
type SynthesisConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Retries     int           `mapstructure:"retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// Options converts to reconciler options.
func (s SynthesisConfig) Options() tts.Options {
	return tts.Options{Concurrency: s.Concurrency, Retries: s.Retries, RetryDelay: s.RetryDelay}
}

// CacheConfig configures the synthesis cache. Sizes are in megabytes.
type CacheConfig struct {
	Dir             string        `mapstructure:"dir"`
	MaxEntries      int           `mapstructure:"max_entries"`
	MaxSize         int           `mapstructure:"max_size"`
	SpoolThreshold  int           `mapstructure:"spool_threshold"`
	Disk            bool          `mapstructure:"disk"`
	DiskSize        int           `mapstructure:"disk_size"`
	Compression     int           `mapstructure:"compression"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

const mb = 1024 * 1024

// Cache converts to a cache configuration rooted at Dir.
func (c CacheConfig) Cache() cache.Config {
	cfg := cache.Config{
		MaxEntries:       c.MaxEntries,
		MaxBytes:         int64(c.MaxSize) * mb,
		SpoolThreshold:   int64(c.SpoolThreshold) * mb,
		DiskCapacity:     int64(c.DiskSize) * mb,
		CompressionLevel: c.Compression,
		TTL:              c.TTL,
		CleanupInterval:  c.CleanupInterval,
	}
	if c.Dir != "" {
		cfg.SpoolDir = filepath.Join(c.Dir, "spool")
		if c.Disk {
			cfg.DiskPath = filepath.Join(c.Dir, "audio")
		}
	}
	return cfg
}

// PlaybackConfig holds playback defaults. A project's own playback speed
// wins over Speed.
type PlaybackConfig struct {
	Speed        float64       `mapstructure:"speed"`
	Volume       float64       `mapstructure:"volume"`
	MusicVolume  float64       `mapstructure:"music_volume"`
	TickInterval time.Duration `mapstructure:"tick"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TTS: engines.Config{
			Engine: engines.NamePiper,
			Piper: engines.PiperConfig{
				Binary:      "piper",
				Model:       "en_US-lessac-medium",
				LengthScale: 1.0,
				Timeout:     30 * time.Second,
			},
			GTTS: engines.GTTSConfig{
				CLI:               "gtts-cli",
				FFmpeg:            "ffmpeg",
				Language:          "en",
				RequestsPerMinute: 50,
				Timeout:           30 * time.Second,
			},
			Mock: engines.MockConfig{
				SampleRate:     22050,
				WordsPerMinute: 150,
				Delay:          100 * time.Millisecond,
			},
		},
		Synthesis: SynthesisConfig{
			Concurrency: 4,
			Retries:     2,
			RetryDelay:  500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Dir:             DefaultCacheDir(),
			MaxEntries:      512,
			MaxSize:         256,
			SpoolThreshold:  4,
			Disk:            true,
			DiskSize:        1024,
			Compression:     3,
			TTL:             7 * 24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Audio: audio.DefaultDeviceConfig(),
		Playback: PlaybackConfig{
			Speed:        1.0,
			Volume:       1.0,
			MusicVolume:  0.25,
			TickInterval: 100 * time.Millisecond,
		},
	}
}

// DefaultCacheDir returns the user cache directory for scenecast.
func DefaultCacheDir() string {
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil {
		return filepath.Join(".", ".scenecast-cache")
	}
	return dir
}

// SetDefaults registers Default with v so that every key is known to
// AutomaticEnv and Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("tts.engine", d.TTS.Engine)
	v.SetDefault("tts.piper.binary", d.TTS.Piper.Binary)
	v.SetDefault("tts.piper.model", d.TTS.Piper.Model)
	v.SetDefault("tts.piper.model_dir", d.TTS.Piper.ModelDir)
	v.SetDefault("tts.piper.length_scale", d.TTS.Piper.LengthScale)
	v.SetDefault("tts.piper.timeout", d.TTS.Piper.Timeout)
	v.SetDefault("tts.gtts.cli", d.TTS.GTTS.CLI)
	v.SetDefault("tts.gtts.ffmpeg", d.TTS.GTTS.FFmpeg)
	v.SetDefault("tts.gtts.language", d.TTS.GTTS.Language)
	v.SetDefault("tts.gtts.slow", d.TTS.GTTS.Slow)
	v.SetDefault("tts.gtts.requests_per_minute", d.TTS.GTTS.RequestsPerMinute)
	v.SetDefault("tts.gtts.timeout", d.TTS.GTTS.Timeout)
	v.SetDefault("tts.mock.sample_rate", d.TTS.Mock.SampleRate)
	v.SetDefault("tts.mock.words_per_minute", d.TTS.Mock.WordsPerMinute)
	v.SetDefault("tts.mock.delay", d.TTS.Mock.Delay)

	v.SetDefault("synthesis.concurrency", d.Synthesis.Concurrency)
	v.SetDefault("synthesis.retries", d.Synthesis.Retries)
	v.SetDefault("synthesis.retry_delay", d.Synthesis.RetryDelay)

	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.spool_threshold", d.Cache.SpoolThreshold)
	v.SetDefault("cache.disk", d.Cache.Disk)
	v.SetDefault("cache.disk_size", d.Cache.DiskSize)
	v.SetDefault("cache.compression", d.Cache.Compression)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)

	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.buffer", d.Audio.BufferSize)

	v.SetDefault("playback.speed", d.Playback.Speed)
	v.SetDefault("playback.volume", d.Playback.Volume)
	v.SetDefault("playback.music_volume", d.Playback.MusicVolume)
	v.SetDefault("playback.tick", d.Playback.TickInterval)
}

// FromViper decodes and validates the configuration held by v. Paths have
// "~" expanded.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode configuration: %w", err)
	}

	var err error
	for _, p := range []*string{&cfg.Cache.Dir, &cfg.TTS.Piper.ModelDir, &cfg.TTS.Piper.Model, &cfg.TTS.GTTS.TempDir} {
		if *p, err = homedir.Expand(*p); err != nil {
			return cfg, fmt.Errorf("unable to expand path %q: %w", *p, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate range checks every value.
func (c *Config) Validate() error {
	c.TTS.Engine = strings.ToLower(strings.TrimSpace(c.TTS.Engine))
	switch c.TTS.Engine {
	case engines.NamePiper, engines.NameGTTS, engines.NameMock:
	case "google":
		c.TTS.Engine = engines.NameGTTS
	default:
		return fmt.Errorf("invalid TTS engine %q: must be one of piper, gtts, mock", c.TTS.Engine)
	}

	if c.TTS.Piper.LengthScale < 0.1 || c.TTS.Piper.LengthScale > 3.0 {
		return fmt.Errorf("piper length_scale must be between 0.1 and 3.0, got %.2f", c.TTS.Piper.LengthScale)
	}
	if lang := c.TTS.GTTS.Language; len(lang) < 2 || len(lang) > 5 {
		return fmt.Errorf("gtts language code must be 2-5 characters, got %q", lang)
	}
	if c.TTS.GTTS.RequestsPerMinute < 1 || c.TTS.GTTS.RequestsPerMinute > 600 {
		return fmt.Errorf("gtts requests_per_minute must be between 1 and 600, got %d", c.TTS.GTTS.RequestsPerMinute)
	}

	if c.Synthesis.Concurrency < 1 || c.Synthesis.Concurrency > 32 {
		return fmt.Errorf("synthesis concurrency must be between 1 and 32, got %d", c.Synthesis.Concurrency)
	}
	if c.Synthesis.Retries < 0 || c.Synthesis.Retries > 10 {
		return fmt.Errorf("synthesis retries must be between 0 and 10, got %d", c.Synthesis.Retries)
	}
	if c.Synthesis.RetryDelay < 0 {
		return fmt.Errorf("synthesis retry_delay must not be negative, got %s", c.Synthesis.RetryDelay)
	}

	if c.Cache.MaxSize < 1 || c.Cache.MaxSize > 10000 {
		return fmt.Errorf("cache max_size must be between 1 and 10000 MB, got %d", c.Cache.MaxSize)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache max_entries must not be negative, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.Compression < 1 || c.Cache.Compression > 22 {
		return fmt.Errorf("cache compression must be between 1 and 22, got %d", c.Cache.Compression)
	}
	if c.Cache.Disk && c.Cache.Dir == "" {
		return fmt.Errorf("cache dir is required when the disk cache is enabled")
	}

	if err := c.Audio.Validate(); err != nil {
		return err
	}

	if err := audio.ValidateSpeed(c.Playback.Speed); err != nil {
		return fmt.Errorf("playback speed: %w", err)
	}
	if c.Playback.Volume < 0 || c.Playback.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %.2f", c.Playback.Volume)
	}
	if c.Playback.MusicVolume < 0 || c.Playback.MusicVolume > 1 {
		return fmt.Errorf("music_volume must be between 0.0 and 1.0, got %.2f", c.Playback.MusicVolume)
	}
	if c.Playback.TickInterval < 10*time.Millisecond {
		return fmt.Errorf("playback tick must be at least 10ms, got %s", c.Playback.TickInterval)
	}
	return nil
}
