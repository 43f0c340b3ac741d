package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/scenecast/internal/wav"
)

// DeviceConfig contains configuration for the audio device.
type DeviceConfig struct {
	SampleRate int           `mapstructure:"sample_rate"` // 44100 or 48000 Hz only
	Channels   int           `mapstructure:"channels"`    // 1 = mono, 2 = stereo
	BufferSize time.Duration `mapstructure:"buffer"`
}

// DefaultDeviceConfig returns the default device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		SampleRate: 44100,
		Channels:   2,
		BufferSize: 50 * time.Millisecond,
	}
}

// Validate checks the device configuration.
func (c DeviceConfig) Validate() error {
	// oto only supports these sample rates reliably
	if c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", c.Channels)
	}
	if c.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// Format returns the PCM format of the device.
func (c DeviceConfig) Format() wav.Format {
	return wav.Format{SampleRate: c.SampleRate, Channels: c.Channels, BitsPerSample: 16}
}

// Device is the process-wide oto context. oto allows only one per process,
// so the voice Player and the music Loop share it.
type Device struct {
	ctx    *oto.Context
	format wav.Format
}

// NewDevice opens the audio device and waits until it is ready.
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio config: %w", err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &Device{ctx: ctx, format: cfg.Format()}, nil
}

// Format returns the PCM format the device expects.
func (d *Device) Format() wav.Format { return d.format }

// Err reports an asynchronous device error.
func (d *Device) Err() error { return d.ctx.Err() }
