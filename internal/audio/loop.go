package audio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/scenecast/internal/wav"
)

// Loop plays a WAV track on repeat underneath the voice.
type Loop struct {
	device *Device
	volume float64
	reader *loopReader

	mu     sync.Mutex
	player *oto.Player
}

// NewLoop loads a WAV track for looped playback at volume.
func NewLoop(device *Device, path string, volume float64) (*Loop, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read music: %w", err)
	}
	clip, err := wav.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode music %s: %w", path, err)
	}
	pcm := Convert(clip, device.Format(), 1)
	if len(pcm) == 0 {
		return nil, fmt.Errorf("music %s is empty", path)
	}
	return &Loop{device: device, volume: volume, reader: &loopReader{data: pcm}}, nil
}

// Start begins the track from the top.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.player != nil {
		_ = l.player.Close()
	}
	l.reader = &loopReader{data: l.reader.data}
	l.player = l.device.ctx.NewPlayer(l.reader)
	l.player.SetVolume(l.volume)
	l.player.Play()
	return nil
}

// Pause pauses the track.
func (l *Loop) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.player != nil {
		l.player.Pause()
	}
}

// Resume continues the track.
func (l *Loop) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.player != nil {
		l.player.Play()
	}
}

// Stop stops and releases the track player.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.player != nil {
		l.player.Pause()
		_ = l.player.Close()
		l.player = nil
	}
}

// loopReader reads data forever, wrapping at the end.
type loopReader struct {
	data []byte
	pos  int
}

func (r *loopReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		c := copy(p[n:], r.data[r.pos:])
		n += c
		r.pos = (r.pos + c) % len(r.data)
	}
	return n, nil
}
