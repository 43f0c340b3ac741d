package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/scenecast/internal/wav"
)

// pollInterval is how often a playing clip is checked for its natural end.
const pollInterval = 10 * time.Millisecond

// Player plays voice clips on a Device.
type Player struct {
	device *Device

	mu     sync.Mutex
	player *oto.Player

	// stream keeps the PCM alive while oto reads from it.
	stream *stream
	state  PlayerState
	volume float64
}

// stream holds the PCM of the active clip. The data must stay referenced
// until oto is done with it.
type stream struct {
	data   []byte
	reader *bytes.Reader
	done   chan struct{}
}

// NewPlayer creates a voice player on device.
func NewPlayer(device *Device) *Player {
	return &Player{device: device, state: StateStopped, volume: 1}
}

// Format returns the device format.
func (p *Player) Format() wav.Format { return p.device.Format() }

// Play starts playback of pcm, stopping the previous clip.
func (p *Player) Play(pcm []byte) (<-chan struct{}, error) {
	if len(pcm) == 0 {
		return nil, errors.New("audio data is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return nil, errors.New("player is closed")
	}
	p.stopLocked()

	// Own the data so callers can reuse their buffer.
	data := make([]byte, len(pcm))
	copy(data, pcm)
	s := &stream{data: data, reader: bytes.NewReader(data), done: make(chan struct{})}

	player := p.device.ctx.NewPlayer(s.reader)
	player.SetVolume(p.volume)
	player.Play()

	p.player = player
	p.stream = s
	p.state = StatePlaying

	go p.watch(player, s)
	return s.done, nil
}

// watch closes the stream's done channel once oto has drained it.
func (p *Player) watch(player *oto.Player, s *stream) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.player != player {
			p.mu.Unlock()
			return
		}
		if p.state == StatePlaying && !player.IsPlaying() {
			p.releaseLocked()
			p.state = StateStopped
			p.mu.Unlock()
			close(s.done)
			return
		}
		p.mu.Unlock()
	}
}

// Pause pauses the current clip.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying {
		return fmt.Errorf("cannot pause: player is %s", p.state)
	}
	p.player.Pause()
	p.state = StatePaused
	return nil
}

// Resume resumes a paused clip.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePaused {
		return fmt.Errorf("cannot resume: player is %s", p.state)
	}
	p.player.Play()
	p.state = StatePlaying
	return nil
}

// Stop stops playback and releases the clip.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if p.state == StateStopped || p.state == StateClosed {
		return
	}
	p.releaseLocked()
	p.state = StateStopped
}

func (p *Player) releaseLocked() {
	if p.player != nil {
		p.player.Pause()
		_ = p.player.Close()
		p.player = nil
	}
	if p.stream != nil {
		p.stream.data = nil
		p.stream.reader = nil
		p.stream = nil
	}
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if p.player != nil {
		p.player.SetVolume(volume)
	}
	return nil
}

// State returns the current player state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close stops playback. The device stays open; oto contexts live for the
// whole process.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.state = StateClosed
	return nil
}

var _ Backend = (*Player)(nil)
