package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/scenecast/internal/wav"
)

// MockPlayer is a Backend that simulates playback with timers and produces
// no sound. It backs headless and muted playback as well as tests.
type MockPlayer struct {
	format wav.Format

	mu        sync.Mutex
	state     PlayerState
	gen       uint64
	timer     *time.Timer
	done      chan struct{}
	remaining time.Duration
	startedAt time.Time
	audioData []byte

	// delayFactor scales simulated time; 0.1 plays ten times faster.
	delayFactor float64
	failNext    error

	callbacks MockCallbacks

	playCount   atomic.Int64
	pauseCount  atomic.Int64
	resumeCount atomic.Int64
	stopCount   atomic.Int64
	endCount    atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay   func(pcm []byte)
	OnPause  func()
	OnResume func()
	OnStop   func()
	OnEnd    func()
}

// MockPlayerMetrics contains playback metrics for testing.
type MockPlayerMetrics struct {
	PlayCount   int64
	PauseCount  int64
	ResumeCount int64
	StopCount   int64
	EndCount    int64
}

// NewMockPlayer creates a mock backend for format.
func NewMockPlayer(format wav.Format) *MockPlayer {
	return &MockPlayer{format: format, state: StateStopped, delayFactor: 1}
}

// DefaultMockPlayer creates a mock backend at 44.1 kHz mono.
func DefaultMockPlayer() *MockPlayer {
	return NewMockPlayer(wav.Mono16(44100))
}

// Format returns the simulated device format.
func (mp *MockPlayer) Format() wav.Format { return mp.format }

// Play simulates playback of pcm.
func (mp *MockPlayer) Play(pcm []byte) (<-chan struct{}, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.state == StateClosed {
		return nil, errors.New("player is closed")
	}
	if err := mp.failNext; err != nil {
		mp.failNext = nil
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, errors.New("audio data is empty")
	}
	mp.stopLocked()

	mp.audioData = pcm
	mp.gen++
	mp.done = make(chan struct{})
	mp.remaining = mp.scale(mp.format.Duration(len(pcm)))
	mp.state = StatePlaying
	mp.arm()
	mp.playCount.Add(1)

	if mp.callbacks.OnPlay != nil {
		mp.callbacks.OnPlay(pcm)
	}
	return mp.done, nil
}

func (mp *MockPlayer) scale(seconds float64) time.Duration {
	return time.Duration(seconds * mp.delayFactor * float64(time.Second))
}

// arm starts the end-of-clip timer for the remaining time.
func (mp *MockPlayer) arm() {
	gen := mp.gen
	mp.startedAt = time.Now()
	mp.timer = time.AfterFunc(mp.remaining, func() { mp.finish(gen) })
}

func (mp *MockPlayer) finish(gen uint64) {
	mp.mu.Lock()
	if mp.gen != gen || mp.state != StatePlaying {
		mp.mu.Unlock()
		return
	}
	mp.state = StateStopped
	mp.timer = nil
	mp.audioData = nil
	done := mp.done
	onEnd := mp.callbacks.OnEnd
	mp.mu.Unlock()

	mp.endCount.Add(1)
	close(done)
	if onEnd != nil {
		onEnd()
	}
}

// Pause pauses the simulated clip.
func (mp *MockPlayer) Pause() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.state != StatePlaying {
		return fmt.Errorf("cannot pause: player is %s", mp.state)
	}
	if mp.timer != nil {
		if mp.timer.Stop() {
			mp.remaining -= time.Since(mp.startedAt)
			if mp.remaining < 0 {
				mp.remaining = 0
			}
		} else {
			// Already fired; the pending finish sees the pause and backs off.
			mp.remaining = 0
		}
	}
	mp.state = StatePaused
	mp.pauseCount.Add(1)

	if mp.callbacks.OnPause != nil {
		mp.callbacks.OnPause()
	}
	return nil
}

// Resume continues a paused clip from where it stopped.
func (mp *MockPlayer) Resume() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.state != StatePaused {
		return fmt.Errorf("cannot resume: player is %s", mp.state)
	}
	mp.state = StatePlaying
	mp.arm()
	mp.resumeCount.Add(1)

	if mp.callbacks.OnResume != nil {
		mp.callbacks.OnResume()
	}
	return nil
}

// Stop stops the simulated clip.
func (mp *MockPlayer) Stop() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.stopLocked()
	return nil
}

func (mp *MockPlayer) stopLocked() {
	if mp.state == StateStopped || mp.state == StateClosed {
		return
	}
	if mp.timer != nil {
		mp.timer.Stop()
		mp.timer = nil
	}
	mp.gen++
	mp.audioData = nil
	mp.state = StateStopped
	mp.stopCount.Add(1)

	if mp.callbacks.OnStop != nil {
		mp.callbacks.OnStop()
	}
}

// Close stops playback and rejects further clips.
func (mp *MockPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.stopLocked()
	mp.state = StateClosed
	return nil
}

// Test helpers

// State returns the current state.
func (mp *MockPlayer) State() PlayerState {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state
}

// SetDelayFactor scales simulated time for clips started afterwards.
// 1.0 is real time, 0.1 is ten times faster.
func (mp *MockPlayer) SetDelayFactor(factor float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if factor > 0 {
		mp.delayFactor = factor
	}
}

// SetCallbacks installs test hooks.
func (mp *MockPlayer) SetCallbacks(cb MockCallbacks) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.callbacks = cb
}

// FailNext makes the next Play return err.
func (mp *MockPlayer) FailNext(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.failNext = err
}

// AudioData returns the PCM of the current clip.
func (mp *MockPlayer) AudioData() []byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.audioData
}

// Metrics returns playback counters.
func (mp *MockPlayer) Metrics() MockPlayerMetrics {
	return MockPlayerMetrics{
		PlayCount:   mp.playCount.Load(),
		PauseCount:  mp.pauseCount.Load(),
		ResumeCount: mp.resumeCount.Load(),
		StopCount:   mp.stopCount.Load(),
		EndCount:    mp.endCount.Load(),
	}
}

var _ Backend = (*MockPlayer)(nil)
