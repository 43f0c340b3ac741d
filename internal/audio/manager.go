package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/cache"
	"github.com/dgnsrekt/scenecast/internal/wav"
)

// DurationEpsilon is how far, in seconds, a decoded clip may differ from its
// cached duration before the cache is corrected.
const DurationEpsilon = 0.1

// Outcome describes how a Play call ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeStopped
	OutcomeCanceled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeStopped:
		return "stopped"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports one Play call.
type Result struct {
	Outcome Outcome

	// Decoded is the clip length in seconds as decoded from the payload.
	Decoded float64

	// Elapsed is the wall-clock time spent in Play, Paused included.
	Elapsed time.Duration
	Paused  time.Duration

	// Corrected is set when the cached duration was replaced by Decoded.
	Corrected bool

	Err error
}

// DurationCorrector replaces a cached entry with one carrying a measured
// duration. *cache.Cache implements it.
type DurationCorrector interface {
	CorrectDuration(key string, d float64) (cache.Entry, bool)
}

// Manager owns at most one playing clip.
type Manager struct {
	backend   Backend
	corrector DurationCorrector

	// playMu serializes Play calls.
	playMu sync.Mutex

	mu      sync.Mutex
	current *clip
	// pending is a clip still being decoded. Stop halts it too.
	pending *clip
	paused  bool
}

// clip is the bookkeeping of one Play call.
type clip struct {
	stop     chan struct{}
	once     sync.Once
	pausedAt time.Time
	paused   time.Duration
}

func (c *clip) halt() {
	c.once.Do(func() { close(c.stop) })
}

func (c *clip) halted() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *clip) pausedFor(now time.Time) time.Duration {
	d := c.paused
	if !c.pausedAt.IsZero() {
		d += now.Sub(c.pausedAt)
	}
	return d
}

// NewManager creates a manager playing through backend. corrector may be
// nil.
func NewManager(backend Backend, corrector DurationCorrector) *Manager {
	return &Manager{backend: backend, corrector: corrector}
}

// Play plays e at rate and returns when the clip ends, fails, is stopped or
// ctx is done. Any clip already playing is stopped first.
func (m *Manager) Play(ctx context.Context, e cache.Entry, rate float64) Result {
	c := &clip{stop: make(chan struct{})}

	// Claim the manager before waiting for the previous call, so that call
	// is stopped even while it is still decoding.
	m.mu.Lock()
	m.stopLocked()
	m.pending = c
	m.mu.Unlock()

	m.playMu.Lock()
	defer m.playMu.Unlock()

	start := time.Now()
	failed := func(err error) Result {
		m.release(c)
		log.Warn("audio playback failed", "key", e.Key, "error", err)
		return Result{Outcome: OutcomeFailed, Elapsed: time.Since(start), Err: err}
	}

	data, err := e.Payload.Bytes()
	if err != nil {
		return failed(fmt.Errorf("unable to read audio: %w", err))
	}
	decodedClip, err := wav.Decode(data)
	if err != nil {
		return failed(fmt.Errorf("unable to decode audio: %w", err))
	}
	decoded := decodedClip.Duration()
	pcm := Convert(decodedClip, m.backend.Format(), rate)
	if len(pcm) == 0 {
		return failed(fmt.Errorf("unable to decode audio: %w", wav.ErrUnsupportedFormat))
	}

	m.mu.Lock()
	if m.pending == c {
		m.pending = nil
	}
	if c.halted() {
		m.mu.Unlock()
		return Result{Outcome: OutcomeStopped, Decoded: decoded, Elapsed: time.Since(start)}
	}
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return Result{Outcome: OutcomeCanceled, Decoded: decoded, Err: err}
	}
	done, err := m.backend.Play(pcm)
	if err != nil {
		m.mu.Unlock()
		return failed(err)
	}
	m.current = c
	if m.paused {
		_ = m.backend.Pause()
		c.pausedAt = time.Now()
	}
	m.mu.Unlock()

	res := Result{Decoded: decoded}
	select {
	case <-done:
		res.Outcome = OutcomeCompleted
	case <-c.stop:
		res.Outcome = OutcomeStopped
	case <-ctx.Done():
		m.stopClip(c)
		res.Outcome = OutcomeCanceled
		res.Err = ctx.Err()
	}

	now := time.Now()
	m.mu.Lock()
	if m.current == c {
		m.current = nil
	}
	res.Paused = c.pausedFor(now)
	m.mu.Unlock()
	res.Elapsed = now.Sub(start)

	if res.Outcome == OutcomeCompleted {
		res.Corrected = m.correct(e, decoded)
	}
	return res
}

// correct writes the decoded duration back when it disagrees with the
// cached one.
func (m *Manager) correct(e cache.Entry, decoded float64) bool {
	if m.corrector == nil || e.Key == "" {
		return false
	}
	if math.Abs(decoded-e.Duration) <= DurationEpsilon {
		return false
	}
	_, ok := m.corrector.CorrectDuration(e.Key, decoded)
	return ok
}

// Stop stops and releases the current clip. It is safe to call at any time
// and any number of times.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.pending != nil {
		m.pending.halt()
		m.pending = nil
	}
	if m.current != nil {
		m.current.halt()
		m.current = nil
	}
	if err := m.backend.Stop(); err != nil {
		log.Debug("audio stop", "error", err)
	}
}

// stopClip stops c if it still owns the backend.
func (m *Manager) stopClip(c *clip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != c {
		return
	}
	c.halt()
	m.current = nil
	if err := m.backend.Stop(); err != nil {
		log.Debug("audio stop", "error", err)
	}
}

// release forgets c if it never started.
func (m *Manager) release(c *clip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == c {
		m.pending = nil
	}
}

// Pause holds playback. A clip started while paused starts paused.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		return
	}
	m.paused = true
	if m.current != nil {
		_ = m.backend.Pause()
		m.current.pausedAt = time.Now()
	}
}

// Resume releases a Pause.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.paused {
		return
	}
	m.paused = false
	if c := m.current; c != nil {
		if !c.pausedAt.IsZero() {
			c.paused += time.Since(c.pausedAt)
			c.pausedAt = time.Time{}
		}
		_ = m.backend.Resume()
	}
}

// Paused reports whether playback is held.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Playing reports whether a clip is owned.
func (m *Manager) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Close stops playback and closes the backend.
func (m *Manager) Close() error {
	m.Stop()
	return m.backend.Close()
}
