package render

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/timeline"
)

// Options tunes a Renderer.
type Options struct {
	// FrameRate is the number of animation frames per second.
	FrameRate int

	// TimeScale multiplies every animation duration. Tests use values
	// below 1 to run faster than real time.
	TimeScale float64
}

// DefaultOptions returns 30 frames per second in real time.
func DefaultOptions() Options {
	return Options{FrameRate: 30, TimeScale: 1}
}

// Renderer owns the visual state of every ref and at most one animation
// handle per ref.
type Renderer struct {
	surface Surface
	opts    Options
	clock   clock

	mu       sync.Mutex
	machines map[Ref]*stateMachine
	handles  map[Ref]*Handle
}

// New creates a renderer drawing on surface.
func New(surface Surface, opts Options) *Renderer {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	if opts.TimeScale <= 0 {
		opts.TimeScale = 1
	}
	return &Renderer{
		surface:  surface,
		opts:     opts,
		machines: make(map[Ref]*stateMachine),
		handles:  make(map[Ref]*Handle),
	}
}

// Load describes the visual of ref to the surface.
func (r *Renderer) Load(ref Ref, v timeline.Visual) {
	r.surface.SetVisual(ref, v)
}

// machine returns the state machine of ref. Callers hold r.mu.
func (r *Renderer) machine(ref Ref) *stateMachine {
	sm, ok := r.machines[ref]
	if ok {
		return sm
	}
	sm = newStateMachine()
	sm.OnEnter(StateHidden, func() { r.surface.Show(ref, false) })
	sm.OnEnter(StateEntering, func() { r.surface.Show(ref, true) })
	sm.OnEnter(StateVisible, func() {
		r.surface.Apply(ref, Identity())
		r.surface.Show(ref, true)
	})
	r.machines[ref] = sm
	return sm
}

// State returns the lifecycle state of ref.
func (r *Renderer) State(ref Ref) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sm, ok := r.machines[ref]; ok {
		return sm.Current()
	}
	return StateHidden
}

// ActiveHandles returns the number of running animations.
func (r *Renderer) ActiveHandles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Handle returns the running animation of ref, if any.
func (r *Renderer) Handle(ref Ref) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[ref]
	return h, ok
}

// cancel cancels the live handle of ref, if any.
func (r *Renderer) cancel(ref Ref) {
	r.mu.Lock()
	h := r.handles[ref]
	r.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// Enter animates ref in with kind over duration seconds. Live animations
// on ref and prev are cancelled first. prev, when set, is hidden at once
// for replace kinds and when the entrance ends for overlay kinds.
// onComplete runs once if the entrance is not interrupted; it runs before
// Enter returns for an instant entrance, and the returned handle is nil.
func (r *Renderer) Enter(ref Ref, kind timeline.TransitionKind, duration float64, prev Ref, onComplete func()) *Handle {
	if prev == ref {
		prev = ""
	}
	for {
		r.cancel(ref)
		if prev != "" {
			r.cancel(prev)
		}
		r.mu.Lock()
		if r.handles[ref] == nil && (prev == "" || r.handles[prev] == nil) {
			break
		}
		r.mu.Unlock()
	}

	if prev != "" && kind.HidesPreviousImmediately() {
		r.machine(prev).Transition(StateHidden)
	}

	if kind == timeline.TransitionNone || kind == "" || duration <= 0 {
		r.machine(ref).Transition(StateVisible)
		if prev != "" {
			r.machine(prev).Transition(StateHidden)
		}
		r.mu.Unlock()
		log.Debug("entered", "ref", ref, "kind", kind)
		if onComplete != nil {
			onComplete()
		}
		return nil
	}

	h := &Handle{
		r:          r,
		ref:        ref,
		prev:       prev,
		kind:       kind,
		onComplete: onComplete,
		cancel:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.surface.Apply(ref, FrameAt(kind, 0))
	r.machine(ref).Transition(StateEntering)
	r.handles[ref] = h
	r.mu.Unlock()

	length := time.Duration(duration * r.opts.TimeScale * float64(time.Second))
	go r.animate(h, length)
	return h
}

func (r *Renderer) animate(h *Handle, length time.Duration) {
	defer close(h.done)

	ticker := time.NewTicker(time.Second / time.Duration(r.opts.FrameRate))
	defer ticker.Stop()

	start := r.clock.now()
	for {
		select {
		case <-h.cancel:
			return
		case <-ticker.C:
		}
		if r.clock.isPaused() {
			continue
		}

		p := float64(r.clock.now()-start) / float64(length)
		if p < 1 {
			r.surface.Apply(h.ref, FrameAt(h.kind, p))
			continue
		}

		r.mu.Lock()
		if h.canceled {
			r.mu.Unlock()
			return
		}
		h.finished = true
		if r.handles[h.ref] == h {
			delete(r.handles, h.ref)
		}
		r.settle(h)
		r.mu.Unlock()

		log.Debug("entered", "ref", h.ref, "kind", h.kind)
		if h.onComplete != nil {
			h.onComplete()
		}
		return
	}
}

// settle brings the visuals of h to where the entrance would have left
// them. Callers hold r.mu.
func (r *Renderer) settle(h *Handle) {
	if sm := r.machine(h.ref); sm.Current() == StateEntering {
		sm.Transition(StateVisible)
	}
	if h.prev == "" || h.prev == h.ref {
		return
	}
	if _, busy := r.handles[h.prev]; !busy {
		r.machine(h.prev).Transition(StateHidden)
	}
}

// ShowSegment replaces the subtitle of ref without re-entering it.
func (r *Renderer) ShowSegment(ref Ref, text string) {
	if !r.surface.Attached(ref) {
		r.surface.Attach(ref)
	}
	r.surface.SetText(ref, text)
}

// Hide cancels any animation of ref and hides it.
func (r *Renderer) Hide(ref Ref) {
	r.cancel(ref)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.machine(ref).Transition(StateHidden)
}

// ForceVisible cancels any animation of ref and shows its visual and
// subtitle at rest.
func (r *Renderer) ForceVisible(ref Ref) {
	r.cancel(ref)

	r.mu.Lock()
	r.machine(ref).Transition(StateVisible)
	r.mu.Unlock()

	if !r.surface.Attached(ref) {
		r.surface.Attach(ref)
	}
}

// KillAll cancels every running animation.
func (r *Renderer) KillAll() {
	r.mu.Lock()
	live := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		live = append(live, h)
	}
	r.mu.Unlock()

	for _, h := range live {
		h.Cancel()
	}
}

// Pause freezes every animation.
func (r *Renderer) Pause() { r.clock.pause() }

// Resume continues frozen animations.
func (r *Renderer) Resume() { r.clock.resume() }
