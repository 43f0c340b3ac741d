package render

import (
	"sync"

	"github.com/dgnsrekt/scenecast/internal/timeline"
)

// Handle is a running entrance animation.
type Handle struct {
	r    *Renderer
	ref  Ref
	prev Ref
	kind timeline.TransitionKind

	onComplete func()

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}

	// finished and canceled are guarded by the renderer's mutex; exactly
	// one of them is set.
	finished bool
	canceled bool
}

// Ref returns the visual being animated.
func (h *Handle) Ref() Ref { return h.ref }

// Kind returns the transition kind.
func (h *Handle) Kind() timeline.TransitionKind { return h.kind }

// Done is closed when the animation goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel stops the animation and waits for it to exit. The visual is
// snapped to its resting frame and onComplete is never called. Cancelling a
// finished handle is a no-op.
func (h *Handle) Cancel() {
	r := h.r
	r.mu.Lock()
	if h.finished || h.canceled {
		r.mu.Unlock()
		return
	}
	h.canceled = true
	if r.handles[h.ref] == h {
		delete(r.handles, h.ref)
	}
	r.mu.Unlock()

	h.cancelOnce.Do(func() { close(h.cancel) })
	<-h.done

	r.mu.Lock()
	defer r.mu.Unlock()
	r.settle(h)
}
