package render

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/timeline"
)

// Ref identifies a group visual on a surface.
type Ref string

// Surface draws visuals and subtitles. Implementations must be safe for
// concurrent use.
type Surface interface {
	// SetVisual tells the surface what ref looks like.
	SetVisual(ref Ref, v timeline.Visual)

	Show(ref Ref, visible bool)
	Apply(ref Ref, f Frame)

	// SetText replaces the subtitle of ref.
	SetText(ref Ref, text string)

	// Attach re-attaches the subtitle node of ref.
	Attach(ref Ref)
	Attached(ref Ref) bool
}

// Node is the drawn state of one visual.
type Node struct {
	Visual   timeline.Visual
	Visible  bool
	Frame    Frame
	Text     string
	Attached bool
	Applied  int
}

// MemorySurface records visuals in memory. The headless player and the
// terminal UI read from it.
type MemorySurface struct {
	mu    sync.RWMutex
	nodes map[Ref]*Node
}

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{nodes: make(map[Ref]*Node)}
}

func (s *MemorySurface) node(ref Ref) *Node {
	n, ok := s.nodes[ref]
	if !ok {
		n = &Node{Frame: Identity(), Attached: true}
		s.nodes[ref] = n
	}
	return n
}

func (s *MemorySurface) SetVisual(ref Ref, v timeline.Visual) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.node(ref).Visual = v
}

func (s *MemorySurface) Show(ref Ref, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.node(ref).Visible = visible
}

func (s *MemorySurface) Apply(ref Ref, f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.node(ref)
	n.Frame = f
	n.Applied++
}

func (s *MemorySurface) SetText(ref Ref, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.node(ref).Text = text
}

func (s *MemorySurface) Attach(ref Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.node(ref).Attached = true
}

func (s *MemorySurface) Attached(ref Ref) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[ref]
	return !ok || n.Attached
}

// Detach removes the subtitle node of ref, as a UI rebuild would.
func (s *MemorySurface) Detach(ref Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.node(ref).Attached = false
}

// Node returns a copy of the drawn state of ref.
func (s *MemorySurface) Node(ref Ref) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[ref]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Visible returns the refs currently shown.
func (s *MemorySurface) Visible() []Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Ref
	for ref, n := range s.nodes {
		if n.Visible {
			out = append(out, ref)
		}
	}
	return out
}

// LogSurface wraps a surface and logs visibility and subtitle changes.
type LogSurface struct {
	Surface
}

// NewLogSurface logs changes made to s.
func NewLogSurface(s Surface) *LogSurface {
	return &LogSurface{Surface: s}
}

func (s *LogSurface) Show(ref Ref, visible bool) {
	log.Debug("visual", "ref", ref, "visible", visible)
	s.Surface.Show(ref, visible)
}

func (s *LogSurface) SetText(ref Ref, text string) {
	log.Info("subtitle", "ref", ref, "text", text)
	s.Surface.SetText(ref, text)
}
