package playback

import (
	"context"

	"github.com/google/uuid"

	"github.com/dgnsrekt/scenecast/internal/render"
	"github.com/dgnsrekt/scenecast/internal/timeline"
)

// State is the controller's playback state.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// stateMachine validates controller state changes.
type stateMachine struct {
	current     State
	transitions map[State][]State
	onEnter     func(State)
}

func newStateMachine(onEnter func(State)) *stateMachine {
	return &stateMachine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:      {StatePreparing},
			StatePreparing: {StatePlaying, StateIdle},
			StatePlaying:   {StatePaused, StateIdle},
			StatePaused:    {StatePlaying, StateIdle},
		},
		onEnter: onEnter,
	}
}

// Can reports whether the machine may move to state to.
func (sm *stateMachine) Can(to State) bool {
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition attempts to move to state to.
func (sm *stateMachine) Transition(to State) bool {
	if !sm.Can(to) {
		return false
	}
	sm.current = to
	if sm.onEnter != nil {
		sm.onEnter(to)
	}
	return true
}

// Current returns the current state.
func (sm *stateMachine) Current() State {
	return sm.current
}

// Session is one Play..Stop run. It is owned by the coordinator goroutine.
type Session struct {
	ID  string
	Gen uint64

	ctx    context.Context
	cancel context.CancelFunc

	// Position is the active group and segment, Ref its visual.
	Position timeline.Position
	Ref      render.Ref
	// Prev is the visual of the last group that finished entering.
	Prev render.Ref

	// Pending is a seek waiting for the next segment boundary.
	Pending *timeline.Position

	// Progress is base + min(elapsed since mark, span).
	base float64
	span float64
	mark stamp

	// jumped is set when a seek was taken and the cursor may move back.
	jumped bool

	working bool
	cleaned bool
}

func newSession(parent context.Context, gen uint64) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{ID: uuid.NewString(), Gen: gen, ctx: ctx, cancel: cancel}
}

// Status is a snapshot of the controller.
type Status struct {
	State     State
	SessionID string
	Current   float64
	Total     float64
	Position  timeline.Position
}
