package render

// State is the lifecycle state of a visual.
type State int

const (
	StateHidden State = iota
	StateEntering
	StateVisible
)

func (s State) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateEntering:
		return "entering"
	case StateVisible:
		return "visible"
	default:
		return "unknown"
	}
}

// transitions lists the states reachable from each state. Entering may
// restart itself when an entrance is replaced.
var transitions = map[State][]State{
	StateHidden:   {StateEntering, StateVisible},
	StateEntering: {StateVisible, StateHidden, StateEntering},
	StateVisible:  {StateHidden, StateEntering, StateVisible},
}

// stateMachine tracks one visual. It is guarded by the renderer's mutex.
type stateMachine struct {
	current State
	onEnter map[State]func()
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateHidden, onEnter: make(map[State]func())}
}

// Transition moves to the given state and reports whether it was allowed.
func (sm *stateMachine) Transition(to State) bool {
	valid := false
	for _, s := range transitions[sm.current] {
		if s == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	sm.current = to
	if fn := sm.onEnter[to]; fn != nil {
		fn()
	}
	return true
}

// Current returns the current state.
func (sm *stateMachine) Current() State {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *stateMachine) OnEnter(state State, fn func()) {
	sm.onEnter[state] = fn
}
