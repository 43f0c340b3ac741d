package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/playback"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/tts"
)

const eventBuffer = 256

type (
	progressMsg struct {
		current float64
		total   float64
	}
	stateMsg     playback.State
	segmentMsg   timeline.Position
	groupDoneMsg struct {
		key    string
		actual float64
	}
	synthFailedMsg []tts.Failure
)

// Events turns controller callbacks into tea messages.
type Events struct {
	ch chan tea.Msg
}

// NewEvents creates an event bridge.
func NewEvents() *Events {
	return &Events{ch: make(chan tea.Msg, eventBuffer)}
}

// Callbacks returns controller callbacks that feed the bridge. They never
// block the controller; when the UI falls behind, messages are dropped.
func (e *Events) Callbacks() playback.Callbacks {
	return playback.Callbacks{
		Progress: func(current, total float64) {
			e.send(progressMsg{current: current, total: total})
		},
		GroupCompleted: func(key string, actual float64) {
			e.send(groupDoneMsg{key: key, actual: actual})
		},
		StateChanged: func(s playback.State) {
			e.send(stateMsg(s))
		},
		SynthesisFailed: func(failures []tts.Failure) {
			e.send(synthFailedMsg(failures))
		},
		SegmentChanged: func(pos timeline.Position) {
			e.send(segmentMsg(pos))
		},
	}
}

func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	default:
		log.Debug("ui event dropped", "msg", msg)
	}
}

// wait reads the next controller event.
func (e *Events) wait() tea.Cmd {
	return func() tea.Msg {
		return <-e.ch
	}
}
