package ui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/playback"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/watch"
)

const resynthTimeout = 2 * time.Minute

type (
	// actionMsg reports the outcome of a controller call.
	actionMsg struct {
		action string
		note   string
		err    error
		status playback.Status
	}

	frameMsg                struct{}
	reloadMsg               struct{}
	statusMessageTimeoutMsg struct{}

	speedMsg struct {
		rate float64
		err  error
	}

	reloadedMsg struct {
		tl      *timeline.Timeline
		changed bool
		err     error
	}
)

// Controller calls block on the coordinator, so they always run as
// commands rather than inside Update.
func control(c *playback.Controller, action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		err := fn()
		if err != nil && !errors.Is(err, playback.ErrClosed) {
			log.Debug("control failed", "action", action, "error", err)
		}
		return actionMsg{action: action, err: err, status: c.Status()}
	}
}

func togglePlayCmd(c *playback.Controller) tea.Cmd {
	return control(c, "play", func() error {
		switch c.Status().State {
		case playback.StateIdle:
			return c.Play()
		case playback.StatePreparing:
			return nil
		default:
			return c.TogglePause()
		}
	})
}

func stopCmd(c *playback.Controller) tea.Cmd {
	return control(c, "stop", c.Stop)
}

func seekByCmd(c *playback.Controller, delta float64) tea.Cmd {
	return control(c, "seek", func() error { return c.SeekBy(delta) })
}

// seekGroupCmd jumps to the start of the group offset groups away from the
// current one.
func seekGroupCmd(c *playback.Controller, offset int) tea.Cmd {
	return control(c, "seek", func() error {
		st := c.Status()
		tl := c.Timeline()
		if tl == nil {
			return playback.ErrClosed
		}
		layout := tl.Layout(nil)
		g := st.Position.Group + offset
		if offset < 0 && st.Current-st.Position.GroupStart > 1 {
			// Restart the current group first, like a music player.
			g = st.Position.Group
		}
		g = max(0, min(g, layout.Len()-1))
		return c.Seek(layout.GroupStart(g))
	})
}

func speedCmd(c *playback.Controller, rate float64) tea.Cmd {
	return func() tea.Msg {
		return speedMsg{rate: rate, err: c.SetSpeed(rate)}
	}
}

func resynthCmd(c *playback.Controller, scene int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), resynthTimeout)
		defer cancel()
		err := c.Resynthesize(ctx, scene)
		return actionMsg{action: "resynth", note: "Re-synthesized scene", err: err, status: c.Status()}
	}
}

func frameTick(fps int) tea.Cmd {
	if fps <= 0 {
		fps = 20
	}
	return tea.Tick(time.Second/time.Duration(fps), func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func watchCmd(ctx context.Context, w *watch.Watcher) tea.Cmd {
	return func() tea.Msg {
		if err := w.Next(ctx); err != nil {
			log.Debug("stopped watching project", "error", err)
			return nil
		}
		return reloadMsg{}
	}
}

// reloadCmd reads the project again and hands it to the controller unless
// only measured durations changed.
func reloadCmd(c *playback.Controller, path string) tea.Cmd {
	return func() tea.Msg {
		tl, err := timeline.Open(path)
		if err != nil {
			log.Error("unable to reload project", "path", path, "error", err)
			return reloadedMsg{err: err}
		}
		if tl.SameContent(c.Timeline()) {
			return reloadedMsg{}
		}
		log.Info("reloading project", "path", path)
		if err := c.Load(tl); err != nil {
			return reloadedMsg{err: err}
		}
		return reloadedMsg{tl: tl, changed: true}
	}
}
