// Package ui provides the terminal player for scenecast.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/scenecast/internal/audio"
	"github.com/dgnsrekt/scenecast/internal/cache"
	"github.com/dgnsrekt/scenecast/internal/playback"
	"github.com/dgnsrekt/scenecast/internal/render"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/tts/engines"
	"github.com/dgnsrekt/scenecast/internal/watch"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied!"
	ellipsis             = "…"

	statusBarHeight   = 1
	progressBarHeight = 1
)

// Player is what the UI drives.
type Player struct {
	Controller *playback.Controller
	Surface    *render.MemorySurface
	Events     *Events

	// Optional.
	Cache   *cache.Cache
	Watcher *watch.Watcher
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, p Player) *tea.Program {
	log.Debug("Starting scenecast player", "path", cfg.Path, "watch", cfg.Watch, "fps", cfg.FrameRate)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, p), opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type model struct {
	cfg    Config
	player Player
	keys   keyMap

	help     help.Model
	progress progress.Model
	spinner  spinner.Model

	width  int
	height int

	tl     *timeline.Timeline
	groups []timeline.Group

	state   playback.State
	current float64
	total   float64
	pos     timeline.Position
	speed   float64
	stats   cache.Stats

	showHelp           bool
	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer

	failures []tts.Failure
	fatalErr error

	watchCtx    context.Context
	cancelWatch context.CancelFunc
}

func newModel(cfg Config, p Player) model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(fuchsia)

	m := model{
		cfg:      cfg,
		player:   p,
		keys:     newKeyMap(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spinner:  sp,
		speed:    1,
	}
	m.watchCtx, m.cancelWatch = context.WithCancel(context.Background())

	if p.Controller == nil {
		m.fatalErr = playback.ErrClosed
		return m
	}
	m.setTimeline(p.Controller.Timeline())
	m.speed = p.Controller.Speed()
	st := p.Controller.Status()
	m.state, m.current, m.total, m.pos = st.State, st.Current, st.Total, st.Position
	if p.Cache != nil {
		m.stats = p.Cache.Stats()
	}
	return m
}

func (m *model) setTimeline(tl *timeline.Timeline) {
	if tl == nil {
		return
	}
	m.tl = tl
	m.groups = tl.Groups()
}

// currentRef is the surface ref of the group under the cursor.
func (m model) currentRef() render.Ref {
	if m.pos.Group < 0 || m.pos.Group >= len(m.groups) {
		return ""
	}
	return playback.GroupRef(m.groups[m.pos.Group])
}

func (m model) Init() tea.Cmd {
	if m.fatalErr != nil {
		return nil
	}
	cmds := []tea.Cmd{
		m.player.Events.wait(),
		m.spinner.Tick,
		frameTick(m.cfg.FrameRate),
	}
	if m.cfg.Watch && m.player.Watcher != nil {
		cmds = append(cmds, watchCmd(m.watchCtx, m.player.Watcher))
	}
	if m.cfg.Autoplay {
		cmds = append(cmds, togglePlayCmd(m.player.Controller))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd
	c := m.player.Controller

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.ForceQuit), key.Matches(msg, m.keys.Quit):
			m.cancelWatch()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Play):
			return m, togglePlayCmd(c)

		case key.Matches(msg, m.keys.Stop):
			return m, stopCmd(c)

		case key.Matches(msg, m.keys.Back):
			return m, seekByCmd(c, -m.cfg.SeekStep.Seconds())

		case key.Matches(msg, m.keys.Forward):
			return m, seekByCmd(c, m.cfg.SeekStep.Seconds())

		case key.Matches(msg, m.keys.PrevGroup):
			return m, seekGroupCmd(c, -1)

		case key.Matches(msg, m.keys.NextGroup):
			return m, seekGroupCmd(c, 1)

		case key.Matches(msg, m.keys.Faster):
			rate := audio.FasterSpeed(m.speed)
			if rate == m.speed {
				return m, m.showStatusMessage("Already at maximum speed", false)
			}
			return m, speedCmd(c, rate)

		case key.Matches(msg, m.keys.Slower):
			rate := audio.SlowerSpeed(m.speed)
			if rate == m.speed {
				return m, m.showStatusMessage("Already at minimum speed", false)
			}
			return m, speedCmd(c, rate)

		case key.Matches(msg, m.keys.Resynth):
			cmds = append(cmds,
				m.showStatusMessage("Re-synthesizing scene…", false),
				resynthCmd(c, m.pos.Scene),
			)
			return m, tea.Batch(cmds...)

		case key.Matches(msg, m.keys.Copy):
			return m, m.copySubtitle()

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			m.setSize(m.width, m.height)
			return m, nil
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)

	case progressMsg:
		m.current, m.total = msg.current, msg.total
		cmds = append(cmds, m.player.Events.wait())

	case stateMsg:
		prev := m.state
		m.state = playback.State(msg)
		if m.state == playback.StatePreparing {
			cmds = append(cmds, m.spinner.Tick)
		}
		if prev != playback.StateIdle && m.state == playback.StateIdle && m.total > 0 && m.current >= m.total {
			cmds = append(cmds, m.showStatusMessage("Finished", false))
		}
		cmds = append(cmds, m.player.Events.wait())

	case segmentMsg:
		m.pos = timeline.Position(msg)
		cmds = append(cmds, m.player.Events.wait())

	case groupDoneMsg:
		log.Debug("group completed", "group", msg.key, "actual", msg.actual)
		if m.player.Cache != nil {
			m.stats = m.player.Cache.Stats()
		}
		cmds = append(cmds, m.player.Events.wait())

	case synthFailedMsg:
		m.failures = msg
		if len(msg) > 0 {
			if guide := engines.Guidance(m.cfg.Engine, msg[0].Err); guide != "" {
				log.Warn("synthesis failed", "engine", m.cfg.Engine, "guidance", guide)
			}
			note := fmt.Sprintf("%d %s could not be synthesized: %v",
				len(msg), pluralize(len(msg), "scene", "scenes"), msg[0].Err)
			cmds = append(cmds, m.showStatusMessage(note, true))
		}
		cmds = append(cmds, m.player.Events.wait())

	case actionMsg:
		if msg.status.SessionID != "" || msg.status.Total > 0 {
			m.current, m.total, m.pos = msg.status.Current, msg.status.Total, msg.status.Position
		}
		switch {
		case msg.err != nil:
			cmds = append(cmds, m.showStatusMessage(msg.err.Error(), true))
		case msg.note != "":
			cmds = append(cmds, m.showStatusMessage(msg.note, false))
		}

	case speedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage(msg.err.Error(), true))
			break
		}
		m.speed = msg.rate
		cmds = append(cmds, m.showStatusMessage(speedNote(msg.rate), false))

	case frameMsg:
		if m.player.Cache != nil {
			m.stats = m.player.Cache.Stats()
		}
		cmds = append(cmds, frameTick(m.cfg.FrameRate))

	case spinner.TickMsg:
		if m.state == playback.StatePreparing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	// The project was changed on disk and we're reloading it
	case reloadMsg:
		return m, reloadCmd(c, m.cfg.Path)

	case reloadedMsg:
		switch {
		case msg.err != nil:
			cmds = append(cmds, m.showStatusMessage("Reload failed: "+msg.err.Error(), true))
		case msg.changed:
			m.setTimeline(msg.tl)
			m.failures = nil
			cmds = append(cmds, m.showStatusMessage("Reloaded project", false))
		}
		if m.player.Watcher != nil {
			cmds = append(cmds, watchCmd(m.watchCtx, m.player.Watcher))
		}

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false

	case errMsg:
		m.fatalErr = msg
	}

	return m, tea.Batch(cmds...)
}

func (m *model) setSize(w, h int) {
	m.width = w
	m.height = h
	m.help.Width = w
	m.progress.Width = max(10, w-2*len(" 00:00 "))
}

// writeClipboard writes to the native system clipboard.
var writeClipboard = clipboard.WriteAll

// copySubtitle copies the subtitle on stage and reports how it went.
func (m *model) copySubtitle() tea.Cmd {
	node, ok := m.player.Surface.Node(m.currentRef())
	if !ok || node.Text == "" {
		return m.showStatusMessage("Nothing to copy", false)
	}
	// Copy using OSC 52
	termenv.Copy(node.Text)
	// Copy using native system clipboard
	if err := writeClipboard(node.Text); err != nil {
		log.Debug("clipboard write failed", "error", err)
		return m.showStatusMessage("Clipboard unavailable: "+err.Error(), true)
	}
	return m.showStatusMessage("Copied subtitle", false)
}

// showStatusMessage shows a message in the status bar for a few seconds.
// Note that the returned command must be sent back through Update.
func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}
	if m.width == 0 {
		return ""
	}

	var helpView string
	stageHeight := m.height - statusBarHeight - progressBarHeight
	if m.showHelp {
		helpView = m.helpView()
		stageHeight -= lipgloss.Height(helpView)
	}
	stageHeight = max(0, stageHeight)

	var b strings.Builder
	layers := stageLayers(m.player.Surface, m.currentRef())
	fmt.Fprintln(&b, stageView(layers, m.width, stageHeight))
	fmt.Fprintln(&b, m.progressView())
	m.statusBarView(&b)
	if m.showHelp {
		fmt.Fprint(&b, "\n"+helpView)
	}
	return b.String()
}

func (m model) progressView() string {
	var percent float64
	if m.total > 0 {
		percent = min(1, m.current/m.total)
	}
	return timeStyle(" "+formatClock(m.current)+" ") +
		m.progress.ViewAs(percent) +
		timeStyle(" "+formatClock(m.total)+" ")
}

func (m model) stateView() string {
	var s string
	switch m.state {
	case playback.StatePreparing:
		s = m.spinner.View() + " preparing"
	case playback.StatePlaying:
		s = "▶ playing"
	case playback.StatePaused:
		s = "⏸ paused"
	default:
		s = "■ stopped"
	}
	if m.speed != 1 {
		s += fmt.Sprintf(" %.2gx", m.speed)
	}
	return " " + s + " "
}

func (m model) noteView() string {
	var parts []string
	if m.cfg.Path != "" {
		parts = append(parts, filepath.Base(m.cfg.Path))
	} else if m.tl != nil && m.tl.Title != "" {
		parts = append(parts, m.tl.Title)
	}
	if len(m.groups) > 0 {
		parts = append(parts, fmt.Sprintf("scene %d/%d", m.pos.Group+1, len(m.groups)))
	}
	if len(m.failures) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", len(m.failures)))
	}
	if m.player.Cache != nil {
		parts = append(parts, fmt.Sprintf("%d clips, %s",
			m.stats.Entries, humanize.Bytes(uint64(max(0, m.stats.Bytes))))) //nolint:gosec
	}
	return strings.Join(parts, " · ")
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	// Logo
	logo := logoView()

	// Playback state
	state := statusBarStateStyle(m.stateView())

	// "Help" note
	var helpNote string
	if showStatusMessage && !m.statusIsError {
		helpNote = statusBarMessageHelpStyle(" ? Help ")
	} else {
		helpNote = statusBarHelpStyle(" ? Help ")
	}

	note := m.noteView()
	if showStatusMessage {
		note = m.statusMessage
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(state)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)

	style := statusBarNoteStyle
	switch {
	case showStatusMessage && m.statusIsError:
		style = statusBarErrorStyle
	case showStatusMessage:
		style = statusBarMessageStyle
	}
	note = style(note)

	// Empty space
	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(state)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		state,
		helpNote,
	)
}

func (m model) helpView() string {
	s := indent("\n"+m.help.View(m.keys)+"\n", 2)

	// Fill up empty cells with spaces for background coloring
	if m.width > 0 {
		lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
		for i := range lines {
			l := ansi.PrintableRuneWidth(lines[i])
			lines[i] += strings.Repeat(" ", max(m.width-l, 0))
		}
		s = strings.Join(lines, "\n")
	}
	return helpViewStyle(s)
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// ETC

func speedNote(rate float64) string {
	return "Speed " + audio.SpeedLabel(rate)
}

// formatClock renders seconds as m:ss.
func formatClock(seconds float64) string {
	d := time.Duration(max(0, seconds) * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
