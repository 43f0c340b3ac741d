package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/audio"
	"github.com/dgnsrekt/scenecast/internal/render"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/tts"
)

// DefaultTickInterval is the progress reporting period.
const DefaultTickInterval = 100 * time.Millisecond

// Callbacks receive controller notifications. They run on the coordinator
// goroutine and must not call back into the Controller.
type Callbacks struct {
	Progress        func(current, total float64)
	GroupCompleted  func(key string, actual float64)
	StateChanged    func(state State)
	SynthesisFailed func(failures []tts.Failure)
	SegmentChanged  func(pos timeline.Position)
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	Timeline     *timeline.Timeline
	Orchestrator *Orchestrator

	// Store and Music are optional.
	Store DurationStore
	Music Music

	Callbacks    Callbacks
	TickInterval time.Duration
}

// Controller plays a whole timeline. All session state is owned by one
// coordinator goroutine; public methods and workers talk to it through
// channels.
type Controller struct {
	orch  *Orchestrator
	store DurationStore
	music Music
	cb    Callbacks
	tick  time.Duration

	cmds   chan func()
	events chan any
	quit   chan struct{}
	done   chan struct{}

	closeOnce sync.Once

	// Owned by the coordinator.
	tl      *timeline.Timeline
	snap    *timeline.Timeline
	layout  *timeline.Layout
	cursor  float64
	fsm     *stateMachine
	sess    *Session
	gen     uint64
	ticker  *time.Ticker
	waiters []chan struct{}
	workers sync.WaitGroup
}

type preparedEvent struct {
	gen    uint64
	report tts.Report
}

type groupEvent struct {
	gen uint64
	res GroupResult
	err error
}

type segmentEvent struct {
	gen uint64
	pos timeline.Position
}

type seekQuery struct {
	gen   uint64
	reply chan *timeline.Position
}

// NewController creates a controller and starts its coordinator.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Timeline == nil || cfg.Orchestrator == nil {
		return nil, errors.New("controller needs a timeline and an orchestrator")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}

	c := &Controller{
		orch:   cfg.Orchestrator,
		store:  cfg.Store,
		music:  cfg.Music,
		cb:     cfg.Callbacks,
		tick:   cfg.TickInterval,
		cmds:   make(chan func()),
		events: make(chan any),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		tl:     cfg.Timeline,
	}
	c.fsm = newStateMachine(func(s State) {
		log.Debug("playback state", "state", s)
		if c.cb.StateChanged != nil {
			c.cb.StateChanged(s)
		}
	})
	c.refreshLayout()

	go c.run()
	return c, nil
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		var tick <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.C
		}

		select {
		case fn := <-c.cmds:
			fn()
		case ev := <-c.events:
			c.handle(ev)
		case <-tick:
			c.progress()
		case <-c.quit:
			return
		}
	}
}

// do runs fn on the coordinator and waits for it.
func (c *Controller) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case c.cmds <- func() { fn(); close(ran) }:
	case <-c.done:
		return ErrClosed
	}
	<-ran
	return nil
}

// send delivers a worker event unless the session was aborted.
func (c *Controller) send(ctx context.Context, ev any) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// Play starts playback at the cursor, or resumes when paused.
func (c *Controller) Play() error {
	var err error
	if cerr := c.do(func() { err = c.play() }); cerr != nil {
		return cerr
	}
	return err
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	var err error
	if cerr := c.do(func() { err = c.pause() }); cerr != nil {
		return cerr
	}
	return err
}

// Resume resumes paused playback.
func (c *Controller) Resume() error {
	var err error
	if cerr := c.do(func() { err = c.resume() }); cerr != nil {
		return cerr
	}
	return err
}

// TogglePause pauses or resumes.
func (c *Controller) TogglePause() error {
	var err error
	if cerr := c.do(func() {
		switch c.fsm.Current() {
		case StatePaused:
			err = c.resume()
		default:
			err = c.pause()
		}
	}); cerr != nil {
		return cerr
	}
	return err
}

// Stop aborts playback. The active group stays on screen at rest and the
// cursor moves to the start of the active segment.
func (c *Controller) Stop() error {
	return c.do(func() { c.halt(false) })
}

// Seek moves the cursor to t seconds. While playing, the move happens at
// the next segment boundary.
func (c *Controller) Seek(t float64) error {
	return c.do(func() { c.seek(t) })
}

// SeekBy moves the cursor by delta seconds.
func (c *Controller) SeekBy(delta float64) error {
	return c.do(func() { c.seek(c.cursor + delta) })
}

// SetSpeed changes the playback rate. It applies from the next segment.
func (c *Controller) SetSpeed(rate float64) error {
	if err := audio.ValidateSpeed(rate); err != nil {
		return err
	}
	c.orch.SetSpeed(rate)
	log.Debug("playback speed", "rate", rate)
	return nil
}

// Speed returns the current playback rate.
func (c *Controller) Speed() float64 {
	tl := c.Timeline()
	if tl == nil {
		return 1
	}
	return c.orch.Rate(tl)
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	var st Status
	if err := c.do(func() { st = c.status() }); err != nil {
		return Status{State: StateIdle}
	}
	return st
}

// Timeline returns a copy of the timeline with every measured duration.
func (c *Controller) Timeline() *timeline.Timeline {
	var tl *timeline.Timeline
	if err := c.do(func() { tl = c.tl.Clone() }); err != nil {
		return nil
	}
	return tl
}

// Load stops playback and replaces the timeline.
func (c *Controller) Load(tl *timeline.Timeline) error {
	return c.do(func() {
		c.halt(false)
		c.tl = tl
		c.refreshLayout()
		c.cursor = min(c.cursor, c.layout.Total())
		c.report()
	})
}

// Resynthesize replaces the cached audio of a scene. Playback continues;
// the new audio is used the next time the scene plays.
func (c *Controller) Resynthesize(ctx context.Context, scene int) error {
	tl := c.Timeline()
	if tl == nil {
		return ErrClosed
	}
	if err := c.orch.synth.Resynthesize(ctx, tl, scene); err != nil {
		return err
	}
	return c.do(func() {
		c.refreshLayout()
		c.report()
	})
}

// Wait blocks until the controller is idle.
func (c *Controller) Wait(ctx context.Context) error {
	var ch chan struct{}
	err := c.do(func() {
		ch = make(chan struct{})
		if c.fsm.Current() == StateIdle {
			close(ch)
			return
		}
		c.waiters = append(c.waiters, ch)
	})
	if err != nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops playback and terminates the coordinator.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		_ = c.Stop()
		close(c.quit)
		<-c.done
	})
	return nil
}

func (c *Controller) play() error {
	switch c.fsm.Current() {
	case StatePaused:
		return c.resume()
	case StatePlaying, StatePreparing:
		return nil
	}

	c.gen++
	s := newSession(context.Background(), c.gen)
	c.sess = s
	c.snap = c.tl.Clone()
	c.fsm.Transition(StatePreparing)
	log.Debug("session started", "session", s.ID)

	snap := c.snap
	s.working = true
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		report := c.orch.synth.Reconcile(s.ctx, snap, snap.Indices())
		c.send(s.ctx, preparedEvent{gen: s.Gen, report: report})
	}()
	return nil
}

func (c *Controller) pause() error {
	if !c.fsm.Can(StatePaused) {
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, c.fsm.Current())
	}
	c.orch.Pause()
	if c.music != nil {
		c.music.Pause()
	}
	c.stopTicker()
	c.fsm.Transition(StatePaused)
	return nil
}

func (c *Controller) resume() error {
	if c.fsm.Current() != StatePaused {
		return fmt.Errorf("%w: cannot resume while %s", ErrInvalidState, c.fsm.Current())
	}
	c.orch.Resume()
	if c.music != nil {
		c.music.Resume()
	}
	c.startTicker()
	c.fsm.Transition(StatePlaying)
	return nil
}

func (c *Controller) seek(t float64) {
	t = max(0, min(t, c.layout.Total()))
	c.cursor = t
	if s := c.sess; s != nil {
		pos := c.layout.Locate(t)
		s.Pending = &pos
		log.Debug("seek pending", "time", t, "group", pos.Group, "segment", pos.Segment)
	}
	c.report()
}

func (c *Controller) handle(ev any) {
	s := c.sess
	switch ev := ev.(type) {
	case preparedEvent:
		if s == nil || ev.gen != s.Gen {
			return
		}
		s.working = false
		c.prepared(ev.report)
	case groupEvent:
		if s == nil || ev.gen != s.Gen {
			return
		}
		s.working = false
		c.groupDone(ev.res, ev.err)
	case segmentEvent:
		if s == nil || ev.gen != s.Gen {
			return
		}
		c.segmentStarted(ev.pos)
	case seekQuery:
		var pos *timeline.Position
		if s != nil && ev.gen == s.Gen && s.Pending != nil {
			pos = s.Pending
			s.Pending = nil
			s.jumped = true
		}
		ev.reply <- pos
	}
}

func (c *Controller) prepared(report tts.Report) {
	if len(report.Failures) > 0 {
		log.Warn("synthesis failed", "scenes", len(report.Failures), "error", report.Err())
		if c.cb.SynthesisFailed != nil {
			c.cb.SynthesisFailed(report.Failures)
		}
	}
	if report.AllFailed() {
		log.Error("every scene failed to synthesize, halting")
		c.halt(false)
		return
	}

	c.refreshLayout()
	if c.music != nil {
		if err := c.music.Start(); err != nil {
			log.Warn("unable to start music", "error", err)
		}
	}
	c.fsm.Transition(StatePlaying)
	c.startTicker()

	s := c.sess
	var pos timeline.Position
	switch {
	case s.Pending != nil:
		pos = *s.Pending
		s.Pending = nil
		s.jumped = true
	default:
		if c.cursor >= c.layout.Total() {
			c.cursor = 0
		}
		pos = c.layout.Locate(c.cursor)
	}
	c.startGroup(pos)
}

func (c *Controller) startGroup(pos timeline.Position) {
	s := c.sess
	c.anchor(pos)
	s.Ref = GroupRef(c.layout.Group(pos.Group))

	snap := c.snap
	req := GroupRequest{
		Group:        pos.Group,
		StartSegment: pos.Segment,
		Prev:         s.Prev,
		Seek: func() (timeline.Position, bool) {
			reply := make(chan *timeline.Position, 1)
			c.send(s.ctx, seekQuery{gen: s.Gen, reply: reply})
			select {
			case p := <-reply:
				if p == nil {
					return timeline.Position{}, false
				}
				return *p, true
			case <-s.ctx.Done():
				return timeline.Position{}, false
			}
		},
		OnSegment: func(p timeline.Position) {
			c.send(s.ctx, segmentEvent{gen: s.Gen, pos: p})
		},
	}

	s.working = true
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		res, err := c.orch.PlayGroup(s.ctx, snap, req)
		c.send(s.ctx, groupEvent{gen: s.Gen, res: res, err: err})
	}()
}

func (c *Controller) segmentStarted(pos timeline.Position) {
	c.anchor(pos)
	if c.cb.SegmentChanged != nil {
		c.cb.SegmentChanged(c.layout.Position(pos.Group, pos.Segment))
	}
	c.report()
}

// anchor restarts progress interpolation at pos. The cursor only moves
// backwards after a seek.
func (c *Controller) anchor(pos timeline.Position) {
	s := c.sess
	s.Position = pos
	s.base = c.layout.SegmentStart(pos.Group, pos.Segment)
	s.span = c.layout.GroupStart(pos.Group) + c.layout.GroupDuration(pos.Group) - s.base
	s.mark = c.orch.clock.mark()
	if s.jumped || s.base > c.cursor {
		c.cursor = s.base
		s.jumped = false
	}
}

func (c *Controller) groupDone(res GroupResult, err error) {
	s := c.sess
	switch {
	case err == nil:
		s.Prev = res.Ref
	case isAbort(err):
		c.halt(false)
		return
	case errors.Is(err, ErrGroupUnavailable):
		log.Warn("skipping group", "group", res.Key, "error", err)
		if c.cb.SynthesisFailed != nil {
			c.cb.SynthesisFailed(res.Report.Failures)
		}
	default:
		log.Error("group failed", "group", res.Key, "error", err)
	}

	if res.Completed {
		c.measured(res)
	}
	c.refreshLayout()

	var next timeline.Position
	switch {
	case res.Redirect != nil:
		next = *res.Redirect
	case s.Pending != nil:
		next = *s.Pending
		s.Pending = nil
		s.jumped = true
	default:
		next = timeline.Position{Group: res.Group + 1}
	}

	if next.Group >= c.layout.Len() {
		c.cursor = c.layout.Total()
		c.halt(true)
		return
	}
	c.startGroup(next)
}

// measured stores the redistributed durations of a completed group.
func (c *Controller) measured(res GroupResult) {
	if c.cb.GroupCompleted != nil {
		c.cb.GroupCompleted(res.Key, res.Actual)
	}
	if len(res.Measured) == 0 {
		return
	}

	ids := make(map[string]float64, len(res.Measured))
	for i, d := range res.Measured {
		c.tl.SetMeasured(i, d)
		ids[c.tl.Scenes[i].ID] = d
	}
	log.Debug("group completed", "group", res.Key, "actual", res.Actual, "scenes", len(ids))

	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.SaveMeasured(ctx, ids); err != nil {
		log.Warn("unable to save measured durations", "error", err)
	}
}

// halt ends the session. Cleanup runs once per session.
func (c *Controller) halt(finished bool) {
	s := c.sess
	if s == nil {
		return
	}
	if s.cleaned {
		return
	}
	s.cleaned = true
	wasPaused := c.fsm.Current() == StatePaused

	s.cancel()
	c.orch.speaker.Stop()
	c.workers.Wait()

	if wasPaused {
		c.orch.Resume()
	}
	c.orch.stage.KillAll()
	// A group stopped before its entrance began leaves the previous
	// visual on stage.
	switch {
	case s.Ref != "" && c.orch.stage.State(s.Ref) != render.StateHidden:
		c.orch.stage.ForceVisible(s.Ref)
	case s.Prev != "":
		c.orch.stage.ForceVisible(s.Prev)
	}
	if !finished && c.fsm.Current() != StatePreparing {
		c.cursor = c.layout.SegmentStart(s.Position.Group, s.Position.Segment)
	}
	c.stopTicker()
	if c.music != nil {
		c.music.Stop()
	}

	c.sess = nil
	c.snap = nil
	c.fsm.Transition(StateIdle)
	log.Debug("session ended", "session", s.ID, "finished", finished)
	c.report()

	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}

func (c *Controller) progress() {
	s := c.sess
	if s == nil || c.fsm.Current() != StatePlaying || s.Pending != nil {
		return
	}
	elapsed := min(c.orch.clock.since(s.mark), s.span)
	current := min(s.base+max(elapsed, 0), c.layout.Total())
	if current > c.cursor {
		c.cursor = current
	}
	c.report()
}

func (c *Controller) report() {
	if c.cb.Progress != nil {
		total := c.layout.Total()
		c.cb.Progress(min(c.cursor, total), total)
	}
}

func (c *Controller) status() Status {
	st := Status{
		State:   c.fsm.Current(),
		Current: c.cursor,
		Total:   c.layout.Total(),
	}
	if s := c.sess; s != nil {
		st.SessionID = s.ID
		st.Position = c.layout.Position(s.Position.Group, s.Position.Segment)
	} else {
		st.Position = c.layout.Locate(c.cursor)
	}
	st.Position.Time = c.cursor
	return st
}

func (c *Controller) refreshLayout() {
	c.layout = c.tl.Layout(c.orch.synth.Known(c.tl))
}

func (c *Controller) startTicker() {
	if c.ticker == nil {
		c.ticker = time.NewTicker(c.tick)
	}
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}
