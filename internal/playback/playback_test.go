package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/scenecast/internal/audio"
	"github.com/dgnsrekt/scenecast/internal/cache"
	"github.com/dgnsrekt/scenecast/internal/render"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/tts/engines"
	"github.com/dgnsrekt/scenecast/internal/wav"
)

// scale runs every test ten times faster than real time.
const scale = 0.1

type rig struct {
	engine  *engines.MockEngine
	cache   *cache.Cache
	synth   *tts.Reconciler
	backend *audio.MockPlayer
	speaker *audio.Manager
	surface *render.MemorySurface
	stage   *render.Renderer
	orch    *Orchestrator
}

func newRig(t *testing.T) *rig {
	t.Helper()
	return newRigWith(t, engines.MockConfig{SampleRate: 8000})
}

func newRigWith(t *testing.T, cfg engines.MockConfig) *rig {
	t.Helper()

	engine := engines.NewMockEngine(cfg)
	engine.SetDuration("alpha", 2.0)
	engine.SetDuration("bravo one", 1.5)
	engine.SetDuration("bravo two", 1.0)
	engine.SetDuration("charlie", 3.0)

	c, err := cache.New(cache.Config{MaxEntries: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	synth := tts.NewReconciler(engine, c, tts.Options{Concurrency: 2})

	backend := audio.NewMockPlayer(wav.Mono16(8000))
	backend.SetDelayFactor(scale)
	speaker := audio.NewManager(backend, c)

	surface := render.NewMemorySurface()
	stage := render.New(surface, render.Options{FrameRate: 100, TimeScale: scale})

	return &rig{
		engine:  engine,
		cache:   c,
		synth:   synth,
		backend: backend,
		speaker: speaker,
		surface: surface,
		stage:   stage,
		orch:    NewOrchestrator(synth, speaker, stage, Options{TimeScale: scale}),
	}
}

func (r *rig) prewarm(t *testing.T, tl *timeline.Timeline) {
	t.Helper()
	report := r.synth.Reconcile(context.Background(), tl, tl.Indices())
	require.NoError(t, report.Err())
}

func (r *rig) controller(t *testing.T, tl *timeline.Timeline, store DurationStore, rec *recorder) *Controller {
	t.Helper()
	c, err := NewController(ControllerConfig{
		Timeline:     tl,
		Orchestrator: r.orch,
		Store:        store,
		Callbacks:    rec.callbacks(),
		TickInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// abcTimeline has a single-scene group A (2.0s), a two-scene group B
// (1.5s + 1.0s) entering with a movement transition and a single-scene
// group C (3.0s).
func abcTimeline() *timeline.Timeline {
	tl := &timeline.Timeline{
		Voice: "test",
		Scenes: []timeline.Scene{
			{ID: "a", Subtitle: "alpha", Transition: timeline.TransitionFade, Visual: timeline.Visual{Image: "a.png"}},
			{ID: "b1", GroupKey: "b", Subtitle: "bravo one || bravo two", Transition: timeline.TransitionSlideLeft, Visual: timeline.Visual{Image: "b.png"}},
			{ID: "b2", GroupKey: "b"},
			{ID: "c", Subtitle: "charlie", Visual: timeline.Visual{Image: "c.png"}},
		},
	}
	tl.Normalize()
	return tl
}

type recorder struct {
	mu       sync.Mutex
	states   []State
	actual   map[string]float64
	order    []string
	failures []tts.Failure
	progress int
	ticks    [][2]float64

	segments chan timeline.Position
}

func newRecorder() *recorder {
	return &recorder{actual: make(map[string]float64), segments: make(chan timeline.Position, 64)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		Progress: func(current, total float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress++
			r.ticks = append(r.ticks, [2]float64{current, total})
		},
		StateChanged: func(s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		},
		GroupCompleted: func(key string, actual float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.actual[key] = actual
			r.order = append(r.order, key)
		},
		SynthesisFailed: func(failures []tts.Failure) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.failures = append(r.failures, failures...)
		},
		SegmentChanged: func(pos timeline.Position) {
			select {
			case r.segments <- pos:
			default:
			}
		},
	}
}

// waitSegment blocks until the given segment starts.
func (r *recorder) waitSegment(t *testing.T, group, segment int) timeline.Position {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case p := <-r.segments:
			if p.Group == group && p.Segment == segment {
				return p
			}
		case <-deadline:
			t.Fatalf("segment %d/%d never started", group, segment)
		}
	}
}

// firstSegment returns the next segment that starts.
func (r *recorder) firstSegment(t *testing.T) timeline.Position {
	t.Helper()
	select {
	case p := <-r.segments:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no segment started")
	}
	return timeline.Position{}
}

type memoryStore struct {
	mu    sync.Mutex
	saved map[string]float64
	calls int
}

func (s *memoryStore) SaveMeasured(_ context.Context, measured map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]float64)
	}
	for id, d := range measured {
		s.saved[id] = d
	}
	s.calls++
	return nil
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestDistribute(t *testing.T) {
	tests := []struct {
		name   string
		actual float64
		scenes []int
		played map[int]float64
		want   map[int]float64
	}{
		{
			name:   "single scene takes everything",
			actual: 2.0413,
			scenes: []int{0},
			played: map[int]float64{0: 2},
			want:   map[int]float64{0: 2.041},
		},
		{
			name:   "proportional to played audio",
			actual: 5,
			scenes: []int{1, 2},
			played: map[int]float64{1: 3, 2: 1},
			want:   map[int]float64{1: 3.75, 2: 1.25},
		},
		{
			name:   "silent scene gets zero",
			actual: 1.6,
			scenes: []int{1, 2, 3},
			played: map[int]float64{1: 1.5},
			want:   map[int]float64{1: 1.6, 2: 0, 3: 0},
		},
		{
			name:   "last playing scene absorbs rounding",
			actual: 1,
			scenes: []int{0, 1, 2},
			played: map[int]float64{0: 1, 1: 1, 2: 1},
			want:   map[int]float64{0: 0.333, 1: 0.333, 2: 0.334},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distribute(tt.actual, tt.scenes, tt.played)
			require.Len(t, got, len(tt.want))
			var sum float64
			for s, d := range tt.want {
				assert.InDelta(t, d, got[s], 1e-9, "scene %d", s)
				sum += got[s]
			}
			assert.InDelta(t, round3(tt.actual), sum, 1e-9)
		})
	}

	assert.Nil(t, Distribute(3, []int{0, 1}, nil))
}

func TestStateMachine(t *testing.T) {
	var entered []State
	sm := newStateMachine(func(s State) { entered = append(entered, s) })

	assert.Equal(t, StateIdle, sm.Current())
	assert.False(t, sm.Transition(StatePlaying))
	assert.False(t, sm.Can(StatePaused))

	require.True(t, sm.Transition(StatePreparing))
	require.True(t, sm.Transition(StatePlaying))
	require.True(t, sm.Transition(StatePaused))
	assert.False(t, sm.Transition(StatePreparing))
	require.True(t, sm.Transition(StatePlaying))
	require.True(t, sm.Transition(StateIdle))

	assert.Equal(t, []State{StatePreparing, StatePlaying, StatePaused, StatePlaying, StateIdle}, entered)
	assert.Equal(t, "paused", StatePaused.String())
}

func TestPlayGroupMeasuresScenes(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()

	var segments []int
	res, err := r.orch.PlayGroup(context.Background(), tl, GroupRequest{
		Group:     1,
		OnSegment: func(p timeline.Position) { segments = append(segments, p.Segment) },
	})
	require.NoError(t, err)

	assert.True(t, res.Completed)
	assert.Equal(t, "b", res.Key)
	assert.Equal(t, []int{0, 1}, segments)
	assert.InDelta(t, 1.5, res.Played[1], 0.001)
	assert.InDelta(t, 1.0, res.Played[2], 0.001)
	assert.InDelta(t, 2.5, res.Actual, 0.5)

	require.Len(t, res.Measured, 2)
	assert.InDelta(t, round3(res.Actual), res.Measured[1]+res.Measured[2], 0.01)
	assert.Greater(t, res.Measured[1], res.Measured[2])

	node, ok := r.surface.Node(GroupRef(tl.Groups()[1]))
	require.True(t, ok)
	assert.Equal(t, "bravo two", node.Text)
	assert.Equal(t, "b.png", node.Visual.Image)
}

func TestPlayGroupPartialFailure(t *testing.T) {
	r := newRig(t)
	r.engine.FailOn("bravo two", errors.New("voice crashed"))
	tl := abcTimeline()

	res, err := r.orch.PlayGroup(context.Background(), tl, GroupRequest{Group: 1})
	require.NoError(t, err)

	require.Len(t, res.Report.Failures, 1)
	assert.Equal(t, 2, res.Report.Failures[0].Scene)
	assert.True(t, errors.Is(res.Report.Failures[0].Err, tts.ErrSynthesisFailed))

	assert.True(t, res.Completed)
	assert.Zero(t, res.Measured[2])
	assert.InDelta(t, round3(res.Actual), res.Measured[1], 0.001)
	assert.InDelta(t, 1.5, res.Actual, 0.5)
}

func TestPlayGroupUnavailable(t *testing.T) {
	r := newRig(t)
	r.engine.FailOn("charlie", errors.New("voice crashed"))
	tl := abcTimeline()

	res, err := r.orch.PlayGroup(context.Background(), tl, GroupRequest{Group: 2})
	require.ErrorIs(t, err, ErrGroupUnavailable)
	assert.False(t, res.Completed)
	assert.Nil(t, res.Measured)
	assert.Zero(t, r.backend.Metrics().PlayCount)
}

func TestPlayGroupRedirect(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)

	asked := 0
	res, err := r.orch.PlayGroup(context.Background(), tl, GroupRequest{
		Group: 1,
		Seek: func() (timeline.Position, bool) {
			asked++
			if asked == 2 {
				return timeline.Position{Group: 2}, true
			}
			return timeline.Position{}, false
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Redirect)
	assert.Equal(t, 2, res.Redirect.Group)
	assert.False(t, res.Completed)
	assert.Nil(t, res.Measured)
	assert.InDelta(t, 1.5, res.Played[1], 0.001)
}

func TestPlayGroupMidGroupStart(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)

	res, err := r.orch.PlayGroup(context.Background(), tl, GroupRequest{Group: 1, StartSegment: 1})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Zero(t, res.Played[1])
	assert.InDelta(t, 1.0, res.Played[2], 0.001)
	assert.Zero(t, r.stage.ActiveHandles())
}

func TestPlayGroupCanceled(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	res, err := r.orch.PlayGroup(ctx, tl, GroupRequest{Group: 2})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Completed)
	assert.Less(t, res.Actual, 3.0)
}

func TestControllerPlaysTimeline(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	rec := newRecorder()
	store := &memoryStore{}
	c := r.controller(t, tl, store, rec)

	require.NoError(t, c.Play())
	waitIdle(t, c)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, rec.order)
	assert.Equal(t, []State{StatePreparing, StatePlaying, StateIdle}, rec.states)
	assert.Empty(t, rec.failures)
	assert.Positive(t, rec.progress)

	played := c.Timeline()
	for _, s := range played.Scenes {
		require.NotNil(t, s.MeasuredDuration, "scene %s", s.ID)
	}
	measured := func(i int) float64 { return *played.Scenes[i].MeasuredDuration }

	assert.InDelta(t, 2.0, measured(0), 0.5)
	assert.InDelta(t, 3.0, measured(3), 0.5)
	assert.InDelta(t, 2.5, measured(1)+measured(2), 0.5)
	assert.InDelta(t, rec.actual["b"], measured(1)+measured(2), 0.01)
	assert.Greater(t, measured(1), measured(2))

	st := c.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.InDelta(t, 7.5, st.Total, 1.0)
	assert.InDelta(t, st.Total, st.Current, 1e-9)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.saved, 4)
	assert.Equal(t, 3, store.calls)
	assert.InDelta(t, measured(3), store.saved["c"], 1e-9)
}

func TestControllerSynthesisFailureIsolated(t *testing.T) {
	r := newRig(t)
	r.engine.FailOn("bravo two", errors.New("voice crashed"))
	tl := abcTimeline()
	rec := newRecorder()
	c := r.controller(t, tl, nil, rec)

	require.NoError(t, c.Play())
	waitIdle(t, c)

	rec.mu.Lock()
	assert.Equal(t, []string{"a", "b", "c"}, rec.order)
	require.NotEmpty(t, rec.failures)
	assert.Equal(t, "b2", rec.failures[0].SceneID)
	rec.mu.Unlock()

	played := c.Timeline()
	measured := func(i int) float64 {
		require.NotNil(t, played.Scenes[i].MeasuredDuration)
		return *played.Scenes[i].MeasuredDuration
	}
	assert.InDelta(t, 2.0, measured(0), 0.5)
	assert.InDelta(t, 1.5, measured(1), 0.5)
	assert.Zero(t, measured(2))
	assert.InDelta(t, 3.0, measured(3), 0.5)
}

func TestControllerAllFailedHalts(t *testing.T) {
	r := newRig(t)
	for _, text := range []string{"alpha", "bravo one", "bravo two", "charlie"} {
		r.engine.FailOn(text, errors.New("voice crashed"))
	}
	rec := newRecorder()
	c := r.controller(t, abcTimeline(), nil, rec)

	require.NoError(t, c.Play())
	waitIdle(t, c)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []State{StatePreparing, StateIdle}, rec.states)
	assert.Len(t, rec.failures, 4)
	assert.Empty(t, rec.order)
	assert.Zero(t, r.backend.Metrics().PlayCount)
}

func TestControllerSeekThenPlay(t *testing.T) {
	tests := []struct {
		name    string
		at      float64
		group   int
		segment int
	}{
		{name: "second segment of a group", at: 3.8, group: 1, segment: 1},
		{name: "first segment of a group", at: 2.2, group: 1, segment: 0},
		{name: "single scene group", at: 5.0, group: 2, segment: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			tl := abcTimeline()
			r.prewarm(t, tl)
			rec := newRecorder()
			c := r.controller(t, tl, nil, rec)

			require.NoError(t, c.Seek(tt.at))
			st := c.Status()
			assert.Equal(t, StateIdle, st.State)
			assert.InDelta(t, tt.at, st.Current, 1e-9)
			assert.Equal(t, tt.group, st.Position.Group)
			assert.Equal(t, tt.segment, st.Position.Segment)

			require.NoError(t, c.Play())
			p := rec.firstSegment(t)
			assert.Equal(t, tt.group, p.Group)
			assert.Equal(t, tt.segment, p.Segment)

			require.NoError(t, c.Stop())
		})
	}
}

func TestControllerSeekClamps(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)
	c := r.controller(t, tl, nil, newRecorder())

	require.NoError(t, c.Seek(-3))
	assert.Zero(t, c.Status().Current)

	require.NoError(t, c.Seek(100))
	st := c.Status()
	assert.InDelta(t, 7.5, st.Current, 1e-9)
	assert.Equal(t, 2, st.Position.Group)

	require.NoError(t, c.SeekBy(-1))
	assert.InDelta(t, 6.5, c.Status().Current, 1e-9)
}

func TestControllerSeekWhilePlaying(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)
	rec := newRecorder()
	c := r.controller(t, tl, nil, rec)

	require.NoError(t, c.Play())
	rec.waitSegment(t, 0, 0)
	require.NoError(t, c.Seek(5.0))

	// The pending seek is taken when A's audio ends, so B never plays.
	p := rec.firstSegment(t)
	assert.Equal(t, 2, p.Group)

	waitIdle(t, c)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"a", "c"}, rec.order)
}

func TestControllerStopLeavesGroupVisible(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)
	rec := newRecorder()
	c := r.controller(t, tl, nil, rec)

	require.NoError(t, c.Play())
	rec.waitSegment(t, 1, 0)
	require.NoError(t, c.Stop())

	st := c.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Zero(t, r.stage.ActiveHandles())
	assert.False(t, r.speaker.Playing())

	node, ok := r.surface.Node("b")
	require.True(t, ok)
	assert.True(t, node.Visible)
	assert.True(t, node.Attached)
	assert.Equal(t, 1.0, node.Frame.Alpha)
	assert.Equal(t, "bravo one", node.Text)
	assert.Equal(t, render.StateVisible, r.stage.State("b"))

	// Only the interrupted group stays on stage.
	prev, ok := r.surface.Node("a")
	require.True(t, ok)
	assert.False(t, prev.Visible)
	assert.Equal(t, render.StateHidden, r.stage.State("a"))

	// The cursor snaps back to the start of the interrupted segment.
	assert.InDelta(t, 2.0, st.Current, 0.5)
	assert.Equal(t, 1, st.Position.Group)
	assert.Equal(t, 0, st.Position.Segment)

	// Stop is idempotent.
	require.NoError(t, c.Stop())
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestControllerProgressStaysWithinTotal(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)
	rec := newRecorder()
	c := r.controller(t, tl, nil, rec)

	require.NoError(t, c.Play())
	waitIdle(t, c)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Greater(t, len(rec.ticks), 10)
	for i, tick := range rec.ticks {
		current, total := tick[0], tick[1]
		assert.LessOrEqual(t, current, total, "report %d", i)
		assert.GreaterOrEqual(t, current, 0.0, "report %d", i)
	}

	// The final report snaps to the measured total; every report before
	// it only moves forward.
	last := rec.ticks[len(rec.ticks)-1]
	assert.InDelta(t, last[1], last[0], 1e-9)
	for i := 1; i < len(rec.ticks)-1; i++ {
		assert.GreaterOrEqual(t, rec.ticks[i][0], rec.ticks[i-1][0], "report %d went backwards", i)
	}
}

func TestControllerStopWhilePreparing(t *testing.T) {
	r := newRigWith(t, engines.MockConfig{SampleRate: 8000, Delay: 5 * time.Second})
	tl := abcTimeline()
	rec := newRecorder()
	c := r.controller(t, tl, nil, rec)

	require.NoError(t, c.Seek(3.8))
	seeked := c.Status().Current
	require.NoError(t, c.Play())
	assert.Equal(t, StatePreparing, c.Status().State)

	began := time.Now()
	require.NoError(t, c.Stop())
	assert.Less(t, time.Since(began), 2*time.Second)

	st := c.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.InDelta(t, seeked, st.Current, 1e-9)
	assert.Zero(t, r.backend.Metrics().PlayCount)
	assert.Zero(t, r.stage.ActiveHandles())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []State{StatePreparing, StateIdle}, rec.states)
	assert.Empty(t, rec.order)
	assert.Empty(t, rec.failures)
}

func TestControllerPauseResume(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)
	rec := newRecorder()
	c := r.controller(t, tl, nil, rec)

	assert.ErrorIs(t, c.Pause(), ErrInvalidState)

	require.NoError(t, c.Play())
	rec.waitSegment(t, 0, 0)
	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.Status().State)

	before := c.Status().Current
	time.Sleep(150 * time.Millisecond)
	assert.InDelta(t, before, c.Status().Current, 1e-9)

	require.NoError(t, c.Play())
	assert.Equal(t, StatePlaying, c.Status().State)
	waitIdle(t, c)

	// 150ms paused is 1.5s of timeline time; none of it is measured.
	played := c.Timeline()
	require.NotNil(t, played.Scenes[0].MeasuredDuration)
	assert.InDelta(t, 2.0, *played.Scenes[0].MeasuredDuration, 0.5)
}

func TestControllerTogglePause(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)
	rec := newRecorder()
	c := r.controller(t, tl, nil, rec)

	require.NoError(t, c.Play())
	rec.waitSegment(t, 0, 0)
	require.NoError(t, c.TogglePause())
	assert.Equal(t, StatePaused, c.Status().State)
	require.NoError(t, c.TogglePause())
	assert.Equal(t, StatePlaying, c.Status().State)
	require.NoError(t, c.Stop())
}

func TestControllerLoadReplacesTimeline(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)
	c := r.controller(t, tl, nil, newRecorder())

	require.NoError(t, c.Seek(7))
	short := &timeline.Timeline{Voice: "test", Scenes: []timeline.Scene{{ID: "c", Subtitle: "charlie"}}}
	short.Normalize()
	require.NoError(t, c.Load(short))

	st := c.Status()
	assert.InDelta(t, 3.0, st.Total, 1e-9)
	assert.InDelta(t, 3.0, st.Current, 1e-9)
	assert.Len(t, c.Timeline().Scenes, 1)
}

func TestControllerResynthesize(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)
	c := r.controller(t, tl, nil, newRecorder())

	calls := r.engine.Calls()
	r.engine.SetDuration("charlie", 4.0)
	require.NoError(t, c.Resynthesize(context.Background(), 3))
	assert.Equal(t, calls+1, r.engine.Calls())
	assert.InDelta(t, 8.5, c.Status().Total, 1e-9)
}

func TestControllerClose(t *testing.T) {
	r := newRig(t)
	c := r.controller(t, abcTimeline(), nil, newRecorder())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Play(), ErrClosed)
	assert.ErrorIs(t, c.Seek(1), ErrClosed)
	assert.NoError(t, c.Wait(context.Background()))
}

func TestPreviewPlaysOneScene(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	p := NewPreview(r.orch)

	elapsed, err := p.PlayScene(context.Background(), tl, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, elapsed, 0.5)
	assert.Equal(t, int64(1), r.engine.Calls())

	node, ok := r.surface.Node("b")
	require.True(t, ok)
	assert.Equal(t, "bravo two", node.Text)
	assert.Equal(t, 1.0, node.Frame.Alpha)
	assert.Nil(t, tl.Scenes[2].MeasuredDuration)

	// The previewed clip is already cached for full playback.
	assert.Equal(t, []int{0, 1, 3}, r.synth.FindMissing(tl, tl.Indices()))
}

func TestPreviewRejectsUnknownScene(t *testing.T) {
	r := newRig(t)
	_, err := NewPreview(r.orch).PlayScene(context.Background(), abcTimeline(), 9)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestControllerSpeed(t *testing.T) {
	r := newRig(t)
	tl := abcTimeline()
	r.prewarm(t, tl)
	c := r.controller(t, tl, nil, newRecorder())

	assert.ErrorIs(t, c.SetSpeed(3), audio.ErrSpeedOutOfRange)
	require.NoError(t, c.SetSpeed(2))
	assert.Equal(t, 2.0, c.Speed())

	res, err := r.orch.PlayGroup(context.Background(), tl, GroupRequest{Group: 2})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, res.Played[3], 0.001)
	assert.InDelta(t, 1.5, res.Actual, 0.4)
}
