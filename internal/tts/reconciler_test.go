package tts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/scenecast/internal/cache"
	"github.com/dgnsrekt/scenecast/internal/markup"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/wav"
)

type fakeEngine struct {
	durations map[string]float64
	fail      map[string]error
	delay     time.Duration

	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64
}

func newFakeEngine(durations map[string]float64) *fakeEngine {
	return &fakeEngine{durations: durations, fail: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeEngine) Synthesize(ctx context.Context, req Request) (Clip, error) {
	text := markup.Text(req.Markup)
	f.total.Add(1)
	f.mu.Lock()
	f.calls[text]++
	err := f.fail[text]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Clip{}, ctx.Err()
		}
	}
	if err != nil {
		return Clip{}, err
	}
	d, ok := f.durations[text]
	if !ok {
		d = 1
	}
	// Leave Duration unset so the reconciler decodes it.
	return Clip{Audio: wav.Silence(d, wav.Mono16(8000))}, nil
}

func (f *fakeEngine) callsFor(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

func (f *fakeEngine) Info() Info      { return Info{Name: "fake", SampleRate: 8000} }
func (f *fakeEngine) Validate() error { return nil }
func (f *fakeEngine) Close() error    { return nil }

func scenario() *timeline.Timeline {
	tl := &timeline.Timeline{
		Voice: "en",
		Scenes: []timeline.Scene{
			{ID: "a", Subtitle: "alpha"},
			{ID: "b1", GroupKey: "b", Subtitle: "bravo one || bravo two"},
			{ID: "b2", GroupKey: "b"},
			{ID: "c", Subtitle: "charlie"},
			{ID: "d", Subtitle: "![only an image](x.png)", PredictedDuration: 1},
		},
	}
	tl.Normalize()
	return tl
}

func newTestReconciler(t *testing.T, engine Engine) (*Reconciler, *cache.Cache) {
	t.Helper()
	c, err := cache.New(cache.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return NewReconciler(engine, c, Options{Concurrency: 3, Retries: 1, RetryDelay: time.Millisecond}), c
}

func TestReconcileAll(t *testing.T) {
	engine := newFakeEngine(map[string]float64{"alpha": 2, "bravo one": 1.5, "bravo two": 1, "charlie": 3})
	r, _ := newTestReconciler(t, engine)
	tl := scenario()

	assert.Equal(t, []int{0, 1, 2, 3}, r.FindMissing(tl, tl.Indices()))

	report := r.Reconcile(context.Background(), tl, tl.Indices())
	require.NoError(t, report.Err())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, report.Ready)
	assert.Equal(t, []int{0, 1, 2, 3}, report.Synthesized)
	assert.Empty(t, r.FindMissing(tl, tl.Indices()))

	segs := tl.SceneSegments(2)
	require.Len(t, segs, 1)
	e, ok := r.Entry(tl, segs[0])
	require.True(t, ok)
	assert.InDelta(t, 1.0, e.Duration, 1e-3)

	l := tl.Layout(r.Known(tl))
	assert.InDelta(t, 7.5, l.GroupStart(3), 1e-3)
	assert.InDelta(t, 8.5, l.Total(), 1e-3)
}

func TestReconcileIsIdempotent(t *testing.T) {
	engine := newFakeEngine(nil)
	r, _ := newTestReconciler(t, engine)
	tl := scenario()

	r.Reconcile(context.Background(), tl, tl.Indices())
	first := engine.total.Load()
	report := r.Reconcile(context.Background(), tl, tl.Indices())

	assert.Equal(t, first, engine.total.Load(), "second pass must not synthesize")
	assert.Empty(t, report.Synthesized)
	assert.Len(t, report.Ready, len(tl.Scenes))
}

func TestReconcileSharesIdenticalKeys(t *testing.T) {
	engine := newFakeEngine(nil)
	engine.delay = 20 * time.Millisecond
	r, _ := newTestReconciler(t, engine)

	tl := &timeline.Timeline{Voice: "en", Scenes: []timeline.Scene{
		{ID: "x", Subtitle: "same words"},
		{ID: "y", Subtitle: "same   words"},
		{ID: "z", Subtitle: "same words", VoiceOverride: "de"},
	}}
	tl.Normalize()

	report := r.Reconcile(context.Background(), tl, tl.Indices())
	require.NoError(t, report.Err())
	// x and y normalize to one key; z differs by voice.
	assert.Equal(t, 2, engine.callsFor("same words"))
}

func TestReconcilePartialFailure(t *testing.T) {
	engine := newFakeEngine(nil)
	engine.fail["bravo two"] = errors.New("engine exploded")
	r, _ := newTestReconciler(t, engine)
	tl := scenario()

	report := r.Reconcile(context.Background(), tl, tl.Indices())

	require.Len(t, report.Failures, 1)
	f := report.Failures[0]
	assert.Equal(t, 2, f.Scene)
	assert.Equal(t, "b2", f.SceneID)
	assert.ErrorIs(t, f.Err, ErrSynthesisFailed)
	assert.Equal(t, ErrorCodeEngineFailure, f.Code())

	var te *Error
	require.ErrorAs(t, f.Err, &te)
	assert.Equal(t, 2, te.Scene)
	assert.Equal(t, "en", te.Voice)

	assert.Equal(t, []int{0, 1, 3, 4}, report.Ready)
	assert.False(t, report.AllFailed())
	// Non-retryable errors are attempted once.
	assert.Equal(t, 1, engine.callsFor("bravo two"))
}

func TestReconcileRetriesTimeouts(t *testing.T) {
	engine := newFakeEngine(nil)
	engine.fail["alpha"] = NewError(ErrorCodeEngineTimeout, "slow", nil)
	r, _ := newTestReconciler(t, engine)
	tl := scenario()

	report := r.Reconcile(context.Background(), tl, []int{0})
	require.Len(t, report.Failures, 1)
	assert.True(t, report.AllFailed())
	assert.Equal(t, 2, engine.callsFor("alpha"))
}

func TestReconcileCancelled(t *testing.T) {
	engine := newFakeEngine(nil)
	engine.delay = time.Second
	r, _ := newTestReconciler(t, engine)
	tl := scenario()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	report := r.Reconcile(ctx, tl, tl.Indices())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.NotEmpty(t, report.Failures)
}

func TestReconcileSurvivesOtherCallerCancel(t *testing.T) {
	engine := newFakeEngine(map[string]float64{"alpha": 2})
	engine.delay = 150 * time.Millisecond
	r, _ := newTestReconciler(t, engine)
	tl := scenario()

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var aborted, kept Report
	wg.Add(2)
	go func() {
		defer wg.Done()
		aborted = r.Reconcile(short, tl, []int{0})
	}()
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		kept = r.Reconcile(context.Background(), tl, []int{0})
	}()
	wg.Wait()

	assert.NotEmpty(t, aborted.Failures)
	require.NoError(t, kept.Err())
	assert.Equal(t, []int{0}, kept.Ready)
	assert.Equal(t, 1, engine.callsFor("alpha"), "the live caller shares the first synthesis")

	e, ok := r.Entry(tl, tl.SceneSegments(0)[0])
	require.True(t, ok)
	assert.InDelta(t, 2.0, e.Duration, 1e-3)
}

func TestResynthesize(t *testing.T) {
	engine := newFakeEngine(map[string]float64{"alpha": 2})
	r, c := newTestReconciler(t, engine)
	tl := scenario()

	r.Reconcile(context.Background(), tl, []int{0})
	before, _ := r.Entry(tl, tl.SceneSegments(0)[0])

	engine.durations = map[string]float64{"alpha": 2.5}
	require.NoError(t, r.Resynthesize(context.Background(), tl, 0))

	after, ok := r.Entry(tl, tl.SceneSegments(0)[0])
	require.True(t, ok)
	assert.Equal(t, before.Key, after.Key)
	assert.InDelta(t, 2.5, after.Duration, 1e-3)
	assert.Equal(t, 2, engine.callsFor("alpha"))
	assert.Equal(t, 1, c.Stats().Entries)

	assert.Error(t, r.Resynthesize(context.Background(), tl, 42))
}
