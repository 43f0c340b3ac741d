package tts

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dgnsrekt/scenecast/internal/cache"
	"github.com/dgnsrekt/scenecast/internal/markup"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/wav"
)

// Store is the subset of the synthesis cache the reconciler needs.
type Store interface {
	Get(key string) (cache.Entry, bool)
	Put(e cache.Entry) (cache.Entry, error)
}

// Options tunes a Reconciler.
type Options struct {
	// Concurrency bounds the number of scenes reconciled at once.
	Concurrency int
	// Retries is the number of extra attempts for retryable errors.
	Retries    int
	RetryDelay time.Duration
}

// DefaultOptions returns conservative defaults.
func DefaultOptions() Options {
	return Options{Concurrency: 4, Retries: 2, RetryDelay: 500 * time.Millisecond}
}

// Reconciler makes sure every segment of a set of scenes has cached audio.
type Reconciler struct {
	engine Engine
	store  Store
	opts   Options

	flight singleflight.Group
	calls  atomic.Int64

	mu     sync.Mutex
	shared map[string]*sharedCall
}

// sharedCall is the context of one in-flight synthesis. It is cancelled
// when the last caller waiting on it gives up.
type sharedCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewReconciler creates a reconciler that synthesizes through engine and
// stores results in store.
func NewReconciler(engine Engine, store Store, opts Options) *Reconciler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Reconciler{engine: engine, store: store, opts: opts, shared: make(map[string]*sharedCall)}
}

// Synthesized returns the number of engine calls made so far.
func (r *Reconciler) Synthesized() int64 {
	return r.calls.Load()
}

// Markup returns the voice and speech markup for a segment. The markup is
// empty when the segment has nothing speakable.
func Markup(tl *timeline.Timeline, seg timeline.Segment) (voice, m string) {
	return tl.VoiceFor(seg.Scene), markup.FromSubtitle(seg.Text)
}

// Entry returns the cached entry for a segment.
func (r *Reconciler) Entry(tl *timeline.Timeline, seg timeline.Segment) (cache.Entry, bool) {
	voice, m := Markup(tl, seg)
	if m == "" {
		return cache.Entry{}, false
	}
	e, ok := r.store.Get(cache.Key(voice, m))
	if !ok || !e.Ready() {
		return cache.Entry{}, false
	}
	return e, true
}

// Known returns a duration lookup for timeline layouts.
func (r *Reconciler) Known(tl *timeline.Timeline) timeline.DurationFunc {
	return func(seg timeline.Segment) (float64, bool) {
		e, ok := r.Entry(tl, seg)
		if !ok {
			return 0, false
		}
		return e.Duration, true
	}
}

// FindMissing returns the scenes that own at least one speakable segment
// without a ready cache entry.
func (r *Reconciler) FindMissing(tl *timeline.Timeline, scenes []int) []int {
	var missing []int
	for _, i := range scenes {
		for _, seg := range tl.SceneSegments(i) {
			if _, m := Markup(tl, seg); m == "" {
				continue
			}
			if _, ok := r.Entry(tl, seg); !ok {
				missing = append(missing, i)
				break
			}
		}
	}
	return missing
}

// Reconcile synthesizes every missing segment of scenes. Scenes are handled
// concurrently and one scene's failure does not affect the others.
func (r *Reconciler) Reconcile(ctx context.Context, tl *timeline.Timeline, scenes []int) Report {
	missing := r.FindMissing(tl, scenes)
	need := make(map[int]bool, len(missing))
	for _, i := range missing {
		need[i] = true
	}

	var report Report
	for _, i := range scenes {
		if !need[i] {
			report.Ready = append(report.Ready, i)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.opts.Concurrency)
	for _, i := range missing {
		g.Go(func() error {
			err := r.reconcileScene(ctx, tl, i, false)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, Failure{Scene: i, SceneID: tl.Scenes[i].ID, Err: err})
				return nil
			}
			report.Ready = append(report.Ready, i)
			report.Synthesized = append(report.Synthesized, i)
			return nil
		})
	}
	_ = g.Wait()

	sort.Ints(report.Ready)
	sort.Ints(report.Synthesized)
	sort.Slice(report.Failures, func(a, b int) bool { return report.Failures[a].Scene < report.Failures[b].Scene })

	if len(missing) > 0 {
		log.Debug("reconciled scenes", "missing", len(missing), "failed", len(report.Failures))
	}
	return report
}

// Resynthesize replaces the cached audio of every segment scene owns.
func (r *Reconciler) Resynthesize(ctx context.Context, tl *timeline.Timeline, scene int) error {
	if scene < 0 || scene >= len(tl.Scenes) {
		return NewError(ErrorCodeInvalidInput, "no such scene", nil)
	}
	return r.reconcileScene(ctx, tl, scene, true)
}

func (r *Reconciler) reconcileScene(ctx context.Context, tl *timeline.Timeline, scene int, force bool) error {
	var errs []error
	for _, seg := range tl.SceneSegments(scene) {
		voice, m := Markup(tl, seg)
		if m == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return AsError(err).For(scene, voice)
		}
		if err := r.ensure(ctx, voice, m, force); err != nil {
			errs = append(errs, AsError(err).For(scene, voice))
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

// ensure caches audio for one voice and markup pair. Concurrent calls for
// the same key share one synthesis.
// The synthesis runs under a context shared by its callers, so one caller
// giving up does not fail the others.
func (r *Reconciler) ensure(ctx context.Context, voice, m string, force bool) error {
	key := cache.Key(voice, m)
	call := r.join(ctx, key)
	defer r.leave(key, call)

	ch := r.flight.DoChan(key, func() (any, error) {
		if !force {
			if e, ok := r.store.Get(key); ok && e.Ready() {
				return e, nil
			}
		}
		return r.synthesize(call.ctx, key, voice, m)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) join(ctx context.Context, key string) *sharedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.shared[key]
	if !ok {
		sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &sharedCall{ctx: sctx, cancel: cancel}
		r.shared[key] = call
	}
	call.waiters++
	return call
}

func (r *Reconciler) leave(key string, call *sharedCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if r.shared[key] == call {
		delete(r.shared, key)
	}
	// A later caller starts afresh instead of joining the cancelled run.
	r.flight.Forget(key)
}

func (r *Reconciler) synthesize(ctx context.Context, key, voice, m string) (cache.Entry, error) {
	attempts := r.opts.Retries + 1
	var last *Error
	for attempt := 1; attempt <= attempts; attempt++ {
		r.calls.Add(1)
		start := time.Now()
		clip, err := r.engine.Synthesize(ctx, Request{Voice: voice, Markup: m})
		if err == nil {
			return r.keep(key, voice, m, clip, time.Since(start))
		}

		last = AsError(err)
		if !last.IsRetryable() || attempt == attempts || ctx.Err() != nil {
			break
		}
		log.Debug("retrying synthesis", "key", key, "attempt", attempt, "error", err)
		select {
		case <-time.After(r.opts.RetryDelay):
		case <-ctx.Done():
			return cache.Entry{}, AsError(ctx.Err())
		}
	}
	return cache.Entry{}, last
}

// keep validates a clip and puts it into the store.
func (r *Reconciler) keep(key, voice, m string, clip Clip, took time.Duration) (cache.Entry, error) {
	if len(clip.Audio) == 0 {
		return cache.Entry{}, NewError(ErrorCodeAudioFormat, "engine returned no audio", nil)
	}
	duration := clip.Duration
	if duration <= 0 {
		d, err := wav.Duration(clip.Audio)
		if err != nil {
			return cache.Entry{}, NewError(ErrorCodeAudioFormat, "unreadable engine output", err)
		}
		duration = d
	}
	if duration <= 0 {
		return cache.Entry{}, NewError(ErrorCodeAudioFormat, "engine returned empty audio", nil)
	}

	e, err := r.store.Put(cache.Entry{
		Key:      key,
		Voice:    voice,
		Markup:   m,
		Payload:  cache.Payload{Data: clip.Audio},
		Duration: duration,
	})
	if err != nil {
		return cache.Entry{}, NewError(ErrorCodeCacheFailed, "unable to cache audio", err)
	}
	log.Debug("synthesized", "key", key, "voice", voice, "duration", duration, "took", took)
	return e, nil
}
