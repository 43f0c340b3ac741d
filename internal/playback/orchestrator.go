package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/audio"
	"github.com/dgnsrekt/scenecast/internal/render"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/tts"
)

// Options tunes an Orchestrator.
type Options struct {
	// TimeScale converts wall time to timeline time. It must match the
	// scale used by the audio backend and the renderer; tests run below 1.
	TimeScale float64
}

// GroupRequest asks the Orchestrator to play one group.
type GroupRequest struct {
	Group        int
	StartSegment int

	// Prev is the visual on screen before this group.
	Prev render.Ref

	// Seek is asked at every segment boundary for a pending seek. It
	// returns the target and clears it.
	Seek func() (timeline.Position, bool)

	// OnSegment is called when a segment starts.
	OnSegment func(pos timeline.Position)
}

// GroupResult reports one PlayGroup call.
type GroupResult struct {
	Group int
	Key   string
	Ref   render.Ref

	Report tts.Report

	// Completed is set when every segment from the first one was played
	// without abort or redirect.
	Completed bool

	// Redirect is a seek target outside the group that ended it early.
	Redirect *timeline.Position

	// Actual is the unpaused time spent in the group, in seconds.
	Actual float64

	// Played is the decoded audio played per scene index.
	Played map[int]float64

	// Measured holds the redistributed duration of every member scene. It
	// is only set for completed groups that played audio.
	Measured map[int]float64
}

// Orchestrator plays scene groups.
type Orchestrator struct {
	synth   Synthesizer
	speaker Speaker
	stage   Stage
	clock   *clock

	// speed holds math.Float64bits of the rate override; 0 means none.
	speed atomic.Uint64
}

// NewOrchestrator wires the components a group needs.
func NewOrchestrator(synth Synthesizer, speaker Speaker, stage Stage, opts Options) *Orchestrator {
	return &Orchestrator{synth: synth, speaker: speaker, stage: stage, clock: newClock(opts.TimeScale)}
}

// Synthesizer returns the synthesizer used for groups.
func (o *Orchestrator) Synthesizer() Synthesizer { return o.synth }

// Stage returns the renderer used for groups.
func (o *Orchestrator) Stage() Stage { return o.stage }

// Pause holds audio, animations and the group clock.
func (o *Orchestrator) Pause() {
	o.clock.pause()
	o.stage.Pause()
	o.speaker.Pause()
}

// Resume releases Pause.
func (o *Orchestrator) Resume() {
	o.speaker.Resume()
	o.stage.Resume()
	o.clock.resume()
}

// SetSpeed overrides the playback rate of every timeline from the next
// segment on. Zero restores the timeline's own rate.
func (o *Orchestrator) SetSpeed(rate float64) {
	o.speed.Store(math.Float64bits(max(rate, 0)))
}

// Rate returns the playback rate used for tl.
func (o *Orchestrator) Rate(tl *timeline.Timeline) float64 {
	if v := math.Float64frombits(o.speed.Load()); v > 0 {
		return v
	}
	return tl.Speed()
}

// GroupRef returns the visual ref of a group.
func GroupRef(g timeline.Group) render.Ref {
	return render.Ref(g.Key)
}

// PlayGroup reconciles, enters and plays one group. It returns
// ErrGroupUnavailable when nothing could be synthesized and ctx.Err() when
// aborted; the result is filled in either case.
func (o *Orchestrator) PlayGroup(ctx context.Context, tl *timeline.Timeline, req GroupRequest) (GroupResult, error) {
	groups := tl.Groups()
	if req.Group < 0 || req.Group >= len(groups) {
		return GroupResult{}, fmt.Errorf("%w: no group %d", ErrInvalidState, req.Group)
	}
	g := groups[req.Group]
	ref := GroupRef(g)
	res := GroupResult{Group: g.Index, Key: g.Key, Ref: ref, Played: make(map[int]float64)}

	start := o.clock.mark()

	res.Report = o.synth.Reconcile(ctx, tl, g.Scenes)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	segs := tl.Segments(g)
	var groupAudio float64
	playable := 0
	for _, seg := range segs {
		if e, ok := o.synth.Entry(tl, seg); ok {
			groupAudio += e.Duration
			playable++
		}
	}
	speakable := speakableCount(tl, segs)
	if playable == 0 && len(res.Report.Failures) > 0 {
		return res, fmt.Errorf("group %q: %w: %w", g.Key, ErrGroupUnavailable, res.Report.Err())
	}

	first := tl.Scenes[g.First()]
	kind := first.Transition
	duration := render.EffectiveDuration(kind, first.TransitionDuration, groupAudio)
	if req.StartSegment > 0 {
		kind, duration = timeline.TransitionNone, 0
	}
	o.stage.Load(ref, first.Visual)
	o.stage.Enter(ref, kind, duration, req.Prev, nil)
	log.Debug("group started", "group", g.Key, "transition", kind, "duration", duration, "audio", groupAudio)

	if speakable == 0 {
		// Nothing to say: hold the visual for its best-known length.
		o.stage.ShowSegment(ref, "")
		if err := o.clock.hold(ctx, tl.Layout(o.synth.Known(tl)).GroupDuration(g.Index)); err != nil {
			return res, err
		}
		res.Actual = o.clock.since(start)
		res.Completed = req.StartSegment == 0
		return res, nil
	}

	jumped := false
	for k := req.StartSegment; k < len(segs); k++ {
		if err := ctx.Err(); err != nil {
			res.Actual = o.clock.since(start)
			return res, err
		}
		if req.Seek != nil {
			if pos, ok := req.Seek(); ok {
				if pos.Group != g.Index {
					res.Redirect = &pos
					res.Actual = o.clock.since(start)
					return res, nil
				}
				jumped = true
				k = max(pos.Segment, 0)
				if k >= len(segs) {
					break
				}
			}
		}

		seg := segs[k]
		if req.OnSegment != nil {
			req.OnSegment(timeline.Position{Group: g.Index, Segment: k, Scene: seg.Scene})
		}
		if seg.Empty() {
			continue
		}
		entry, ok := o.synth.Entry(tl, seg)
		if !ok {
			if _, m := tts.Markup(tl, seg); m != "" {
				log.Warn("no audio for segment, skipping", "group", g.Key, "segment", k, "scene", seg.Scene)
			}
			continue
		}

		o.stage.ShowSegment(ref, seg.Text)
		played := o.speaker.Play(ctx, entry, o.Rate(tl))
		switch played.Outcome {
		case audio.OutcomeCompleted:
			res.Played[seg.Scene] += played.Decoded
		case audio.OutcomeFailed:
			log.Warn("segment playback failed", "group", g.Key, "segment", k, "error", played.Err)
		case audio.OutcomeCanceled:
			res.Actual = o.clock.since(start)
			return res, ctx.Err()
		case audio.OutcomeStopped:
			res.Actual = o.clock.since(start)
			if err := ctx.Err(); err != nil {
				return res, err
			}
			return res, context.Canceled
		}
	}

	res.Actual = o.clock.since(start)
	if req.StartSegment != 0 || jumped {
		return res, nil
	}
	res.Completed = true
	res.Measured = Distribute(res.Actual, g.Scenes, res.Played)

	var played float64
	for _, d := range res.Played {
		played += d
	}
	if res.Measured != nil {
		log.Debug("group measured", "group", g.Key, "actual", res.Actual, "decoded", played, "drift", res.Actual-played)
	}
	return res, nil
}

// speakableCount returns the number of segments with markup.
func speakableCount(tl *timeline.Timeline, segs []timeline.Segment) int {
	n := 0
	for _, seg := range segs {
		if _, m := tts.Markup(tl, seg); m != "" {
			n++
		}
	}
	return n
}

// Distribute splits actual seconds across scenes in proportion to the audio
// each one played. Scenes that played nothing get 0 and the last playing
// scene absorbs rounding, so the shares sum to actual. It returns nil when
// nothing was played.
func Distribute(actual float64, scenes []int, played map[int]float64) map[int]float64 {
	var total float64
	last := -1
	for _, s := range scenes {
		if played[s] > 0 {
			total += played[s]
			last = s
		}
	}
	if total <= 0 || last < 0 {
		return nil
	}

	actual = round3(actual)
	out := make(map[int]float64, len(scenes))
	remaining := actual
	for _, s := range scenes {
		if s == last {
			continue
		}
		share := round3(actual * played[s] / total)
		out[s] = share
		remaining -= share
	}
	out[last] = round3(remaining)
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// isAbort reports whether err ended a group because playback was aborted.
func isAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
