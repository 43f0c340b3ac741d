package playback

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/audio"
	"github.com/dgnsrekt/scenecast/internal/render"
	"github.com/dgnsrekt/scenecast/internal/timeline"
)

// Preview auditions a single scene. It shares the orchestrator's
// synthesizer, speaker and stage, so clips it plays stay warm in the cache.
type Preview struct {
	orch *Orchestrator
}

// NewPreview returns a preview player built on o.
func NewPreview(o *Orchestrator) *Preview {
	return &Preview{orch: o}
}

// PlayScene plays the segments owned by scene and returns the elapsed
// timeline seconds. Measured durations are not stored.
func (p *Preview) PlayScene(ctx context.Context, tl *timeline.Timeline, scene int) (float64, error) {
	if scene < 0 || scene >= len(tl.Scenes) {
		return 0, fmt.Errorf("%w: no scene %d", ErrInvalidState, scene)
	}
	o := p.orch

	report := o.synth.Reconcile(ctx, tl, []int{scene})
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if report.AllFailed() {
		return 0, fmt.Errorf("scene %d: %w: %w", scene, ErrGroupUnavailable, report.Err())
	}

	g := tl.Groups()[tl.GroupOf(scene)]
	ref := GroupRef(g)
	first := tl.Scenes[g.First()]

	kind, duration := timeline.TransitionNone, 0.0
	if scene == g.First() {
		var audioLen float64
		for _, seg := range tl.SceneSegments(scene) {
			if e, ok := o.synth.Entry(tl, seg); ok {
				audioLen += e.Duration
			}
		}
		kind = first.Transition
		duration = render.EffectiveDuration(kind, first.TransitionDuration, audioLen)
	}

	o.stage.Load(ref, first.Visual)
	o.stage.Enter(ref, kind, duration, "", nil)
	defer o.stage.ForceVisible(ref)

	start := o.clock.mark()
	for _, seg := range tl.SceneSegments(scene) {
		if err := ctx.Err(); err != nil {
			return o.clock.since(start), err
		}
		if seg.Empty() {
			continue
		}
		entry, ok := o.synth.Entry(tl, seg)
		if !ok {
			log.Warn("no audio for segment, skipping", "scene", scene, "segment", seg.Index)
			continue
		}

		o.stage.ShowSegment(ref, seg.Text)
		res := o.speaker.Play(ctx, entry, o.Rate(tl))
		switch res.Outcome {
		case audio.OutcomeFailed:
			log.Warn("segment playback failed", "scene", scene, "segment", seg.Index, "error", res.Err)
		case audio.OutcomeCanceled, audio.OutcomeStopped:
			if err := ctx.Err(); err != nil {
				return o.clock.since(start), err
			}
			return o.clock.since(start), context.Canceled
		}
	}

	elapsed := o.clock.since(start)
	log.Debug("scene previewed", "scene", scene, "elapsed", elapsed)
	return elapsed, nil
}
