package playback

import (
	"context"

	"github.com/dgnsrekt/scenecast/internal/audio"
	"github.com/dgnsrekt/scenecast/internal/cache"
	"github.com/dgnsrekt/scenecast/internal/render"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/tts"
)

// Synthesizer prepares and looks up segment audio. *tts.Reconciler
// implements it.
type Synthesizer interface {
	Reconcile(ctx context.Context, tl *timeline.Timeline, scenes []int) tts.Report
	Resynthesize(ctx context.Context, tl *timeline.Timeline, scene int) error
	Entry(tl *timeline.Timeline, seg timeline.Segment) (cache.Entry, bool)
	Known(tl *timeline.Timeline) timeline.DurationFunc
}

// Speaker plays one clip at a time. *audio.Manager implements it.
type Speaker interface {
	Play(ctx context.Context, e cache.Entry, rate float64) audio.Result
	Stop()
	Pause()
	Resume()
}

// Stage draws group visuals. *render.Renderer implements it.
type Stage interface {
	Load(ref render.Ref, v timeline.Visual)
	Enter(ref render.Ref, kind timeline.TransitionKind, duration float64, prev render.Ref, onComplete func()) *render.Handle
	ShowSegment(ref render.Ref, text string)
	Hide(ref render.Ref)
	ForceVisible(ref render.Ref)
	KillAll()
	ActiveHandles() int
	Pause()
	Resume()
}

// DurationStore persists measured scene durations keyed by scene id.
// *timeline.FileStore implements it.
type DurationStore interface {
	SaveMeasured(ctx context.Context, measured map[string]float64) error
}

// Music is a background track. *audio.Loop implements it.
type Music interface {
	Start() error
	Pause()
	Resume()
	Stop()
}

var (
	_ Synthesizer   = (*tts.Reconciler)(nil)
	_ Speaker       = (*audio.Manager)(nil)
	_ Stage         = (*render.Renderer)(nil)
	_ DurationStore = (*timeline.FileStore)(nil)
	_ Music         = (*audio.Loop)(nil)
)
