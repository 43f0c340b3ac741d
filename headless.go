package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/scenecast/internal/playback"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/tts/engines"
)

// errPlaybackFailed is returned when nothing in the project could be voiced.
var errPlaybackFailed = errors.New("playback failed: no scene could be synthesized")

// lineReporter prints one line per segment for headless playback.
type lineReporter struct {
	w      io.Writer
	engine string

	mu       sync.Mutex
	tl       *timeline.Timeline
	groups   []timeline.Group
	total    float64
	failures []tts.Failure
	played   int
	guided   bool
}

func newLineReporter(w io.Writer, tl *timeline.Timeline, engine string) *lineReporter {
	r := &lineReporter{w: w, engine: engine}
	r.reset(tl)
	return r
}

// reset forgets everything reported about the previous project.
func (r *lineReporter) reset(tl *timeline.Timeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tl = tl
	r.groups = tl.Groups()
	r.total = tl.Total()
	r.failures = nil
	r.played = 0
	r.guided = false
}

func (r *lineReporter) callbacks() playback.Callbacks {
	return playback.Callbacks{
		Progress: func(_, total float64) {
			r.mu.Lock()
			r.total = total
			r.mu.Unlock()
		},
		SegmentChanged: r.segment,
		GroupCompleted: func(key string, actual float64) {
			r.mu.Lock()
			r.played++
			r.mu.Unlock()
			log.Info("group completed", "group", key, "actual", actual)
		},
		SynthesisFailed: r.failed,
		StateChanged: func(s playback.State) {
			log.Debug("headless state", "state", s)
		},
	}
}

func (r *lineReporter) segment(pos timeline.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s\n",
		subtle(fmt.Sprintf("[%s / %s] scene %d/%d", clock(pos.Time), clock(r.total), pos.Group+1, len(r.groups))),
		r.text(pos),
	)
}

func (r *lineReporter) failed(failures []tts.Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, failures...)
	for _, f := range failures {
		fmt.Fprintln(r.w, failure(fmt.Sprintf("✗ scene %d (%s): %v", f.Scene+1, f.SceneID, f.Err)))
		if r.guided {
			continue
		}
		if guide := engines.Guidance(r.engine, f.Err); guide != "" {
			fmt.Fprintln(r.w, paragraph(guide))
			r.guided = true
		}
	}
}

// err reports a failed run: failures and no group played.
func (r *lineReporter) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failures) > 0 && r.played == 0 {
		return errPlaybackFailed
	}
	return nil
}

// text returns the subtitle of the segment at pos.
func (r *lineReporter) text(pos timeline.Position) string {
	if pos.Group < 0 || pos.Group >= len(r.groups) {
		return ""
	}
	segs := r.tl.Segments(r.groups[pos.Group])
	if pos.Segment < 0 || pos.Segment >= len(segs) {
		return ""
	}
	return oneLine(segs[pos.Segment].Text)
}

// clock renders seconds as m:ss.
func clock(seconds float64) string {
	d := time.Duration(max(0, seconds) * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// oneLine collapses whitespace so a subtitle fits on a line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
