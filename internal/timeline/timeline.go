package timeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SegmentSeparator splits a group's subtitle source into segments.
const SegmentSeparator = "||"

// DefaultWordsPerMinute drives the predicted-duration heuristic.
const DefaultWordsPerMinute = 150

var (
	// ErrEmptyTimeline is returned when a timeline has no scenes.
	ErrEmptyTimeline = errors.New("timeline has no scenes")

	// ErrSplitGroup is returned when a group key re-appears after another group.
	ErrSplitGroup = errors.New("group scenes must be consecutive")
)

// Visual is the rendered image of a scene group and its 2D transform.
type Visual struct {
	Image    string  `yaml:"image"`
	X        float64 `yaml:"x,omitempty"`
	Y        float64 `yaml:"y,omitempty"`
	Width    float64 `yaml:"width,omitempty"`
	Height   float64 `yaml:"height,omitempty"`
	Rotation float64 `yaml:"rotation,omitempty"`
}

// Scene is one timeline entry.
type Scene struct {
	ID       string `yaml:"id"`
	GroupKey string `yaml:"group,omitempty"`
	Subtitle string `yaml:"subtitle"`
	Visual   Visual `yaml:"visual"`

	// PredictedDuration is the pre-synthesis estimate in seconds.
	PredictedDuration float64 `yaml:"predicted_duration,omitempty"`

	Transition         TransitionKind `yaml:"transition,omitempty"`
	TransitionDuration float64        `yaml:"transition_duration,omitempty"`

	VoiceOverride string `yaml:"voice,omitempty"`

	// MeasuredDuration is written back after a real playback pass and
	// supersedes PredictedDuration once set.
	MeasuredDuration *float64 `yaml:"measured_duration,omitempty"`
}

// Duration returns the best-known duration of the scene in seconds.
func (s Scene) Duration() float64 {
	if s.MeasuredDuration != nil {
		return *s.MeasuredDuration
	}
	if s.PredictedDuration > 0 {
		return s.PredictedDuration
	}
	return PredictDuration(s.Subtitle, DefaultWordsPerMinute)
}

// Timeline is an ordered list of scenes plus global playback settings.
type Timeline struct {
	Title         string  `yaml:"title,omitempty"`
	Voice         string  `yaml:"voice"`
	PlaybackSpeed float64 `yaml:"playback_speed,omitempty"`
	Music         string  `yaml:"music,omitempty"`
	Scenes        []Scene `yaml:"scenes"`
}

// Speed returns the playback rate, defaulting to 1.
func (t *Timeline) Speed() float64 {
	if t.PlaybackSpeed <= 0 {
		return 1.0
	}
	return t.PlaybackSpeed
}

// VoiceFor returns the voice identity used for scene i.
func (t *Timeline) VoiceFor(i int) string {
	if i >= 0 && i < len(t.Scenes) && t.Scenes[i].VoiceOverride != "" {
		return t.Scenes[i].VoiceOverride
	}
	return t.Voice
}

// SetMeasured records the measured playback duration of scene i.
func (t *Timeline) SetMeasured(i int, seconds float64) {
	if i < 0 || i >= len(t.Scenes) {
		return
	}
	d := seconds
	t.Scenes[i].MeasuredDuration = &d
}

// Total returns the best-known total duration in seconds.
func (t *Timeline) Total() float64 {
	var total float64
	for _, s := range t.Scenes {
		total += s.Duration()
	}
	return total
}

// Indices returns every scene index in order.
func (t *Timeline) Indices() []int {
	out := make([]int, len(t.Scenes))
	for i := range out {
		out[i] = i
	}
	return out
}

// IndexOf returns the index of the scene with the given id, or -1.
func (t *Timeline) IndexOf(id string) int {
	for i, s := range t.Scenes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the timeline.
func (t *Timeline) Clone() *Timeline {
	c := *t
	c.Scenes = make([]Scene, len(t.Scenes))
	for i, s := range t.Scenes {
		if s.MeasuredDuration != nil {
			d := *s.MeasuredDuration
			s.MeasuredDuration = &d
		}
		c.Scenes[i] = s
	}
	return &c
}

// Normalize assigns missing ids and fills predicted durations. It reports
// whether any id was assigned.
func (t *Timeline) Normalize() bool {
	assigned := false
	for i := range t.Scenes {
		s := &t.Scenes[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
			assigned = true
		}
		if s.PredictedDuration <= 0 {
			s.PredictedDuration = PredictDuration(s.Subtitle, DefaultWordsPerMinute)
		}
		if s.Transition == "" {
			s.Transition = TransitionNone
		}
	}
	return assigned
}

// Validate checks structural invariants of the timeline.
func (t *Timeline) Validate() error {
	if len(t.Scenes) == 0 {
		return ErrEmptyTimeline
	}
	if t.PlaybackSpeed < 0 {
		return fmt.Errorf("playback speed must be positive, got %.2f", t.PlaybackSpeed)
	}

	ids := make(map[string]bool, len(t.Scenes))
	closed := make(map[string]bool)
	prev := ""
	for i, s := range t.Scenes {
		if s.ID != "" {
			if ids[s.ID] {
				return fmt.Errorf("scene %d: duplicate id %q", i, s.ID)
			}
			ids[s.ID] = true
		}
		if s.Transition != "" && !s.Transition.Valid() {
			return fmt.Errorf("scene %d: %w", i, ErrUnknownTransition)
		}
		if s.TransitionDuration < 0 {
			return fmt.Errorf("scene %d: transition duration must not be negative", i)
		}
		if s.GroupKey != prev {
			if prev != "" {
				closed[prev] = true
			}
			if s.GroupKey != "" && closed[s.GroupKey] {
				return fmt.Errorf("scene %d: group %q: %w", i, s.GroupKey, ErrSplitGroup)
			}
		}
		prev = s.GroupKey
	}
	return nil
}

// PredictDuration estimates how long a subtitle takes to speak.
func PredictDuration(subtitle string, wordsPerMinute int) float64 {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	text := strings.ReplaceAll(subtitle, SegmentSeparator, " ")
	words := len(strings.Fields(text))
	d := float64(words) * 60 / float64(wordsPerMinute)
	if d < 1 {
		d = 1
	}
	return d
}

// SameContent reports whether t and o differ only in measured durations.
// Watch mode uses it to ignore the project rewrites of a FileStore.
func (t *Timeline) SameContent(o *Timeline) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Title != o.Title || t.Voice != o.Voice || t.Speed() != o.Speed() || t.Music != o.Music {
		return false
	}
	if len(t.Scenes) != len(o.Scenes) {
		return false
	}
	for i := range t.Scenes {
		a, b := t.Scenes[i], o.Scenes[i]
		a.MeasuredDuration, b.MeasuredDuration = nil, nil
		if a != b {
			return false
		}
	}
	return true
}
