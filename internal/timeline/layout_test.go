package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeGroups() *Timeline {
	tl := &Timeline{
		Voice: "en",
		Scenes: []Scene{
			{ID: "a", Subtitle: "alpha"},
			{ID: "b1", GroupKey: "b", Subtitle: "one || two", Transition: TransitionSlideUp},
			{ID: "b2", GroupKey: "b"},
			{ID: "c", Subtitle: "gamma"},
		},
	}
	tl.Normalize()
	return tl
}

func knownDurations(m map[string]float64) DurationFunc {
	return func(seg Segment) (float64, bool) {
		d, ok := m[seg.Text]
		return d, ok
	}
}

func TestLayoutKnownDurations(t *testing.T) {
	tl := threeGroups()
	l := tl.Layout(knownDurations(map[string]float64{"alpha": 2.0, "one": 1.5, "two": 1.0, "gamma": 3.0}))

	require.Equal(t, 3, l.Len())
	assert.InDelta(t, 7.5, l.Total(), 1e-9)
	assert.InDelta(t, 2.0, l.GroupStart(1), 1e-9)
	assert.InDelta(t, 2.5, l.GroupDuration(1), 1e-9)
	assert.InDelta(t, 4.5, l.GroupStart(2), 1e-9)
	assert.InDelta(t, 3.5, l.SegmentStart(1, 1), 1e-9)
	assert.Equal(t, l.Total(), l.GroupStart(9))

	tests := []struct {
		at      float64
		group   int
		segment int
		scene   int
	}{
		{0, 0, 0, 0},
		{1.99, 0, 0, 0},
		{2.0, 1, 0, 1},
		{3.6, 1, 1, 2},
		{4.5, 2, 0, 3},
		{-1, 0, 0, 0},
		{99, 2, 0, 3},
	}
	for _, tc := range tests {
		p := l.Locate(tc.at)
		assert.Equal(t, tc.group, p.Group, "group at %.2f", tc.at)
		assert.Equal(t, tc.segment, p.Segment, "segment at %.2f", tc.at)
		assert.Equal(t, tc.scene, p.Scene, "scene at %.2f", tc.at)
	}

	p := l.Locate(3.6)
	assert.InDelta(t, 2.0, p.GroupStart, 1e-9)
	assert.InDelta(t, 3.5, p.SegmentStart, 1e-9)
	assert.InDelta(t, 3.6, p.Time, 1e-9)
}

func TestLayoutPredicted(t *testing.T) {
	tl := threeGroups()
	l := tl.Layout(nil)
	assert.InDelta(t, 4.0, l.Total(), 1e-9)
	assert.InDelta(t, 2.0, l.SegmentStart(1, 1), 1e-9)
}

func TestLayoutMeasuredWins(t *testing.T) {
	tl := threeGroups()
	tl.SetMeasured(1, 2.0)
	tl.SetMeasured(2, 0.5)
	l := tl.Layout(knownDurations(map[string]float64{"one": 9, "two": 9}))

	assert.InDelta(t, 2.5, l.GroupDuration(1), 1e-9)
	assert.InDelta(t, 3.0, l.SegmentStart(1, 1), 1e-9)
}

func TestLayoutSilentMember(t *testing.T) {
	tl := threeGroups()
	tl.Scenes[1].Subtitle = "only"
	tl.Scenes[1].PredictedDuration = 0
	tl.Normalize()

	l := tl.Layout(nil)
	assert.InDelta(t, 2.0, l.GroupDuration(1), 1e-9)
	p := l.Locate(2.5)
	assert.Equal(t, 1, p.Group)
	assert.Equal(t, 0, p.Segment)
}

func TestLayoutSilentGroup(t *testing.T) {
	tl := &Timeline{Scenes: []Scene{{ID: "x", PredictedDuration: 2}, {ID: "y", Subtitle: "hi"}}}
	tl.Normalize()

	l := tl.Layout(nil)
	assert.InDelta(t, 3.0, l.Total(), 1e-9)
	p := l.Locate(1)
	assert.Equal(t, 0, p.Group)
	assert.Equal(t, 0, p.Scene)
	assert.Equal(t, 1, l.Locate(2.5).Group)
}
