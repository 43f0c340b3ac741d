package timeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Timeline {
	return &Timeline{
		Voice: "en",
		Scenes: []Scene{
			{ID: "a", Subtitle: "Hello there", Transition: TransitionFade},
			{ID: "b1", GroupKey: "intro", Subtitle: "First part || second part", Transition: TransitionSlideLeft},
			{ID: "b2", GroupKey: "intro"},
			{ID: "c", Subtitle: "Goodbye", VoiceOverride: "de"},
		},
	}
}

func TestGroups(t *testing.T) {
	tl := sample()
	groups := tl.Groups()
	require.Len(t, groups, 3)

	assert.Equal(t, "a", groups[0].Key)
	assert.Equal(t, []int{0}, groups[0].Scenes)
	assert.Equal(t, "intro", groups[1].Key)
	assert.Equal(t, []int{1, 2}, groups[1].Scenes)
	assert.Equal(t, 1, groups[1].First())
	assert.Equal(t, "c", groups[2].Key)

	assert.Equal(t, 1, tl.GroupOf(2))
	assert.Equal(t, -1, tl.GroupOf(9))
}

func TestSegmentsOwnership(t *testing.T) {
	tl := sample()
	g := tl.Groups()[1]

	segs := tl.Segments(g)
	require.Len(t, segs, 2)
	assert.Equal(t, Segment{Index: 0, Scene: 1, Text: "First part"}, segs[0])
	assert.Equal(t, Segment{Index: 1, Scene: 2, Text: "second part"}, segs[1])

	t.Run("surplus segments go to last member", func(t *testing.T) {
		tl := sample()
		tl.Scenes[1].Subtitle = "one || two || three"
		segs := tl.Segments(tl.Groups()[1])
		require.Len(t, segs, 3)
		assert.Equal(t, 2, segs[2].Scene)
		assert.Len(t, tl.SceneSegments(2), 2)
	})

	t.Run("member without segment", func(t *testing.T) {
		tl := sample()
		tl.Scenes[1].Subtitle = "only one"
		assert.Empty(t, tl.SceneSegments(2))
		assert.Len(t, tl.SceneSegments(1), 1)
	})
}

func TestSplitSubtitle(t *testing.T) {
	assert.Nil(t, SplitSubtitle("   "))
	assert.Equal(t, []string{"a", "", "b"}, SplitSubtitle("a || || b"))
	assert.Equal(t, []string{"plain"}, SplitSubtitle(" plain "))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Timeline)
		target error
	}{
		{"empty", func(tl *Timeline) { tl.Scenes = nil }, ErrEmptyTimeline},
		{"split group", func(tl *Timeline) { tl.Scenes[2].GroupKey = ""; tl.Scenes[3].GroupKey = "intro" }, ErrSplitGroup},
		{"unknown transition", func(tl *Timeline) { tl.Scenes[0].Transition = "wipe" }, ErrUnknownTransition},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tl := sample()
			tc.mutate(tl)
			err := tl.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.target), "got %v", err)
		})
	}

	t.Run("duplicate ids", func(t *testing.T) {
		tl := sample()
		tl.Scenes[3].ID = "a"
		assert.Error(t, tl.Validate())
	})

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, sample().Validate())
	})
}

func TestNormalize(t *testing.T) {
	tl := &Timeline{Scenes: []Scene{{Subtitle: "one two three"}, {ID: "x", Subtitle: "hi"}}}
	assert.True(t, tl.Normalize())
	assert.NotEmpty(t, tl.Scenes[0].ID)
	assert.Equal(t, TransitionNone, tl.Scenes[0].Transition)
	assert.Equal(t, 1.0, tl.Scenes[1].PredictedDuration)
	assert.False(t, tl.Normalize())
}

func TestSceneDuration(t *testing.T) {
	s := Scene{Subtitle: "x", PredictedDuration: 2.5}
	assert.Equal(t, 2.5, s.Duration())
	m := 3.25
	s.MeasuredDuration = &m
	assert.Equal(t, 3.25, s.Duration())
}

func TestPredictDuration(t *testing.T) {
	assert.Equal(t, 1.0, PredictDuration("", 150))
	words := "w w w w w w w w w w w w w w w w w w w w w w w w w"
	assert.InDelta(t, 10.0, PredictDuration(words, 150), 1e-9)
	assert.InDelta(t, 10.0, PredictDuration(words, 0), 1e-9)
}

func TestVoiceFor(t *testing.T) {
	tl := sample()
	assert.Equal(t, "en", tl.VoiceFor(0))
	assert.Equal(t, "de", tl.VoiceFor(3))
}

func TestClone(t *testing.T) {
	tl := sample()
	tl.SetMeasured(0, 2)
	c := tl.Clone()
	c.SetMeasured(0, 5)
	c.Scenes[1].Subtitle = "changed"
	assert.Equal(t, 2.0, *tl.Scenes[0].MeasuredDuration)
	assert.Equal(t, "First part || second part", tl.Scenes[1].Subtitle)
}

func TestParseTransition(t *testing.T) {
	k, err := ParseTransition(" Slide-Left ")
	require.NoError(t, err)
	assert.Equal(t, TransitionSlideLeft, k)
	assert.True(t, k.IsMovement())
	assert.False(t, k.HidesPreviousImmediately())

	k, err = ParseTransition("")
	require.NoError(t, err)
	assert.Equal(t, TransitionNone, k)

	_, err = ParseTransition("spin")
	assert.ErrorIs(t, err, ErrUnknownTransition)

	assert.True(t, TransitionGlitch.HidesPreviousImmediately())
	assert.False(t, TransitionFade.IsMovement())
}

func TestSameContent(t *testing.T) {
	tl := sample()
	c := tl.Clone()
	c.SetMeasured(1, 4.2)
	assert.True(t, tl.SameContent(c))

	c.Scenes[3].Subtitle = "See you"
	assert.False(t, tl.SameContent(c))

	c = tl.Clone()
	c.Scenes = c.Scenes[:2]
	assert.False(t, tl.SameContent(c))
	assert.False(t, tl.SameContent(nil))
}
