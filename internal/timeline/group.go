package timeline

import "strings"

// Group is a run of consecutive scenes sharing one visual.
type Group struct {
	Index  int
	Key    string
	Scenes []int
}

// First returns the index of the scene that owns the group's transition.
func (g Group) First() int {
	return g.Scenes[0]
}

// Segment is one separator-delimited unit of a group's subtitle source.
type Segment struct {
	// Index is the position within the group.
	Index int
	// Scene is the timeline index of the owning scene.
	Scene int
	Text  string
}

// Empty reports whether the segment has nothing to speak.
func (s Segment) Empty() bool {
	return s.Text == ""
}

// Groups partitions the timeline into scene groups.
func (t *Timeline) Groups() []Group {
	var groups []Group
	for i, s := range t.Scenes {
		if s.GroupKey != "" && len(groups) > 0 {
			last := &groups[len(groups)-1]
			if last.Key == s.GroupKey && t.Scenes[last.First()].GroupKey != "" {
				last.Scenes = append(last.Scenes, i)
				continue
			}
		}
		key := s.GroupKey
		if key == "" {
			key = s.ID
		}
		groups = append(groups, Group{Index: len(groups), Key: key, Scenes: []int{i}})
	}
	return groups
}

// GroupOf returns the index of the group containing scene i, or -1.
func (t *Timeline) GroupOf(i int) int {
	for _, g := range t.Groups() {
		for _, s := range g.Scenes {
			if s == i {
				return g.Index
			}
		}
	}
	return -1
}

// Segments splits the group's subtitle source. Segment i belongs to member
// scene i; surplus segments belong to the last member.
func (t *Timeline) Segments(g Group) []Segment {
	parts := SplitSubtitle(t.Scenes[g.First()].Subtitle)
	out := make([]Segment, len(parts))
	for i, p := range parts {
		owner := g.Scenes[len(g.Scenes)-1]
		if i < len(g.Scenes) {
			owner = g.Scenes[i]
		}
		out[i] = Segment{Index: i, Scene: owner, Text: p}
	}
	return out
}

// SceneSegments returns the segments owned by scene i.
func (t *Timeline) SceneSegments(i int) []Segment {
	gi := t.GroupOf(i)
	if gi < 0 {
		return nil
	}
	var out []Segment
	for _, seg := range t.Segments(t.Groups()[gi]) {
		if seg.Scene == i {
			out = append(out, seg)
		}
	}
	return out
}

// SplitSubtitle splits a subtitle source on SegmentSeparator. Empty parts are
// kept so that positions line up with member scenes.
func SplitSubtitle(source string) []string {
	if strings.TrimSpace(source) == "" {
		return nil
	}
	parts := strings.Split(source, SegmentSeparator)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
