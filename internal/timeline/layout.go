package timeline

import "unicode/utf8"

// DurationFunc reports the cached audio duration of a segment in seconds.
type DurationFunc func(seg Segment) (float64, bool)

// Position is a point on the timeline resolved to its group and segment.
type Position struct {
	Time         float64
	Group        int
	Segment      int
	Scene        int
	GroupStart   float64
	SegmentStart float64
}

type span struct {
	start float64
	dur   float64
}

func (s span) end() float64 { return s.start + s.dur }

func (s span) contains(t float64) bool { return t >= s.start && t < s.end() }

// Layout holds cumulative group and segment spans for one timeline snapshot.
type Layout struct {
	groups   []Group
	groupSp  []span
	segSp    [][]span
	segScene [][]int
	total    float64
}

// Layout computes cumulative spans. Scene durations use the measured value,
// then the sum of known segment audio durations, then the prediction.
func (t *Timeline) Layout(known DurationFunc) *Layout {
	l := &Layout{groups: t.Groups()}
	l.groupSp = make([]span, len(l.groups))
	l.segSp = make([][]span, len(l.groups))
	l.segScene = make([][]int, len(l.groups))

	var cursor float64
	for gi, g := range l.groups {
		segs := t.Segments(g)
		spans := make([]span, len(segs))
		start := cursor
		carry := 0.0

		for _, si := range g.Scenes {
			var owned []int
			for k, seg := range segs {
				if seg.Scene == si {
					owned = append(owned, k)
				}
			}
			dur := t.sceneDuration(si, segs, owned, known)
			if len(owned) == 0 {
				// Time of a scene with nothing to say is folded into its neighbour.
				if last := lastOwnedBefore(segs, si); last >= 0 {
					spans[last].dur += dur
				} else {
					carry += dur
				}
				continue
			}
			weights := segmentWeights(segs, owned, known)
			for j, k := range owned {
				spans[k].dur = dur * weights[j]
			}
			if carry > 0 {
				spans[owned[0]].dur += carry
				carry = 0
			}
		}

		if len(spans) == 0 {
			spans = []span{{dur: carry}}
			l.segScene[gi] = []int{g.First()}
		} else {
			l.segScene[gi] = make([]int, len(segs))
			for k, seg := range segs {
				l.segScene[gi][k] = seg.Scene
			}
			if carry > 0 {
				spans[len(spans)-1].dur += carry
			}
		}

		for k := range spans {
			spans[k].start = cursor
			cursor += spans[k].dur
		}
		l.segSp[gi] = spans
		l.groupSp[gi] = span{start: start, dur: cursor - start}
	}
	l.total = cursor
	return l
}

func (t *Timeline) sceneDuration(si int, segs []Segment, owned []int, known DurationFunc) float64 {
	s := t.Scenes[si]
	if s.MeasuredDuration != nil {
		return *s.MeasuredDuration
	}
	if known != nil && len(owned) > 0 {
		var sum float64
		all := true
		for _, k := range owned {
			if segs[k].Empty() {
				continue
			}
			d, ok := known(segs[k])
			if !ok || d <= 0 {
				all = false
				break
			}
			sum += d
		}
		if all && sum > 0 {
			return sum
		}
	}
	return s.Duration()
}

func lastOwnedBefore(segs []Segment, scene int) int {
	last := -1
	for k, seg := range segs {
		if seg.Scene < scene {
			last = k
		}
	}
	return last
}

func segmentWeights(segs []Segment, owned []int, known DurationFunc) []float64 {
	w := make([]float64, len(owned))
	var sum float64
	if known != nil {
		for j, k := range owned {
			if d, ok := known(segs[k]); ok && d > 0 {
				w[j] = d
				sum += d
				continue
			}
			sum = 0
			break
		}
	}
	if sum == 0 {
		for j, k := range owned {
			w[j] = float64(utf8.RuneCountInString(segs[k].Text))
			sum += w[j]
		}
	}
	if sum == 0 {
		for j := range w {
			w[j] = 1
		}
		sum = float64(len(w))
	}
	for j := range w {
		w[j] /= sum
	}
	return w
}

// Total returns the summed duration of every group.
func (l *Layout) Total() float64 { return l.total }

// Len returns the number of groups.
func (l *Layout) Len() int { return len(l.groups) }

// Group returns group i.
func (l *Layout) Group(i int) Group { return l.groups[i] }

// GroupStart returns the start time of group i.
func (l *Layout) GroupStart(i int) float64 {
	if i < 0 || i >= len(l.groupSp) {
		return l.total
	}
	return l.groupSp[i].start
}

// GroupDuration returns the best-known duration of group i.
func (l *Layout) GroupDuration(i int) float64 {
	if i < 0 || i >= len(l.groupSp) {
		return 0
	}
	return l.groupSp[i].dur
}

// SegmentStart returns the start time of segment s in group g.
func (l *Layout) SegmentStart(g, s int) float64 {
	if g < 0 || g >= len(l.segSp) {
		return l.total
	}
	if s < 0 || s >= len(l.segSp[g]) {
		return l.groupSp[g].start
	}
	return l.segSp[g][s].start
}

// Position resolves group g, segment s to a Position.
func (l *Layout) Position(g, s int) Position {
	start := l.SegmentStart(g, s)
	p := Position{Time: start, Group: g, Segment: s, GroupStart: l.GroupStart(g), SegmentStart: start}
	if g >= 0 && g < len(l.segScene) && s >= 0 && s < len(l.segScene[g]) {
		p.Scene = l.segScene[g][s]
	}
	return p
}

// Locate walks the cumulative durations to find the group and segment that
// contain t. Times past the end resolve to the last segment.
func (l *Layout) Locate(t float64) Position {
	if len(l.groups) == 0 {
		return Position{}
	}
	if t < 0 {
		t = 0
	}
	if t > l.total {
		t = l.total
	}

	g := len(l.groups) - 1
	for i, sp := range l.groupSp {
		if sp.contains(t) {
			g = i
			break
		}
	}

	segs := l.segSp[g]
	s := len(segs) - 1
	for k, sp := range segs {
		if sp.contains(t) {
			s = k
			break
		}
	}

	p := l.Position(g, s)
	p.Time = t
	return p
}
