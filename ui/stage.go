package ui

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/scenecast/internal/render"
)

// alphaRamp maps opacity to a foreground shade, transparent to opaque.
var alphaRamp = []lipgloss.TerminalColor{
	lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"},
	lipgloss.AdaptiveColor{Light: "#C2C2C2", Dark: "#3C3C3C"},
	lipgloss.AdaptiveColor{Light: "#9A9A9A", Dark: "#5C5C5C"},
	lipgloss.AdaptiveColor{Light: "#6E6E6E", Dark: "#8A8A8A"},
	lipgloss.AdaptiveColor{Light: "#444444", Dark: "#B8B8B8"},
	fuchsia,
}

func shade(alpha float64) lipgloss.TerminalColor {
	alpha = math.Max(0, math.Min(1, alpha))
	return alphaRamp[int(math.Round(alpha*float64(len(alphaRamp)-1)))]
}

// layer is one visible node on the stage.
type layer struct {
	ref  render.Ref
	node render.Node
}

// stageLayers returns the visible nodes, most opaque last. current wins
// ties so the incoming group is drawn on top during a transition.
func stageLayers(s *render.MemorySurface, current render.Ref) []layer {
	var out []layer
	for _, ref := range s.Visible() {
		if n, ok := s.Node(ref); ok {
			out = append(out, layer{ref: ref, node: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].node.Frame.Alpha, out[j].node.Frame.Alpha
		if a != b {
			return a < b
		}
		return out[j].ref == current
	})
	return out
}

// stageView draws the top layer as a framed card with its subtitle below.
// Terminal cells cannot blend, so lower layers are listed, not drawn.
func stageView(layers []layer, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if len(layers) == 0 {
		empty := subtleStyle.Render("nothing on stage")
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, empty)
	}

	top := layers[len(layers)-1]
	card := cardView(top.node, width, height-3)
	sub := subtitleView(top.node, width)

	var under string
	if len(layers) > 1 {
		names := make([]string, 0, len(layers)-1)
		for _, l := range layers[:len(layers)-1] {
			names = append(names, string(l.ref))
		}
		under = subtleStyle.Render("under: " + strings.Join(names, ", "))
	}

	body := lipgloss.JoinVertical(lipgloss.Center, card, "", sub, under)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Top, body)
}

func cardView(n render.Node, width, height int) string {
	f := n.Frame
	size := math.Max(0, math.Min(1.2, f.Scale*f.Clip))

	w := int(float64(width-4) * 0.6 * size)
	h := int(float64(height-2) * 0.6 * size)
	w = max(w, 8)
	h = max(h, 1)

	label := filepath.Base(n.Visual.Image)
	if n.Visual.Image == "" {
		label = "(no image)"
	}
	if f.Rotation != 0 {
		label += fmt.Sprintf(" ↻ %.0f°", f.Rotation)
	}
	label = runewidth.Truncate(label, w, ellipsis)

	fill := " "
	if f.Blur > 0.3 {
		fill = "░"
	}
	lines := make([]string, h)
	for i := range lines {
		lines[i] = strings.Repeat(fill, w)
	}
	mid := h / 2
	pad := max(0, (w-runewidth.StringWidth(label))/2)
	lines[mid] = strings.Repeat(fill, pad) + label + strings.Repeat(fill, max(0, w-pad-runewidth.StringWidth(label)))

	color := shade(f.Alpha)
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Foreground(color).
		Render(strings.Join(lines, "\n"))

	// Offsets are fractions of the viewport.
	dx := int(math.Round(f.OffsetX * float64(width) / 2))
	dy := int(math.Round(f.OffsetY * float64(height) / 2))
	return lipgloss.NewStyle().
		MarginLeft(max(0, dx)).
		MarginRight(max(0, -dx)).
		MarginTop(max(0, dy)).
		MarginBottom(max(0, -dy)).
		Render(card)
}

func subtitleView(n render.Node, width int) string {
	if !n.Attached {
		return detachedStyle.Render("subtitle detached")
	}
	if n.Text == "" {
		return ""
	}
	wrapped := wordwrap.String(n.Text, max(10, width-8))
	return subtitleStyle.Width(max(10, width-4)).Render(wrapped)
}
