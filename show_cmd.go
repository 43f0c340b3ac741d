package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/scenecast/internal/timeline"
)

const maxShowWidth = 120

var showCmd = &cobra.Command{
	Use:     "show PROJECT",
	Short:   "Print a project as a rendered outline",
	Long:    paragraph(fmt.Sprintf("\n%s the scenes of a project with their visuals, transitions and best-known durations.", keyword("Outline"))),
	Example: paragraph("scenecast show talk.yml\nscenecast show talk.yml | less -r"),
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("unable to get absolute path: %w", err)
		}
		tl, err := timeline.Load(path)
		if err != nil {
			return err
		}

		isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
		width := maxShowWidth
		if isTerminal {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
				width = min(w, maxShowWidth)
			}
		}

		style := glamour.WithStandardStyle(styles.NoTTYStyle)
		if isTerminal {
			style = glamour.WithAutoStyle()
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithColorProfile(lipgloss.ColorProfile()),
			style,
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return fmt.Errorf("unable to create renderer: %w", err)
		}

		out, err := r.Render(timelineMarkdown(tl))
		if err != nil {
			return fmt.Errorf("unable to render markdown: %w", err)
		}
		_, err = fmt.Fprint(os.Stdout, out)
		return err
	},
}

// timelineMarkdown describes tl as markdown, one section per group.
func timelineMarkdown(tl *timeline.Timeline) string {
	var b strings.Builder

	title := tl.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%s, voice `%s`, speed %gx, about %s\n\n",
		pluralize(len(tl.Scenes), "scene"), tl.Voice, tl.Speed(), clock(tl.Total()))
	if tl.Music != "" {
		fmt.Fprintf(&b, "Music: `%s`\n\n", tl.Music)
	}

	for _, g := range tl.Groups() {
		first := tl.Scenes[g.First()]
		fmt.Fprintf(&b, "## %d. %s\n\n", g.Index+1, g.Key)

		image := first.Visual.Image
		if image == "" {
			image = "no image"
		}
		kind := first.Transition
		if kind == "" {
			kind = timeline.TransitionNone
		}
		fmt.Fprintf(&b, "*%s*, %s", image, kind)
		if first.TransitionDuration > 0 {
			fmt.Fprintf(&b, " (%gs)", first.TransitionDuration)
		}
		b.WriteString("\n\n")

		for _, i := range g.Scenes {
			s := tl.Scenes[i]
			measured := ""
			if s.MeasuredDuration != nil {
				measured = ", measured"
			}
			fmt.Fprintf(&b, "- **%d** `%s` %s%s", i+1, s.ID, clock(s.Duration()), measured)
			if voice := tl.VoiceFor(i); voice != tl.Voice {
				fmt.Fprintf(&b, ", voice `%s`", voice)
			}
			b.WriteString("\n")
			for _, seg := range tl.SceneSegments(i) {
				if !seg.Empty() {
					fmt.Fprintf(&b, "  - %s\n", oneLine(seg.Text))
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
