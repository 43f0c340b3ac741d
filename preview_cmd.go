package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/scenecast/internal/playback"
	"github.com/dgnsrekt/scenecast/internal/timeline"
)

var errNoScene = errors.New("no matching scene")

var previewCmd = &cobra.Command{
	Use:   "preview PROJECT [SCENE]",
	Short: "Play a single scene",
	Long: paragraph(fmt.Sprintf("\n%s one scene with its transition and narration. SCENE is a 1-based index or a few words of its subtitle; the first scene plays when it is omitted.",
		keyword("Audition"))),
	Example: paragraph("scenecast preview talk.yml 3\nscenecast preview --mute talk.yml \"closing remarks\""),
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("unable to get absolute path: %w", err)
		}
		tl, err := timeline.Open(path)
		if err != nil {
			return err
		}

		var query string
		if len(args) > 1 {
			query = args[1]
		}
		scene, err := selectScene(tl, query)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, appOptions{audio: true, mute: mute, logSurface: true})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck
		if err := a.applySpeed(tl, speed); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println(paragraph(fmt.Sprintf("%s %s",
			keyword(fmt.Sprintf("▶ scene %d/%d", scene+1, len(tl.Scenes))),
			subtle(tl.Scenes[scene].ID),
		)))
		for _, seg := range tl.SceneSegments(scene) {
			if !seg.Empty() {
				fmt.Println(paragraph(oneLine(seg.Text)))
			}
		}

		elapsed, err := playback.NewPreview(a.orch).PlayScene(ctx, tl, scene)
		if err != nil {
			return withGuidance(a.cfg.TTS.Engine, err)
		}
		fmt.Println(paragraph(subtle(fmt.Sprintf("played in %.1fs", elapsed))))
		return nil
	},
}

// selectScene resolves a scene argument. Numbers are 1-based indices;
// anything else is matched fuzzily against subtitles and scene ids.
func selectScene(tl *timeline.Timeline, query string) (int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(query); err == nil {
		if n < 1 || n > len(tl.Scenes) {
			return 0, fmt.Errorf("%w: scene %d is out of range 1-%d", errNoScene, n, len(tl.Scenes))
		}
		return n - 1, nil
	}
	if i := tl.IndexOf(query); i >= 0 {
		return i, nil
	}

	subtitles := make([]string, len(tl.Scenes))
	for i := range tl.Scenes {
		var parts []string
		for _, seg := range tl.SceneSegments(i) {
			parts = append(parts, seg.Text)
		}
		subtitles[i] = oneLine(strings.Join(parts, " "))
	}
	matches := fuzzy.Find(query, subtitles)
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: %q", errNoScene, query)
	}
	return matches[0].Index, nil
}
