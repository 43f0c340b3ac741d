package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/tts"
	"github.com/dgnsrekt/scenecast/internal/tts/engines"
)

var forceSynth bool

var synthCmd = &cobra.Command{
	Use:     "synth PROJECT",
	Short:   "Synthesize narration for every scene without playing it",
	Long:    paragraph(fmt.Sprintf("\n%s the audio for every scene ahead of time, so playback starts without waiting on the speech engine.", keyword("Synthesize"))),
	Example: paragraph("scenecast synth talk.yml\nscenecast synth --force --engine gtts talk.yml"),
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("unable to get absolute path: %w", err)
		}
		tl, err := timeline.Open(path)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		began := time.Now()
		report := synthesize(ctx, a.synth, tl, forceSynth)
		if err := ctx.Err(); err != nil {
			return err
		}
		printReport(a, tl, report, time.Since(began))

		if report.AllFailed() {
			return errPlaybackFailed
		}
		return nil
	},
}

// synthesize reconciles every scene. With force, cached clips are thrown
// away and each scene is voiced again.
func synthesize(ctx context.Context, r *tts.Reconciler, tl *timeline.Timeline, force bool) tts.Report {
	if !force {
		return r.Reconcile(ctx, tl, tl.Indices())
	}
	var report tts.Report
	for _, i := range tl.Indices() {
		if ctx.Err() != nil {
			break
		}
		if err := r.Resynthesize(ctx, tl, i); err != nil {
			report.Failures = append(report.Failures, tts.Failure{Scene: i, SceneID: tl.Scenes[i].ID, Err: err})
			continue
		}
		report.Synthesized = append(report.Synthesized, i)
		report.Ready = append(report.Ready, i)
	}
	return report
}

func printReport(a *app, tl *timeline.Timeline, report tts.Report, took time.Duration) {
	fmt.Println(paragraph(fmt.Sprintf("%s of %s ready, %s synthesized in %s",
		keyword(fmt.Sprint(len(report.Ready))),
		pluralize(len(tl.Scenes), "scene"),
		fmt.Sprint(len(report.Synthesized)),
		took.Round(time.Millisecond),
	)))

	guided := false
	for _, f := range report.Failures {
		fmt.Println(paragraph(failure(fmt.Sprintf("✗ scene %d (%s): %v", f.Scene+1, f.SceneID, f.Err))))
		if guided {
			continue
		}
		if guide := engines.Guidance(a.cfg.TTS.Engine, f.Err); guide != "" {
			fmt.Println(paragraph(guide))
			guided = true
		}
	}

	stats := a.cache.Stats()
	fmt.Println(paragraph(subtle(fmt.Sprintf("cache: %s in memory (%s), %s on disk (%s)",
		pluralize(stats.Entries, "clip"), humanize.Bytes(uint64(stats.Bytes)), //nolint:gosec
		pluralize(stats.DiskEntries, "clip"), humanize.Bytes(uint64(stats.DiskBytes)), //nolint:gosec
	))))
	log.Debug("synthesis finished", "ready", len(report.Ready), "synthesized", len(report.Synthesized), "failed", len(report.Failures))
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
