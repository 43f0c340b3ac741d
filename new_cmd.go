package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const sampleProject = `title: "Hello, scenecast"
voice: "en_US-lessac-medium"
# playback_speed: 1.0
# music: "music.mp3"

scenes:
  - id: "welcome"
    subtitle: "Welcome to scenecast. Each scene pairs a picture with narration."
    visual:
      image: "images/welcome.png"
    transition: fade
    transition_duration: 0.6

  # Scenes sharing a group keep one visual on screen. The first scene's
  # subtitle is split on || and each part belongs to the next member.
  - id: "how-1"
    group: "how"
    subtitle: "Write your scenes in YAML. || Then press space to play them."
    visual:
      image: "images/how.png"
      width: 0.8
      height: 0.8
    transition: slide-left
  - id: "how-2"
    group: "how"

  - id: "bye"
    subtitle: "Thanks for watching!"
    visual:
      image: "images/bye.png"
      rotation: 5
    transition: zoom-in
`

var forceNew bool

var newCmd = &cobra.Command{
	Use:     "new PROJECT",
	Short:   "Write a sample project to start from",
	Long:    paragraph(fmt.Sprintf("\n%s a small project showing scenes, groups and transitions.", keyword("Create"))),
	Example: paragraph("scenecast new talk.yml\nscenecast talk.yml"),
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := args[0]
		if ext := filepath.Ext(path); ext != ".yml" && ext != ".yaml" {
			return fmt.Errorf("'%s' is not a supported project type: use '.yml' or '.yaml'", ext)
		}
		if err := writeSampleProject(path, forceNew); err != nil {
			return err
		}
		fmt.Println("Wrote sample project to:", path)
		return nil
	},
}

func writeSampleProject(path string, force bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable create directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("unable to create project: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(sampleProject); err != nil {
		return fmt.Errorf("unable to write project: %w", err)
	}
	return nil
}

func init() {
	newCmd.Flags().BoolVarP(&forceNew, "force", "f", false, "overwrite an existing file")
	synthCmd.Flags().BoolVarP(&forceSynth, "force", "f", false, "synthesize again even when audio is cached")
}
