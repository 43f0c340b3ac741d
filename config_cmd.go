package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# Speech synthesis
tts:
  # engine: piper (offline), gtts (Google, online) or mock (silent, for demos)
  engine: "piper"
  piper:
    binary: "piper"
    model: "en_US-lessac-medium"
    # model_dir: "~/.local/share/piper"
    length_scale: 1.0
    timeout: "30s"
  gtts:
    cli: "gtts-cli"
    ffmpeg: "ffmpeg"
    # language code, or "auto" to detect it from each subtitle
    language: "en"
    slow: false
    requests_per_minute: 50
    timeout: "30s"
  mock:
    sample_rate: 22050
    words_per_minute: 150
    delay: "100ms"

# Reconciling missing audio before playback
synthesis:
  concurrency: 4
  retries: 2
  retry_delay: "500ms"

# Synthesized audio cache
cache:
  # dir: "~/.cache/scenecast"
  max_entries: 512
  # megabytes
  max_size: 256
  spool_threshold: 4
  # keep clips on disk between runs
  disk: true
  disk_size: 1024
  compression: 3
  ttl: "168h"
  cleanup_interval: "1h"

# Output device
audio:
  sample_rate: 44100
  channels: 2
  buffer: "50ms"

playback:
  # 0.5 to 2.0; a project's playback_speed wins
  speed: 1.0
  volume: 1.0
  music_volume: 0.25
  tick: "100ms"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the scenecast config file",
	Long:    paragraph(fmt.Sprintf("\n%s the scenecast config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("scenecast config\nscenecast config --config path/to/scenecast.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Scenecast", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
