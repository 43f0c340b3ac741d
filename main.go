// Package main provides the entry point for the scenecast CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/scenecast/internal/audio"
	"github.com/dgnsrekt/scenecast/internal/config"
	"github.com/dgnsrekt/scenecast/internal/playback"
	"github.com/dgnsrekt/scenecast/internal/timeline"
	"github.com/dgnsrekt/scenecast/internal/watch"
	"github.com/dgnsrekt/scenecast/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	engine     string
	watchMode  bool
	headless   bool
	mute       bool
	autoplay   bool
	verbose    bool
	speed      float64
	start      float64
	mouse      bool

	// cfg is the validated configuration, loaded before every command.
	cfg config.Config

	// SCENECAST_TTS_ENGINE sets tts.engine.
	envKeyReplacer = strings.NewReplacer(".", "_")

	rootCmd = &cobra.Command{
		Use:   "scenecast [PROJECT]",
		Short: "Narrated slideshows in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nPlay a timeline of scenes with %s, synchronized to its subtitles.", keyword("synthesized narration")),
		),
		Example: paragraph("scenecast talk.yml\nscenecast --engine gtts --watch talk.yml\nscenecast --headless --mute talk.yml"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ExactArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"yml", "yaml"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOptions(cmd, args)
		},
		RunE: execute,
	}
)

// loadProjectEnv loads a .env file next to the project, if there is one.
// Variables already set in the environment win.
func loadProjectEnv(project string) error {
	envFile := filepath.Join(filepath.Dir(project), ".env")
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to load %s: %w", envFile, err)
	}
	log.Debug("loaded environment file", "path", envFile)
	return nil
}

func validateOptions(cmd *cobra.Command, args []string) error {
	// The config command must work even when the file is broken.
	if cmd == configCmd || cmd == manCmd || cmd == newCmd {
		return nil
	}

	if len(args) > 0 {
		if err := loadProjectEnv(args[0]); err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var err error
	cfg, err = config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	if speed != 0 {
		if err := audio.ValidateSpeed(speed); err != nil {
			return fmt.Errorf("--speed: %w", err)
		}
	}
	if start < 0 {
		return fmt.Errorf("--start must not be negative, got %.2f", start)
	}
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("unable to get absolute path: %w", err)
	}
	tl, err := timeline.Open(path)
	if err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	useTUI := isTerminal && !headless
	if !useTUI && verbose {
		mirrorLog()
	}

	a, err := newApp(cfg, appOptions{audio: true, mute: mute, logSurface: !useTUI})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if err := a.applySpeed(tl, speed); err != nil {
		return err
	}

	if useTUI {
		return runTUI(a, tl, path)
	}
	return runHeadless(cmd.Context(), a, tl, path)
}

func runTUI(a *app, tl *timeline.Timeline, path string) error {
	// Read environment to get TUI knobs
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.Path = path
	uiCfg.Watch = watchMode
	uiCfg.Engine = a.cfg.TTS.Engine
	uiCfg.Autoplay = uiCfg.Autoplay || autoplay
	uiCfg.EnableMouse = mouse

	events := ui.NewEvents()
	ctrl, err := a.controller(tl, path, events.Callbacks())
	if err != nil {
		return err
	}
	defer ctrl.Close() //nolint:errcheck

	if start > 0 {
		if err := ctrl.Seek(start); err != nil {
			return err
		}
	}

	player := ui.Player{
		Controller: ctrl,
		Surface:    a.memory,
		Events:     events,
		Cache:      a.cache,
	}
	if watchMode {
		w, err := watch.New(path)
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck
		player.Watcher = w
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(uiCfg, player).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func runHeadless(parent context.Context, a *app, tl *timeline.Timeline, path string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newLineReporter(os.Stdout, tl, a.cfg.TTS.Engine)
	ctrl, err := a.controller(tl, path, out.callbacks())
	if err != nil {
		return err
	}
	defer ctrl.Close() //nolint:errcheck

	if start > 0 {
		if err := ctrl.Seek(start); err != nil {
			return err
		}
	}
	if err := ctrl.Play(); err != nil {
		return err
	}

	if !watchMode {
		if err := ctrl.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return out.err()
	}

	w, err := watch.New(path)
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck
	return watchHeadless(ctx, ctrl, w, out)
}

// watchHeadless restarts playback from the top every time the project
// changes, until ctx is canceled.
func watchHeadless(ctx context.Context, ctrl *playback.Controller, w *watch.Watcher, out *lineReporter) error {
	for {
		if err := w.Next(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		tl, err := timeline.Open(w.Path())
		if err != nil {
			log.Error("unable to reload project", "path", w.Path(), "error", err)
			continue
		}
		if tl.SameContent(ctrl.Timeline()) {
			continue
		}
		log.Info("reloading project", "path", w.Path())
		out.reset(tl)
		if err := ctrl.Load(tl); err != nil {
			return err
		}
		if err := ctrl.Seek(0); err != nil {
			return err
		}
		if err := ctrl.Play(); err != nil {
			return err
		}
	}
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&engine, "engine", "e", "", "speech engine: piper, gtts or mock")
	rootCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "reload the project when it changes")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "play without the TUI, printing progress lines")
	rootCmd.PersistentFlags().BoolVar(&mute, "mute", false, "play in real time without an audio device")
	rootCmd.Flags().BoolVarP(&autoplay, "play", "p", false, "start playing immediately (TUI-mode only)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "mirror the log to stderr (headless only)")
	rootCmd.PersistentFlags().Float64Var(&speed, "speed", 0, "playback speed, 0.5 to 2.0")
	rootCmd.Flags().Float64Var(&start, "start", 0, "start playing at this many seconds")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse support (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("tts.engine", rootCmd.PersistentFlags().Lookup("engine"))
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, synthCmd, previewCmd, showCmd, cacheCmd, newCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("SCENECAST_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.AppName)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], config.AppName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
