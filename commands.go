package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/sleeptrackr/internal/config"
	"github.com/sadopc/sleeptrackr/internal/export"
	"github.com/sadopc/sleeptrackr/internal/sleep"
	"github.com/sadopc/sleeptrackr/internal/tracker"
	"github.com/sadopc/sleeptrackr/internal/tui"
)

func newRootCmd(envErr error) *cobra.Command {
	opts := &globalOptions{envErr: envErr}

	root := &cobra.Command{
		Use:           "sleeptrackr",
		Short:         "Track bedroom light and noise overnight",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, "")
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default "+config.Path()+")")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides config)")

	root.AddCommand(newTUICmd(opts))
	root.AddCommand(newTrackCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newThemeCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}

func newTUICmd(opts *globalOptions) *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, script)
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "replay lux,db rows from a CSV file instead of simulating sensors")
	return cmd
}

func runTUI(ctx context.Context, opts *globalOptions, script string) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := newSources(a.cfg, script, a.repo)
	if err != nil {
		return err
	}
	stopLight := src.startLight(ctx, a.repo)
	defer stopLight()

	model := tui.NewApp(a.repo, tui.Options{
		Context:  ctx,
		Noise:    src.noise,
		Interval: time.Duration(a.cfg.SampleInterval),
		Settings: a.store,
		Info: [][2]string{
			{"database", a.cfg.DBPath},
			{"log file", a.cfg.LogPath},
			{"sample interval", a.cfg.SampleInterval.String()},
		},
		ExportDir: filepath.Dir(a.cfg.DBPath),
	})
	defer model.Close()

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return err
	}

	// Quitting mid-session keeps the night instead of discarding it.
	if session, ok := a.repo.StopTracking(); ok {
		a.log.Info("Session closed on exit", "start", session.StartTime, "end", session.EndTime)
	}
	return nil
}

func newTrackCmd(opts *globalOptions) *cobra.Command {
	var forText, script string
	cmd := &cobra.Command{
		Use:   "track --for <ISO 8601 duration>",
		Short: "Record a session without the UI and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(forText) == "" {
				return fmt.Errorf("--for is required")
			}
			var length config.Duration
			if err := length.UnmarshalText([]byte(forText)); err != nil {
				return fmt.Errorf("--for: %w", err)
			}
			if length <= 0 {
				return fmt.Errorf("--for must be positive")
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := track(cmd.Context(), a, script, time.Duration(length))
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), session, true)
			return nil
		},
	}
	cmd.Flags().StringVar(&forText, "for", "", "session length, e.g. PT8H")
	cmd.Flags().StringVar(&script, "script", "", "replay lux,db rows from a CSV file instead of simulating sensors")
	return cmd
}

// track runs one session for length, or until ctx is cancelled, and returns
// the closed session.
func track(ctx context.Context, a *app, script string, length time.Duration) (sleep.Session, error) {
	src, err := newSources(a.cfg, script, a.repo)
	if err != nil {
		return sleep.Session{}, err
	}
	stopLight := src.startLight(ctx, a.repo)
	defer stopLight()

	if err := a.repo.StartTracking(); err != nil {
		return sleep.Session{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, length)
	defer cancel()

	sampler := tracker.NewSampler(a.repo, src.noise, time.Duration(a.cfg.SampleInterval))
	done := make(chan error, 1)
	go func() { done <- sampler.Run(runCtx) }()

	<-runCtx.Done()
	session, _ := a.repo.StopTracking()
	<-done
	return session, nil
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			sessions := a.repo.History()
			if len(sessions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sleep history yet")
				return nil
			}
			for _, s := range sessions {
				printSession(cmd.OutOrStdout(), s, full)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print the full report for each session")
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export --format csv|json --out <path>",
		Short: "Export session history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "csv" && format != "json" {
				return fmt.Errorf("--format must be csv or json")
			}
			if strings.TrimSpace(out) == "" {
				return fmt.Errorf("--out is required")
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			sessions := a.repo.History()
			if format == "csv" {
				err = export.ToCSV(sessions, out)
			} else {
				err = export.ToJSON(sessions, out)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d sessions to %s\n", len(sessions), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv|json")
	cmd.Flags().StringVar(&out, "out", "", "output file")
	return cmd
}

func newThemeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light]",
		Short:     "Show or set the UI theme",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"dark", "light"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				if err := a.repo.SaveThemePreference(args[0] == "dark"); err != nil {
					return err
				}
			}
			theme := "light"
			if a.repo.IsDarkMode() {
				theme = "dark"
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration file commands"}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.dbPath != "" {
				cfg.DBPath = opts.dbPath
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "db_path: %s\nlog_path: %s\nlog_level: %s\nsample_interval: %s\nlight_interval: %s\n",
				cfg.DBPath, cfg.LogPath, cfg.LogLevel, cfg.SampleInterval, cfg.LightInterval)
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = config.Path()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}

func printSession(w io.Writer, s sleep.Session, full bool) {
	_, _ = fmt.Fprintf(w, "%s - %s  %s  light=%.1f lux  noise=%.1f dB  peak=%.1f dB  %s\n",
		s.StartTime.Local().Format("Jan 02, 15:04"),
		s.EndTime.Local().Format("Jan 02, 15:04"),
		config.Duration(s.Duration().Truncate(time.Second)),
		s.AverageLight, s.AverageNoise, s.PeakNoise,
		s.Suggestion.Severity,
	)
	if full {
		_, _ = fmt.Fprintln(w, s.Suggestion.Message)
		_, _ = fmt.Fprintln(w)
	}
}
