// Package main provides the CLI entrypoint for reacto.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/verte-zerg/reacto/internal/clock"
	"github.com/verte-zerg/reacto/internal/config"
	"github.com/verte-zerg/reacto/internal/historyui"
	"github.com/verte-zerg/reacto/internal/input"
	"github.com/verte-zerg/reacto/internal/logging"
	"github.com/verte-zerg/reacto/internal/model"
	"github.com/verte-zerg/reacto/internal/replay"
	"github.com/verte-zerg/reacto/internal/stats"
	"github.com/verte-zerg/reacto/internal/store"
	"github.com/verte-zerg/reacto/internal/tui"
)

const (
	defaultGateKey   = "space"
	defaultReleaseMs = 600
	minReleaseMs     = 50
	maxReleaseMs     = 2000
	plainBarWidth    = 40
)

var (
	testGateKey   string
	testReleaseMs int
	testSeed      int64
	testNoSave    bool

	historyPlain bool
	historyClear bool

	replayCheck   bool
	replayVerbose bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reacto",
		Short:         "TUI red/yellow/green reaction test",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runTestCmd,
	}

	rootCmd.Flags().StringVar(&testGateKey, "gate-key", defaultGateKey, "key held to arm each trial (\"space\" or one character)")
	rootCmd.Flags().IntVar(&testReleaseMs, "release-ms", defaultReleaseMs, "ms without key repeat before the gate counts as released")
	rootCmd.Flags().Int64Var(&testSeed, "seed", 0, "stimulus seed (0 = time-seeded)")
	rootCmd.Flags().BoolVar(&testNoSave, "no-save", false, "do not store the session in history")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newReplayCmd())

	return rootCmd
}

func runTestCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "gate-key", &testGateKey, fileCfg.Test.GateKey)
	applyIntConfig(cmd, "release-ms", &testReleaseMs, fileCfg.Test.ReleaseMs)
	applyInt64Config(cmd, "seed", &testSeed, fileCfg.Test.Seed)

	save := !testNoSave
	if !cmd.Flags().Changed("no-save") && fileCfg.Test.Save != nil {
		save = *fileCfg.Test.Save
	}

	cfg := model.Config{
		GateKey:   testGateKey,
		ReleaseMs: testReleaseMs,
		Seed:      testSeed,
		Save:      save,
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	logger := newLogger(fileCfg.Log)
	defer syncLogger(logger)

	var history tui.History
	st, err := store.Open(config.DefaultDBPath(), store.WithLogger(logger))
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
	} else {
		history = st
		defer closeStore(st)
	}

	loop := clock.NewLoop()
	defer loop.Close()

	m, err := tui.NewModel(cfg, loop, history, logger)
	if err != nil {
		return err
	}
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent sessions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().BoolVar(&historyPlain, "plain", false, "print to stdout instead of opening the browser")
	cmd.Flags().BoolVar(&historyClear, "clear", false, "delete stored sessions")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(fileCfg.Log)
	defer syncLogger(logger)

	st, err := store.Open(config.DefaultDBPath(), store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)

	if historyClear {
		if err := st.Clear(context.Background()); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		logErrln("History cleared.")
		return nil
	}

	fd := int(os.Stdout.Fd())
	if historyPlain || !term.IsTerminal(fd) {
		return printHistory(cmd, st, fd)
	}

	program := tea.NewProgram(historyui.NewModel(st), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run history TUI: %w", err)
	}
	return nil
}

func printHistory(cmd *cobra.Command, st *store.Store, fd int) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()
	summaries := st.History(ctx)
	if err := stats.RenderHistory(out, summaries); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(summaries) == 0 {
		return nil
	}
	latest := summaries[0]
	snapshot := latest.Stats
	trials, err := st.Trials(ctx, latest.ID)
	if err != nil {
		logErrf("failed to load trials: %v\n", err)
	} else if len(trials) > 0 {
		snapshot = stats.Compute(trials)
	}
	if err := stats.RenderCategoryTable(out, snapshot); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderHistogram(out, snapshot.Histogram, barWidth(fd)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func barWidth(fd int) int {
	if !term.IsTerminal(fd) {
		return plainBarWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return plainBarWidth
	}
	// Leave room for the bin label and count.
	w := width - 20
	if w < 10 {
		return 10
	}
	if w > plainBarWidth {
		return plainBarWidth
	}
	return w
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Run a scripted key log through the engine",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
	cmd.Flags().BoolVar(&replayCheck, "check", false, "compare against the script's expectations")
	cmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "log engine events to stderr")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	script, err := replay.LoadScript(args[0])
	if err != nil {
		return err
	}
	var logger *zap.Logger
	if replayVerbose {
		logger = logging.NewWriter(zapcore.DebugLevel, cmd.ErrOrStderr())
		defer func() { _ = logger.Sync() }()
	}
	result, err := replay.Run(script, logger)
	if err != nil {
		return fmt.Errorf("failed to replay: %w", err)
	}
	out := cmd.OutOrStdout()
	if script.Description != "" {
		if _, err := fmt.Fprintf(out, "%s\n\n", script.Description); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if err := stats.RenderTrials(out, result.Session.Trials); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderSummary(out, result.Session.Stats); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderCategoryTable(out, result.Session.Stats); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !replayCheck {
		return nil
	}
	mismatches := replay.Check(script, result)
	if len(mismatches) == 0 {
		logErrln("All expectations met.")
		return nil
	}
	for _, m := range mismatches {
		logErrln(m)
	}
	return fmt.Errorf("%d expectation(s) not met", len(mismatches))
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newLogger(cfg config.LogConfig) *zap.Logger {
	opts := logging.Options{
		Path:       config.DefaultLogPath(),
		Level:      logging.DefaultLevel,
		MaxSizeMB:  logging.DefaultMaxSizeMB,
		MaxBackups: logging.DefaultMaxBackups,
	}
	if cfg.Path != nil {
		opts.Path = *cfg.Path
	}
	if cfg.Level != nil {
		opts.Level = *cfg.Level
	}
	if cfg.MaxSizeMB != nil {
		opts.MaxSizeMB = *cfg.MaxSizeMB
	}
	if cfg.MaxBackups != nil {
		opts.MaxBackups = *cfg.MaxBackups
	}
	logger, err := logging.New(opts)
	if err != nil {
		logErrf("failed to open log file, logging disabled: %v\n", err)
		return zap.NewNop()
	}
	return logger
}

func syncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil {
		// Best-effort flush.
		_ = err
	}
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		logErrf("failed to close db: %v\n", err)
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# reacto configuration
# Uncomment a value to enable it. CLI flags override config values.

[test]
# gate-key = %q        # Key held to arm each trial ("space" or one character)
# release-ms = %d         # ms without key repeat before the gate counts as released
# seed = 0                # Stimulus seed (0 = time-seeded)
# save = true             # Store sessions in history

[log]
# level = %q           # debug, info, warn, error
# path = ""               # Log file (default under $XDG_STATE_HOME/reacto)
# max-size-mb = %d         # Rotate after this many megabytes
# max-backups = %d         # Rotated files to keep
`,
		defaultGateKey,
		defaultReleaseMs,
		logging.DefaultLevel,
		logging.DefaultMaxSizeMB,
		logging.DefaultMaxBackups,
	)
}

func validateConfig(cfg model.Config) error {
	gate, err := input.ParseGateKey(cfg.GateKey)
	if err != nil {
		return fmt.Errorf("--gate-key: %w", err)
	}
	if _, ok := model.ParseCategory(gate); ok {
		return fmt.Errorf("--gate-key must not be a response key (r, y, g)")
	}
	if cfg.ReleaseMs < minReleaseMs || cfg.ReleaseMs > maxReleaseMs {
		return fmt.Errorf("--release-ms must be between %d and %d", minReleaseMs, maxReleaseMs)
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
