// Package main provides the CLI entrypoint for onpu.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hong8300/onpu-yomail/internal/catalog"
	"github.com/hong8300/onpu-yomail/internal/config"
	"github.com/hong8300/onpu-yomail/internal/generator"
	"github.com/hong8300/onpu-yomail/internal/history"
	"github.com/hong8300/onpu-yomail/internal/midi"
	"github.com/hong8300/onpu-yomail/internal/model"
	"github.com/hong8300/onpu-yomail/internal/settings"
	"github.com/hong8300/onpu-yomail/internal/stats"
	"github.com/hong8300/onpu-yomail/internal/statsui"
	"github.com/hong8300/onpu-yomail/internal/store"
	"github.com/hong8300/onpu-yomail/internal/tui"
)

const (
	defaultQuestions  = 12
	defaultMinNote    = "C3"
	defaultMaxNote    = "C5"
	defaultDifficulty = "medium"
	defaultClef       = "treble"
	maxQuestions      = 100
)

var (
	practiceQuestions   int
	practiceRange       string
	practiceMinNote     string
	practiceMaxNote     string
	practiceDifficulty  string
	practiceClef        string
	practiceMidi        bool
	practiceAutoAdvance bool

	statsSince string
	statsLast  int

	historyOutDir string
	historyForce  bool

	settingsOutDir string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "onpu",
		Short:         "TUI sight-reading trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.Flags().IntVar(&practiceQuestions, "questions", defaultQuestions, "questions per session")
	rootCmd.Flags().StringVar(&practiceRange, "range", "", "note range preset (beginner, intermediate)")
	rootCmd.Flags().StringVar(&practiceMinNote, "min-note", defaultMinNote, "lowest note in the practice range")
	rootCmd.Flags().StringVar(&practiceMaxNote, "max-note", defaultMaxNote, "highest note in the practice range")
	rootCmd.Flags().StringVar(&practiceDifficulty, "difficulty", defaultDifficulty, "difficulty level (easy, medium, hard)")
	rootCmd.Flags().StringVar(&practiceClef, "clef", defaultClef, "clef to practice (treble, bass, both)")
	rootCmd.Flags().BoolVar(&practiceMidi, "midi", true, "answer with a connected MIDI keyboard")
	rootCmd.Flags().BoolVar(&practiceAutoAdvance, "auto-advance", true, "advance to the next question after answering")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newSettingsCmd())

	return rootCmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "questions", &practiceQuestions, fileCfg.Practice.Questions)
	applyStringConfig(cmd, "range", &practiceRange, fileCfg.Practice.Range)
	applyStringConfig(cmd, "min-note", &practiceMinNote, fileCfg.Practice.MinNote)
	applyStringConfig(cmd, "max-note", &practiceMaxNote, fileCfg.Practice.MaxNote)
	applyStringConfig(cmd, "difficulty", &practiceDifficulty, fileCfg.Practice.Difficulty)
	applyStringConfig(cmd, "clef", &practiceClef, fileCfg.Practice.Clef)

	noteRange, err := resolveNoteRange(practiceRange,
		cmd.Flags().Changed("min-note"), cmd.Flags().Changed("max-note"),
		practiceMinNote, practiceMaxNote)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	settingsSvc := settings.New(st)
	appCfg, err := settingsSvc.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	appCfg.Practice.EnableMidi = resolveBool(cmd, "midi", practiceMidi, fileCfg.Practice.Midi, appCfg.Practice.EnableMidi)
	appCfg.Practice.AutoAdvance = resolveBool(cmd, "auto-advance", practiceAutoAdvance, fileCfg.Practice.AutoAdvance, appCfg.Practice.AutoAdvance)

	sessionSettings := model.SessionSettings{
		TotalQuestions: practiceQuestions,
		NoteRange:      noteRange,
		Difficulty:     model.Difficulty(practiceDifficulty),
		Clef:           model.Clef(practiceClef),
	}
	if err := validateSessionSettings(sessionSettings); err != nil {
		return err
	}

	histSvc := history.New(st)

	midiSvc, cleanup, err := connectMidi(ctx, st, appCfg)
	if err != nil {
		logErrf("MIDI unavailable: %v\n", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	uiModel := tui.NewModel(generator.New(), midiSvc, histSvc, appCfg, sessionSettings)
	defer uiModel.Close()
	program := tea.NewProgram(uiModel, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// connectMidi builds the device service over the persistent store,
// restoring the previous run's connection when a snapshot exists and
// connecting fresh otherwise. A missing backend is reported as an error
// with a nil service; the practice UI then runs pointer-only.
func connectMidi(ctx context.Context, kv store.KV, appCfg model.AppSettings) (*midi.Service, func(), error) {
	if !appCfg.Practice.EnableMidi {
		return nil, nil, nil
	}
	transport, err := midi.NewRtTransport()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init MIDI backend: %w", err)
	}
	if transport == nil {
		return nil, nil, fmt.Errorf("no MIDI backend available")
	}

	logger := zap.NewNop()
	if appCfg.Display.ShowDebugInfo {
		if dev, derr := zap.NewDevelopment(); derr == nil {
			logger = dev
		}
	}

	svc := midi.NewService(transport, kv, midi.WithLogger(logger))
	cleanup := func() {
		if derr := svc.Dispose(context.Background()); derr != nil {
			logErrf("failed to dispose MIDI service: %v\n", derr)
		}
	}
	// Pick up the previous run's connection snapshot first; without one
	// Restore is a no-op and a fresh connect takes over.
	if err := svc.Restore(ctx); err != nil {
		logErrf("failed to restore MIDI state: %v\n", err)
	}
	if !svc.Connected() {
		if err := svc.Connect(ctx); err != nil {
			// Keep the service around so the UI can report the state.
			logErrf("failed to connect MIDI devices: %v\n", err)
		}
	}
	return svc, cleanup, nil
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List MIDI input devices",
		Args:  cobra.NoArgs,
		RunE:  runDevicesCmd,
	}
}

func runDevicesCmd(cmd *cobra.Command, _ []string) error {
	transport, err := midi.NewRtTransport()
	if err != nil {
		return fmt.Errorf("failed to init MIDI backend: %w", err)
	}
	if transport == nil {
		return fmt.Errorf("no MIDI backend available")
	}
	defer func() {
		if cerr := transport.Close(); cerr != nil {
			logErrf("failed to close MIDI backend: %v\n", cerr)
		}
	}()

	if err := transport.Open(); err != nil {
		return fmt.Errorf("failed to open MIDI backend: %w", err)
	}
	ports, err := transport.Inputs()
	if err != nil {
		return fmt.Errorf("failed to list MIDI inputs: %w", err)
	}
	if len(ports) == 0 {
		return printLine(cmd, "No MIDI inputs found.")
	}

	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		rows = append(rows, []string{p.ID, p.Name, p.Manufacturer, p.State})
	}
	for _, line := range stats.FormatTable([]string{"ID", "Name", "Manufacturer", "State"}, rows, nil) {
		if err := printLine(cmd, line); err != nil {
			return err
		}
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse practice statistics",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	return cmd
}

func runStatsCmd(_ *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	uiModel := statsui.NewModel(history.New(st), stats.ReportConfig{Since: sinceTime, Last: statsLast})
	program := tea.NewProgram(uiModel, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the learning history record",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export history to a JSON file",
		Args:  cobra.NoArgs,
		RunE:  runHistoryExportCmd,
	}
	exportCmd.Flags().StringVar(&historyOutDir, "out", ".", "output directory")

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import history from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryImportCmd,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the learning history record",
		Args:  cobra.NoArgs,
		RunE:  runHistoryClearCmd,
	}
	clearCmd.Flags().BoolVar(&historyForce, "force", false, "confirm deletion")

	cmd.AddCommand(exportCmd, importCmd, clearCmd)
	return cmd
}

func runHistoryExportCmd(cmd *cobra.Command, _ []string) error {
	return withStore(func(st *store.Store) error {
		svc := history.New(st)
		h, err := svc.Load(context.Background())
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		filename, data, err := svc.Export(h)
		if err != nil {
			return fmt.Errorf("failed to export history: %w", err)
		}
		path := filepath.Join(historyOutDir, filename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		return printLine(cmd, "Wrote "+path)
	})
}

func runHistoryImportCmd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}
	return withStore(func(st *store.Store) error {
		h, err := history.New(st).Import(context.Background(), data)
		if err != nil {
			return fmt.Errorf("failed to import history: %w", err)
		}
		return printLine(cmd, fmt.Sprintf("Imported %d session(s)", len(h.Sessions)))
	})
}

func runHistoryClearCmd(cmd *cobra.Command, _ []string) error {
	if !historyForce {
		return fmt.Errorf("refusing to clear history without --force")
	}
	return withStore(func(st *store.Store) error {
		if err := history.New(st).Clear(context.Background()); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		return printLine(cmd, "History cleared")
	})
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the persisted settings record",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export settings to a JSON file",
		Args:  cobra.NoArgs,
		RunE:  runSettingsExportCmd,
	}
	exportCmd.Flags().StringVar(&settingsOutDir, "out", ".", "output directory")

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import settings from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSettingsImportCmd,
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore default settings",
		Args:  cobra.NoArgs,
		RunE:  runSettingsResetCmd,
	}

	cmd.AddCommand(exportCmd, importCmd, resetCmd)
	return cmd
}

func runSettingsExportCmd(cmd *cobra.Command, _ []string) error {
	return withStore(func(st *store.Store) error {
		svc := settings.New(st)
		current, err := svc.Load(context.Background())
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		filename, data, err := svc.Export(current)
		if err != nil {
			return fmt.Errorf("failed to export settings: %w", err)
		}
		path := filepath.Join(settingsOutDir, filename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		return printLine(cmd, "Wrote "+path)
	})
}

func runSettingsImportCmd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}
	return withStore(func(st *store.Store) error {
		if _, err := settings.New(st).Import(context.Background(), data); err != nil {
			return fmt.Errorf("failed to import settings: %w", err)
		}
		return printLine(cmd, "Settings imported")
	})
}

func runSettingsResetCmd(cmd *cobra.Command, _ []string) error {
	return withStore(func(st *store.Store) error {
		if err := settings.New(st).Reset(context.Background()); err != nil {
			return fmt.Errorf("failed to reset settings: %w", err)
		}
		return printLine(cmd, "Settings reset to defaults")
	})
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

func withStore(fn func(*store.Store) error) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	return fn(st)
}

func validateSessionSettings(s model.SessionSettings) error {
	if s.TotalQuestions <= 0 || s.TotalQuestions > maxQuestions {
		return fmt.Errorf("--questions must be between 1 and %d", maxQuestions)
	}
	switch s.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return fmt.Errorf("--difficulty must be one of easy, medium, hard")
	}
	switch s.Clef {
	case model.ClefTreble, model.ClefBass, model.ClefBoth:
	default:
		return fmt.Errorf("--clef must be one of treble, bass, both")
	}
	if _, _, err := catalog.ParseNote(s.NoteRange.Min); err != nil {
		return fmt.Errorf("invalid --min-note: %w", err)
	}
	if _, _, err := catalog.ParseNote(s.NoteRange.Max); err != nil {
		return fmt.Errorf("invalid --max-note: %w", err)
	}
	return nil
}

// resolveNoteRange expands the --range preset into concrete bounds. An
// explicitly set --min-note or --max-note keeps its value for that
// bound, so a preset can still be narrowed on one side.
func resolveNoteRange(preset string, minSet, maxSet bool, min, max string) (model.NoteRange, error) {
	r := model.NoteRange{Min: min, Max: max}
	if preset == "" {
		return r, nil
	}
	p, ok := settings.RangePreset(preset)
	if !ok {
		return model.NoteRange{}, fmt.Errorf("--range must be one of %s", strings.Join(settings.RangePresetNames(), ", "))
	}
	if !minSet {
		r.Min = p.Min
	}
	if !maxSet {
		r.Max = p.Max
	}
	return r, nil
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

// resolveBool layers flag > config file > persisted settings record.
func resolveBool(cmd *cobra.Command, name string, flagVal bool, fileVal *bool, recordVal bool) bool {
	if cmd.Flags().Changed(name) {
		return flagVal
	}
	if fileVal != nil {
		return *fileVal
	}
	return recordVal
}

func printLine(cmd *cobra.Command, line string) error {
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# onpu configuration
# Uncomment a value to enable it. CLI flags override config values.

[practice]
# questions = %d          # Questions per session (1-%d)
# range = "beginner"      # Note range preset (beginner, intermediate)
# min-note = %q          # Lowest note in the practice range
# max-note = %q          # Highest note in the practice range
# difficulty = %q    # easy, medium, hard
# clef = %q          # treble, bass, both
# midi = true             # Answer with a connected MIDI keyboard
# auto-advance = true     # Advance to the next question after answering
`,
		defaultQuestions,
		maxQuestions,
		defaultMinNote,
		defaultMaxNote,
		defaultDifficulty,
		defaultClef,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
