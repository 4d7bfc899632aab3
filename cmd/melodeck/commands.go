package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/waabox/melodeck/internal/domain"
	"github.com/waabox/melodeck/internal/player"
	"github.com/waabox/melodeck/internal/watch"
)

var (
	compileWatch  bool
	historyLimit  int
	historyOutput string
)

func init() {
	// compile command
	compileCmd := &cobra.Command{
		Use:   "compile [FILE|-]",
		Short: "Compile a song source without the UI",
		Long: `Compile a song source and print the compiler output.

Exits 0 on success, 1 when the compiler reports a failure and 2 when the
compiler executable cannot be found. Pass - to read the source from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompile,
	}
	compileCmd.Flags().BoolVar(&compileWatch, "watch", false, "recompile whenever the file changes")
	rootCmd.AddCommand(compileCmd)

	// play command
	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Open the compiled artifact with the system player",
		Args:  cobra.NoArgs,
		RunE:  runPlay,
	}
	rootCmd.AddCommand(playCmd)

	// history command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded compiles",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum number of compiles to show (default from config)")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "table", "output format: table or yaml")
	rootCmd.AddCommand(historyCmd)

	// version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "melodeck", version)
		},
	}
	rootCmd.AddCommand(versionCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.cfg.SourceFileOrDefault()
	if len(args) == 1 {
		path = args[0]
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if path == "-" {
		if compileWatch {
			return errors.New("--watch needs a file, not stdin")
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		return exitFor(compileAndPrint(ctx, a.session, string(data), out))
	}

	if !compileWatch {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading source: %w", err)
		}
		return exitFor(compileAndPrint(ctx, a.session, string(data), out))
	}

	rc := newRecompiler(func(ctx context.Context) {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "reading source: %v\n", err)
			return
		}
		compileAndPrint(ctx, a.session, string(data), out)
	})
	fw, err := watch.NewFileWatcher(path, func(string) { rc.Request() })
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	fw.Start(ctx)
	defer fw.Stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", fw.Path())
	rc.Request()
	rc.Loop(ctx)
	return nil
}

// compileAndPrint compiles source and writes the output, notes and final status.
func compileAndPrint(ctx context.Context, session domain.CompileSession, source string, w io.Writer) domain.CompileStatus {
	res := session.Compile(ctx, source)
	fmt.Fprint(w, res.Output)
	for _, note := range res.Notes {
		fmt.Fprintln(w, note)
	}
	fmt.Fprintf(w, "%s (%s)\n", statusText(res.Status, session.CompilerPath()), res.Duration().Round(time.Millisecond))
	return res.Status
}

func statusText(status domain.CompileStatus, compilerPath string) string {
	if status.Kind == domain.StatusPreconditionMissing {
		return fmt.Sprintf("%s not found", compilerPath)
	}
	return status.Label()
}

// exitCode maps a terminal status to the process exit code.
func exitCode(status domain.CompileStatus) int {
	switch status.Kind {
	case domain.StatusSucceeded:
		return 0
	case domain.StatusPreconditionMissing:
		return 2
	default:
		return 1
	}
}

func exitFor(status domain.CompileStatus) error {
	if code := exitCode(status); code != 0 {
		return exitError(code)
	}
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.session.ArtifactPath()
	if err := player.NewOpener().Open(path); err != nil {
		if errors.Is(err, player.ErrNoArtifact) {
			return fmt.Errorf("%s does not exist, please compile first", path)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Playing %s\n", path)
	return nil
}

// historyEntry is the exported shape of a recorded compile.
type historyEntry struct {
	ID              string    `yaml:"id"`
	Status          string    `yaml:"status"`
	ExitCode        int       `yaml:"exit_code"`
	ArtifactPresent bool      `yaml:"artifact_present"`
	SourceBytes     int       `yaml:"source_bytes"`
	StartedAt       time.Time `yaml:"started_at"`
	FinishedAt      time.Time `yaml:"finished_at"`
	Output          string    `yaml:"output,omitempty"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.store == nil {
		return errors.New("compile history is disabled")
	}
	limit := historyLimit
	if limit <= 0 {
		limit = a.cfg.HistoryLimitOrDefault()
	}
	records, err := a.store.List(limit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	switch historyOutput {
	case "table":
		return writeHistoryTable(cmd.OutOrStdout(), records)
	case "yaml":
		return writeHistoryYAML(cmd.OutOrStdout(), records)
	default:
		return fmt.Errorf("unknown output format %q (want table or yaml)", historyOutput)
	}
}

func writeHistoryTable(w io.Writer, records []domain.CompileRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No compiles recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tEXIT\tARTIFACT\tSOURCE\tSTARTED\tDURATION")
	for _, r := range records {
		exit := "--"
		if r.ExitCode != domain.NoExitCode {
			exit = fmt.Sprintf("%d", r.ExitCode)
		}
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			id,
			r.Status,
			exit,
			r.ArtifactPresent,
			humanize.Bytes(uint64(r.SourceBytes)),
			humanize.Time(r.StartedAt),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

func writeHistoryYAML(w io.Writer, records []domain.CompileRecord) error {
	entries := make([]historyEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, historyEntry{
			ID:              r.ID,
			Status:          r.Status.String(),
			ExitCode:        r.ExitCode,
			ArtifactPresent: r.ArtifactPresent,
			SourceBytes:     r.SourceBytes,
			StartedAt:       r.StartedAt,
			FinishedAt:      r.FinishedAt,
			Output:          r.Output,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	return enc.Close()
}
