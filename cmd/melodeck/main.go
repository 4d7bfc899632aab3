package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/waabox/melodeck/internal/compiler"
	"github.com/waabox/melodeck/internal/config"
	"github.com/waabox/melodeck/internal/domain"
	"github.com/waabox/melodeck/internal/history"
	"github.com/waabox/melodeck/internal/player"
	"github.com/waabox/melodeck/internal/process"
	"github.com/waabox/melodeck/internal/tui"
	"github.com/waabox/melodeck/internal/watch"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "melodeck",
		Short: "melodeck - edit, compile and play songs",
		Long: `melodeck edits song sources, hands them to the external music compiler
and plays back the generated artifact.

Run without a subcommand to open the terminal UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(int(exit))
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// exitError ends the process with the given code without printing anything.
type exitError int

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// app holds the collaborators shared by every command.
type app struct {
	cfg     config.Config
	session *compiler.Session
	store   *history.Store
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.LoadFrom(path)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a := &app{cfg: cfg}
	var opts []compiler.Option
	if cfg.HistoryEnabled() {
		store, err := history.New(cfg.HistoryPathOrDefault())
		if err != nil {
			// History is optional; compiling still works without it.
			log.Printf("[melodeck] compile history disabled: %v", err)
		} else {
			a.store = store
			opts = append(opts, compiler.WithRecorder(store))
		}
	}

	invoker := process.NewInvoker(process.Config{Debug: cfg.Debug})
	a.session = compiler.NewSession(compiler.Config{
		CompilerPath: cfg.CompilerPathOrDefault(),
		WorkDir:      cfg.WorkDirOrDefault(),
		ArtifactName: cfg.ArtifactNameOrDefault(),
		Timeout:      cfg.Compiler.Timeout.Duration,
		Debug:        cfg.Debug,
	}, invoker, opts...)
	return a, nil
}

// historyLister returns the store as a HistoryLister, or nil when history is off.
func (a *app) historyLister() domain.HistoryLister {
	if a.store == nil {
		return nil
	}
	return a.store
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Printf("[melodeck] closing history: %v", err)
		}
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// The alternate screen owns the terminal, so logs go to a file or nowhere.
	if a.cfg.Debug {
		logDir := config.DefaultConfigDir()
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", logDir, err)
		}
		logFile, err := tea.LogToFile(filepath.Join(logDir, "melodeck.log"), "melodeck")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer logFile.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	source := a.cfg.SourceFileOrDefault()
	m := tui.NewAppModel(a.session, player.NewOpener(), a.historyLister(), tui.Options{
		SourcePath:    source,
		EditorCommand: a.cfg.EditorCommandOrDefault(),
		HistoryLimit:  a.cfg.HistoryLimitOrDefault(),
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	return tui.Run(m, func(p *tea.Program) {
		if !a.cfg.WatchEnabled() {
			return
		}
		fw, err := watch.NewFileWatcher(source, func(path string) {
			p.Send(tui.ReadSource(path))
		})
		if err != nil {
			log.Printf("[melodeck] not watching %s: %v", source, err)
			return
		}
		fw.Start(ctx)
	})
}
