// Package compiler sequences compile requests against the external compiler and
// owns the session's status state machine.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waabox/melodeck/internal/domain"
)

// Config configures a Session.
type Config struct {
	CompilerPath string
	WorkDir      string
	ArtifactName string
	// Timeout bounds a single compiler run. Zero means no limit.
	Timeout time.Duration
	Debug   bool
}

// Option customises a Session.
type Option func(*Session)

// WithRecorder makes the session persist every finished compile.
func WithRecorder(r domain.Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// Session runs compile requests one at a time. It does not arbitrate
// overlapping Compile calls: callers must wait for a result before submitting
// the next request, since every run writes the same artifact path.
type Session struct {
	config   Config
	invoker  domain.Invoker
	recorder domain.Recorder

	mu          sync.RWMutex
	status      domain.CompileStatus
	subscribers map[int]chan domain.CompileStatus
	nextSubID   int
}

// NewSession creates a session in the Ready state.
func NewSession(config Config, invoker domain.Invoker, opts ...Option) *Session {
	s := &Session{
		config:      config,
		invoker:     invoker,
		status:      domain.Ready(),
		subscribers: make(map[int]chan domain.CompileStatus),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompilerPath returns the configured compiler executable.
func (s *Session) CompilerPath() string {
	return s.config.CompilerPath
}

// ArtifactPath returns where a successful compile leaves its artifact.
func (s *Session) ArtifactPath() string {
	return filepath.Join(s.config.WorkDir, s.config.ArtifactName)
}

// IsCompilerAvailable reports whether the compiler binary exists.
func (s *Session) IsCompilerAvailable() bool {
	return isFile(s.config.CompilerPath)
}

// ArtifactExists reports whether the artifact file is currently present.
func (s *Session) ArtifactExists() bool {
	return isFile(s.ArtifactPath())
}

// Compile runs the compiler on source and resolves to a terminal status.
// It never fails: launch problems and non-zero exits are reported through the
// result's Status, Output and Notes.
func (s *Session) Compile(ctx context.Context, source string) domain.CompileResult {
	req := domain.CompileRequest{Source: source}
	res := domain.CompileResult{
		ID:       uuid.NewString(),
		ExitCode: domain.NoExitCode,
		Started:  time.Now(),
	}
	s.resetIfTerminal()

	if err := s.checkCompiler(); err != nil {
		s.debugf("compile %s: %v", res.ID, err)
		res.Notes = append(res.Notes, fmt.Sprintf("ERROR: %s not found in %s.",
			filepath.Base(s.config.CompilerPath), s.config.WorkDir))
		return s.finish(req, res, domain.PreconditionMissing())
	}

	s.transition(domain.Compiling())
	s.debugf("compile %s: %d bytes of source", res.ID, len(source))

	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	outcome, err := s.invoker.Invoke(runCtx, s.config.CompilerPath, s.config.WorkDir, source)
	if err != nil {
		res.Output = err.Error() + "\n"
		var launchErr *domain.LaunchError
		if errors.As(err, &launchErr) {
			res.Notes = append(res.Notes, fmt.Sprintf("ERROR: could not start compiler: %v", launchErr.Err))
			return s.finish(req, res, domain.PreconditionMissing())
		}
		res.Notes = append(res.Notes, fmt.Sprintf("ERROR: compiler run failed: %v", err))
		return s.finish(req, res, domain.Failed())
	}

	res.Output = outcome.Output
	res.ExitCode = outcome.ExitCode
	if s.config.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.Notes = append(res.Notes, fmt.Sprintf("Compiler timed out after %s", s.config.Timeout))
	}

	if outcome.ExitCode != 0 {
		return s.finish(req, res, domain.Failed())
	}
	if s.ArtifactExists() {
		res.Notes = append(res.Notes, fmt.Sprintf("Artifact generated: %s", s.config.ArtifactName))
		return s.finish(req, res, domain.Succeeded(true))
	}
	res.Notes = append(res.Notes, "Warning: no artifact generated.")
	return s.finish(req, res, domain.Succeeded(false))
}

// checkCompiler reports domain.ErrCompilerMissing when the executable is absent.
func (s *Session) checkCompiler() error {
	if !s.IsCompilerAvailable() {
		return fmt.Errorf("%s: %w", s.config.CompilerPath, domain.ErrCompilerMissing)
	}
	return nil
}

func (s *Session) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout > 0 {
		return context.WithTimeout(ctx, s.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// finish stamps and records the result, then publishes the terminal status.
// Recording happens first so observers reacting to the status see the entry.
func (s *Session) finish(req domain.CompileRequest, res domain.CompileResult, status domain.CompileStatus) domain.CompileResult {
	res.Status = status
	res.Finished = time.Now()
	if s.recorder != nil {
		if err := s.recorder.Record(domain.NewCompileRecord(req, res)); err != nil {
			log.Printf("[session] recording compile %s: %v", res.ID, err)
		}
	}
	s.debugf("compile %s: %s (exit %d) in %s", res.ID, status, res.ExitCode, res.Duration())
	s.transition(status)
	return res
}

func (s *Session) debugf(format string, args ...any) {
	if s.config.Debug {
		log.Printf("[session] "+format, args...)
	}
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Ensure Session implements domain.CompileSession.
var _ domain.CompileSession = (*Session)(nil)
