// Package process runs the external compiler with its standard streams piped.
//
// Standard output and standard error are drained on their own goroutines from
// the moment the child starts while standard input is written on a third one.
// The child is only waited on after all three have finished, so neither side can
// block the other on a full pipe buffer.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/waabox/melodeck/internal/domain"
)

// lineSeparator terminates each captured stream in the combined output.
const lineSeparator = "\n"

// Config configures the invoker.
type Config struct {
	Debug bool
}

// Invoker starts one external process per call.
type Invoker struct {
	config Config
}

// Ensure Invoker implements domain.Invoker.
var _ domain.Invoker = (*Invoker)(nil)

// NewInvoker creates a new Invoker.
func NewInvoker(config Config) *Invoker {
	return &Invoker{config: config}
}

// Invoke runs executable with no arguments in workDir, writes input to its stdin,
// closes stdin and collects stdout and stderr. A non-zero exit code is reported in
// the outcome, not as an error. If the program cannot be started the returned
// error is a *domain.LaunchError.
//
// Cancelling ctx kills the child together with any processes it started; the
// outcome then carries the exit code of the killed child.
func (inv *Invoker) Invoke(ctx context.Context, executable, workDir, input string) (domain.ProcessOutcome, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, executable)
	cmd.Dir = workDir
	configureProcess(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return domain.ProcessOutcome{}, fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.ProcessOutcome{}, fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return domain.ProcessOutcome{}, fmt.Errorf("opening stderr pipe: %w", err)
	}

	inv.debugf("starting %s in %s (%d bytes of input)", executable, workDir, len(input))
	if err := cmd.Start(); err != nil {
		inv.debugf("start failed: %v", err)
		return domain.ProcessOutcome{}, &domain.LaunchError{Path: executable, Err: err}
	}
	inv.debugf("started with PID %d", cmd.Process.Pid)

	var stdoutBuf, stderrBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		return feed(stdin, input, inv.debugf)
	})
	g.Go(func() error {
		return drain(stdout, &stdoutBuf)
	})
	g.Go(func() error {
		return drain(stderr, &stderrBuf)
	})
	ioErr := g.Wait()

	// Wait closes the pipes, so it must only run once both drains hit EOF.
	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return domain.ProcessOutcome{}, fmt.Errorf("waiting for %s: %w", executable, waitErr)
		}
		exitCode = exitErr.ExitCode()
		if exitCode == -1 {
			// Killed by a signal; keep it distinct from domain.NoExitCode.
			exitCode = signalExitCode(exitErr.ProcessState)
		}
	}
	if ioErr != nil {
		return domain.ProcessOutcome{}, fmt.Errorf("streaming %s: %w", executable, ioErr)
	}

	inv.debugf("%s exited with code %d after %.2fs (stdout=%d bytes, stderr=%d bytes)",
		executable, exitCode, time.Since(start).Seconds(), stdoutBuf.Len(), stderrBuf.Len())

	return domain.ProcessOutcome{
		Output:   combine(stdoutBuf.String(), stderrBuf.String()),
		ExitCode: exitCode,
	}, nil
}

// combine places stdout before stderr, each followed by a line separator,
// whether or not either stream produced anything.
func combine(stdout, stderr string) string {
	var sb bytes.Buffer
	sb.Grow(len(stdout) + len(stderr) + 2*len(lineSeparator))
	sb.WriteString(stdout)
	sb.WriteString(lineSeparator)
	sb.WriteString(stderr)
	sb.WriteString(lineSeparator)
	return sb.String()
}

func (inv *Invoker) debugf(format string, args ...any) {
	if inv.config.Debug {
		log.Printf("[invoker] "+format, args...)
	}
}
