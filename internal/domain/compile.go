package domain

import (
	"fmt"
	"time"
)

// StatusKind identifies which variant a CompileStatus holds.
type StatusKind int

const (
	StatusReady StatusKind = iota
	StatusCompiling
	StatusSucceeded
	StatusFailed
	StatusPreconditionMissing
)

var statusNames = map[StatusKind]string{
	StatusReady:               "ready",
	StatusCompiling:           "compiling",
	StatusSucceeded:           "succeeded",
	StatusFailed:              "failed",
	StatusPreconditionMissing: "precondition_missing",
}

// String returns the stable machine name of the kind. It is what the history store persists.
func (k StatusKind) String() string {
	if name, ok := statusNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// ParseStatusKind is the inverse of StatusKind.String.
func ParseStatusKind(s string) (StatusKind, error) {
	for k, name := range statusNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown status kind %q", s)
}

// CompileStatus is the tagged status of a session. ArtifactPresent is only
// meaningful when Kind is StatusSucceeded.
type CompileStatus struct {
	Kind            StatusKind
	ArtifactPresent bool
}

// Ready returns the initial status.
func Ready() CompileStatus { return CompileStatus{Kind: StatusReady} }

// Compiling returns the status published while the compiler process runs.
func Compiling() CompileStatus { return CompileStatus{Kind: StatusCompiling} }

// Succeeded returns the status for a zero exit code.
func Succeeded(artifactPresent bool) CompileStatus {
	return CompileStatus{Kind: StatusSucceeded, ArtifactPresent: artifactPresent}
}

// Failed returns the status for a non-zero exit code.
func Failed() CompileStatus { return CompileStatus{Kind: StatusFailed} }

// PreconditionMissing returns the status used when no process could be run.
func PreconditionMissing() CompileStatus { return CompileStatus{Kind: StatusPreconditionMissing} }

// IsTerminal reports whether the status ends a compile attempt.
func (s CompileStatus) IsTerminal() bool {
	switch s.Kind {
	case StatusSucceeded, StatusFailed, StatusPreconditionMissing:
		return true
	default:
		return false
	}
}

// Label returns the human-readable status line.
func (s CompileStatus) Label() string {
	switch s.Kind {
	case StatusReady:
		return "Ready"
	case StatusCompiling:
		return "Compiling..."
	case StatusSucceeded:
		return "Compilation successful"
	case StatusFailed:
		return "Compilation failed"
	case StatusPreconditionMissing:
		return "Compiler not found"
	default:
		return s.Kind.String()
	}
}

func (s CompileStatus) String() string {
	if s.Kind == StatusSucceeded {
		return fmt.Sprintf("%s(artifact=%t)", s.Kind, s.ArtifactPresent)
	}
	return s.Kind.String()
}

// CompileRequest holds the source text submitted for one compile attempt.
type CompileRequest struct {
	Source string
}

// ProcessOutcome is the result of one external-process execution.
// Output is stdout followed by stderr, each newline-terminated.
type ProcessOutcome struct {
	Output   string
	ExitCode int
}

// NoExitCode marks results where no process ran.
const NoExitCode = -1

// CompileResult is what a session hands back for every compile request.
type CompileResult struct {
	ID       string
	Status   CompileStatus
	ExitCode int
	Output   string
	Notes    []string
	Started  time.Time
	Finished time.Time
}

// Duration returns how long the compile attempt took.
func (r CompileResult) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// CompileRecord is one persisted compile attempt.
type CompileRecord struct {
	ID              string
	Status          StatusKind
	ExitCode        int
	ArtifactPresent bool
	SourceBytes     int
	Output          string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// NewCompileRecord builds the history entry for a finished compile.
func NewCompileRecord(req CompileRequest, res CompileResult) CompileRecord {
	return CompileRecord{
		ID:              res.ID,
		Status:          res.Status.Kind,
		ExitCode:        res.ExitCode,
		ArtifactPresent: res.Status.ArtifactPresent,
		SourceBytes:     len(req.Source),
		Output:          res.Output,
		StartedAt:       res.Started,
		FinishedAt:      res.Finished,
	}
}
