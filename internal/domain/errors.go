// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrCompilerMissing is returned when the configured compiler binary does not exist.
// No process is started when this error is reported.
var ErrCompilerMissing = errors.New("compiler not found")

// LaunchError is returned by an Invoker when the external program could not be started
// (missing, not executable, permission denied). A non-zero exit code is not a LaunchError.
// Callers can check for it using errors.As.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
