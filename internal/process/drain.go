package process

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// drain reads r to EOF into buf.
func drain(r io.Reader, buf *bytes.Buffer) error {
	if _, err := io.Copy(buf, r); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("reading output: %w", err)
	}
	return nil
}

// feed writes input to w and always closes it so the child sees end-of-input.
// A child that exits without reading everything breaks the pipe; that is not
// an invocation failure, the exit code decides the outcome.
func feed(w io.WriteCloser, input string, debugf func(string, ...any)) error {
	_, writeErr := io.WriteString(w, input)
	closeErr := w.Close()
	if writeErr != nil {
		if isBrokenPipe(writeErr) {
			debugf("child closed stdin early: %v", writeErr)
			return nil
		}
		return fmt.Errorf("writing input: %w", writeErr)
	}
	if closeErr != nil && !isBrokenPipe(closeErr) {
		return fmt.Errorf("closing input: %w", closeErr)
	}
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
