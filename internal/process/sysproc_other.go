//go:build !unix && !windows

package process

import (
	"os"
	"os/exec"
)

func configureProcess(_ *exec.Cmd) {}

// signalExitCode maps an exit without a status to a generic failure.
func signalExitCode(_ *os.ProcessState) int {
	return 1
}
