//go:build windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// createNoWindow is CREATE_NO_WINDOW from the Win32 process creation flags.
const createNoWindow = 0x08000000

// configureProcess keeps the child from opening a console window.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}

// signalExitCode maps an exit without a status to a generic failure.
// A process killed through TerminateProcess already reports exit code 1.
func signalExitCode(_ *os.ProcessState) int {
	return 1
}
