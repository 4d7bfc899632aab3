//go:build unix

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// configureProcess starts the child in its own process group and makes
// cancellation kill the whole group, so descendants that inherited the output
// pipes die with it.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}

// signalExitCode reports a signal death the way shells do: 128 plus the signal number.
func signalExitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
