// Package player hands the compiled artifact to the operating system's default handler.
package player

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/waabox/melodeck/internal/domain"
)

// ErrNoArtifact is returned when there is nothing to play yet.
var ErrNoArtifact = errors.New("no artifact to play")

// Launcher starts a detached command.
type Launcher func(name string, args ...string) error

// Opener opens files with the system default application.
type Opener struct {
	goos   string
	launch Launcher
}

// Ensure Opener implements domain.Opener.
var _ domain.Opener = (*Opener)(nil)

// NewOpener creates an Opener for the running OS.
func NewOpener() *Opener {
	return &Opener{goos: runtime.GOOS, launch: startDetached}
}

// NewOpenerWith creates an Opener for goos that starts commands with launch.
func NewOpenerWith(goos string, launch Launcher) *Opener {
	return &Opener{goos: goos, launch: launch}
}

// Open asks the OS to open path. It returns once the handler is launched,
// not when playback ends.
func (o *Opener) Open(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNoArtifact
		}
		return err
	}
	name, args := commandFor(o.goos, path)
	if err := o.launch(name, args...); err != nil {
		return fmt.Errorf("opening %s with %s: %w", path, name, err)
	}
	return nil
}

// commandFor returns the default-handler command for goos.
func commandFor(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the handler process without blocking the caller.
	go cmd.Wait()
	return nil
}
