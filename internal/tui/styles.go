package tui

import (
	"path/filepath"

	"github.com/charmbracelet/lipgloss"

	"github.com/waabox/melodeck/internal/domain"
)

// Status bar colors.
const (
	colorOK      = "#55FF55"
	colorBusy    = "#FFA500"
	colorError   = "#FF5555"
	colorMuted   = "#999999"
	colorPlaying = "#007ACC"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	paneTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	gutterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

// notice is a transient status line that is not a compile status,
// such as "Sample loaded" or "Playing".
type notice struct {
	text  string
	color string
}

// statusLine returns the text and color reported for a compile status.
func statusLine(s domain.CompileStatus, compilerPath string) (string, string) {
	switch s.Kind {
	case domain.StatusReady:
		return s.Label(), colorOK
	case domain.StatusCompiling:
		return s.Label(), colorBusy
	case domain.StatusSucceeded:
		return s.Label(), colorOK
	case domain.StatusFailed:
		return s.Label(), colorError
	case domain.StatusPreconditionMissing:
		return filepath.Base(compilerPath) + " not found", colorError
	default:
		return s.Label(), colorMuted
	}
}

func renderStatus(text, color string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(text)
}
