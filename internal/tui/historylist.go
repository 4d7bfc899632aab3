package tui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/waabox/melodeck/internal/domain"
)

// HistoryListModel is an immutable Bubbletea-compatible model for the compile history panel.
type HistoryListModel struct {
	records []domain.CompileRecord
	cursor  int
}

// NewHistoryListModel creates a history list model with the given records.
func NewHistoryListModel(records []domain.CompileRecord) HistoryListModel {
	return HistoryListModel{records: records, cursor: 0}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m HistoryListModel) MoveDown() HistoryListModel {
	if m.cursor < len(m.records)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m HistoryListModel) MoveUp() HistoryListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// SelectedIndex returns the current cursor position.
func (m HistoryListModel) SelectedIndex() int {
	return m.cursor
}

// Records returns the records in the list.
func (m HistoryListModel) Records() []domain.CompileRecord {
	return m.records
}

// SelectedRecord returns the currently highlighted record.
// Returns zero-value CompileRecord if the list is empty.
func (m HistoryListModel) SelectedRecord() domain.CompileRecord {
	if len(m.records) == 0 {
		return domain.CompileRecord{}
	}
	return m.records[m.cursor]
}

// View renders the history list as a string.
func (m HistoryListModel) View() string {
	if len(m.records) == 0 {
		return " No compiles recorded yet.\n"
	}
	var sb strings.Builder
	for i, r := range m.records {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		sb.WriteString(fmt.Sprintf("%s%s %s %-22s exit %-3s %-9s %s\n",
			prefix,
			statusIcon(r),
			shortID(r.ID),
			r.Status,
			exitText(r.ExitCode),
			humanize.Bytes(uint64(r.SourceBytes)),
			formatAge(r),
		))
	}
	return sb.String()
}

func statusIcon(r domain.CompileRecord) string {
	switch r.Status {
	case domain.StatusSucceeded:
		if r.ArtifactPresent {
			return "✓"
		}
		return "!"
	case domain.StatusFailed:
		return "✗"
	case domain.StatusPreconditionMissing:
		return "○"
	case domain.StatusCompiling:
		return "●"
	default:
		return "?"
	}
}

func exitText(code int) string {
	if code == domain.NoExitCode {
		return "--"
	}
	return fmt.Sprintf("%d", code)
}

func formatAge(r domain.CompileRecord) string {
	if r.StartedAt.IsZero() {
		return "--"
	}
	return humanize.Time(r.StartedAt)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
