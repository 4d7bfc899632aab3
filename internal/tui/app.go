package tui

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/waabox/melodeck/internal/domain"
	"github.com/waabox/melodeck/internal/sample"
)

// CompileFinishedMsg is sent when a compile request has resolved.
// It is exported so that tests can inject it directly into AppModel.Update.
type CompileFinishedMsg struct {
	Result domain.CompileResult
}

// StatusChangedMsg carries a status transition published by the session.
type StatusChangedMsg struct {
	Status domain.CompileStatus
}

// SourceLoadedMsg is sent when the source file has been (re)read from disk.
type SourceLoadedMsg struct {
	Content string
	Err     error
}

// HistoryLoadedMsg is sent when recorded compiles have been fetched.
type HistoryLoadedMsg struct {
	Records []domain.CompileRecord
	Err     error
}

// PlaybackMsg is sent once the OS has been asked to open the artifact.
type PlaybackMsg struct {
	Err error
}

// editorClosedMsg is sent when the external editor exits.
type editorClosedMsg struct {
	err error
}

// sourceSavedMsg is sent once the source has been written for the editor.
type sourceSavedMsg struct {
	err error
}

// viewState indicates which screen is shown.
type viewState int

const (
	viewMain viewState = iota
	viewHistory
)

// Options configures the shell.
type Options struct {
	SourcePath    string
	EditorCommand string
	HistoryLimit  int
}

// AppModel is the root Bubbletea model for melodeck.
type AppModel struct {
	session domain.CompileSession
	opener  domain.Opener
	history domain.HistoryLister
	opts    Options

	statusCh    <-chan domain.CompileStatus
	unsubscribe func()

	view viewState
	// Source pane
	source       string
	sourceOffset int
	// Output console
	output       string
	outputOffset int
	// Status bar
	status    domain.CompileStatus
	notice    *notice
	compiling bool
	// History panel
	list HistoryListModel
	err  error

	width  int
	height int
}

// NewAppModel creates the root application model and subscribes it to the session's
// status transitions. history may be nil when compile history is disabled.
func NewAppModel(session domain.CompileSession, opener domain.Opener, history domain.HistoryLister, opts Options) AppModel {
	ch, unsubscribe := session.Subscribe()
	return AppModel{
		session:     session,
		opener:      opener,
		history:     history,
		opts:        opts,
		statusCh:    ch,
		unsubscribe: unsubscribe,
		status:      session.Status(),
		list:        NewHistoryListModel(nil),
	}
}

// Close ends the status subscription.
func (m AppModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init loads the source file, the history and starts listening for status changes.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadSource(), m.waitForStatus(), m.loadHistory())
}

func (m AppModel) waitForStatus() tea.Cmd {
	ch := m.statusCh
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return StatusChangedMsg{Status: st}
	}
}

func (m AppModel) loadSource() tea.Cmd {
	path := m.opts.SourcePath
	return func() tea.Msg {
		return ReadSource(path)
	}
}

// ReadSource reads the song source at path into a SourceLoadedMsg.
func ReadSource(path string) SourceLoadedMsg {
	if path == "" {
		return SourceLoadedMsg{Err: fs.ErrNotExist}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceLoadedMsg{Err: err}
	}
	return SourceLoadedMsg{Content: string(data)}
}

func (m AppModel) saveSource() tea.Cmd {
	path, content := m.opts.SourcePath, m.source
	return func() tea.Msg {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return sourceSavedMsg{err: err}
		}
		return sourceSavedMsg{err: os.WriteFile(path, []byte(content), 0644)}
	}
}

func (m AppModel) loadHistory() tea.Cmd {
	if m.history == nil {
		return nil
	}
	lister, limit := m.history, m.opts.HistoryLimit
	return func() tea.Msg {
		records, err := lister.List(limit)
		return HistoryLoadedMsg{Records: records, Err: err}
	}
}

func (m AppModel) compile() tea.Cmd {
	session, source := m.session, m.source
	return func() tea.Msg {
		return CompileFinishedMsg{Result: session.Compile(context.Background(), source)}
	}
}

func (m AppModel) play() tea.Cmd {
	opener, path := m.opener, m.session.ArtifactPath()
	return func() tea.Msg {
		return PlaybackMsg{Err: opener.Open(path)}
	}
}

func (m AppModel) openEditor() tea.Cmd {
	fields := strings.Fields(m.opts.EditorCommand)
	if len(fields) == 0 {
		fields = []string{"vi"}
	}
	args := append(fields[1:], m.opts.SourcePath)
	cmd := exec.Command(fields[0], args...)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorClosedMsg{err: err}
	})
}

// Update handles all incoming messages and key events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case StatusChangedMsg:
		// Ready and Compiling published by a run whose result is already shown are stale.
		if !m.compiling && !msg.Status.IsTerminal() {
			return m, m.waitForStatus()
		}
		if msg.Status != m.status {
			m.status = msg.Status
			m.notice = nil
		}
		return m, m.waitForStatus()

	case CompileFinishedMsg:
		m.compiling = false
		m.status = msg.Result.Status
		m.notice = nil
		m.setOutput(formatResult(msg.Result))
		return m, m.loadHistory()

	case SourceLoadedMsg:
		if msg.Err != nil {
			if errors.Is(msg.Err, fs.ErrNotExist) && m.source == "" {
				m.source = sample.Song()
				return m, nil
			}
			m.appendOutput(fmt.Sprintf("Could not read %s: %v", m.opts.SourcePath, msg.Err))
			return m, nil
		}
		m.source = strings.TrimRight(msg.Content, "\n")
		m.clampSourceOffset()

	case HistoryLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.list = NewHistoryListModel(msg.Records)

	case PlaybackMsg:
		if msg.Err != nil {
			m.notice = &notice{text: "Playback error", color: colorError}
			m.appendOutput("Playback error: " + msg.Err.Error())
			return m, nil
		}
		m.notice = &notice{text: "Playing " + filepath.Base(m.session.ArtifactPath()), color: colorPlaying}

	case sourceSavedMsg:
		if msg.err != nil {
			m.appendOutput(fmt.Sprintf("Could not write %s: %v", m.opts.SourcePath, msg.err))
			return m, nil
		}
		return m, m.openEditor()

	case editorClosedMsg:
		if msg.err != nil {
			m.appendOutput("Editor error: " + msg.err.Error())
		}
		return m, m.loadSource()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		switch m.view {
		case viewMain:
			return m.updateMain(msg)
		case viewHistory:
			return m.updateHistory(msg)
		}
	}
	return m, nil
}

func (m AppModel) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "c", "ctrl+b":
		if m.compiling {
			m.notice = &notice{text: "Compile already in progress", color: colorBusy}
			return m, nil
		}
		m.compiling = true
		m.notice = nil
		m.setOutput("")
		return m, m.compile()
	case "p":
		if !m.session.ArtifactExists() {
			m.notice = &notice{text: "No artifact", color: colorError}
			m.appendOutput("Please compile first.")
			return m, nil
		}
		return m, m.play()
	case "s":
		m.source = sample.Song()
		m.sourceOffset = 0
		m.notice = &notice{text: "Sample loaded", color: colorOK}
	case "x":
		m.source = ""
		m.sourceOffset = 0
		m.setOutput("")
		m.session.Reset()
		m.status = m.session.Status()
		m.notice = &notice{text: "Cleared", color: colorMuted}
	case "e":
		if m.opts.SourcePath == "" {
			m.appendOutput("No source file configured.")
			return m, nil
		}
		return m, m.saveSource()
	case "h":
		m.view = viewHistory
		return m, m.loadHistory()
	case "[":
		if m.sourceOffset > 0 {
			m.sourceOffset--
		}
	case "]":
		m.sourceOffset++
		m.clampSourceOffset()
	case "down":
		if m.outputOffset < m.maxOutputOffset() {
			m.outputOffset++
		}
	case "up":
		if m.outputOffset > 0 {
			m.outputOffset--
		}
	case "pgdown":
		m.outputOffset += m.visibleOutputLines()
		if limit := m.maxOutputOffset(); m.outputOffset > limit {
			m.outputOffset = limit
		}
	case "pgup":
		m.outputOffset -= m.visibleOutputLines()
		if m.outputOffset < 0 {
			m.outputOffset = 0
		}
	case "g":
		m.outputOffset = 0
	case "G":
		m.outputOffset = m.maxOutputOffset()
	}
	return m, nil
}

func (m AppModel) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.list = m.list.MoveDown()
	case "up":
		m.list = m.list.MoveUp()
	case "enter":
		if len(m.list.Records()) > 0 {
			rec := m.list.SelectedRecord()
			m.setOutput(rec.Output)
			m.notice = &notice{text: "Showing compile " + shortID(rec.ID), color: colorMuted}
			m.view = viewMain
		}
	case "esc", "h":
		m.view = viewMain
	}
	return m, nil
}

// formatResult renders a compile result the way the output console shows it:
// the compiler's combined output followed by the shell's notes.
func formatResult(res domain.CompileResult) string {
	var sb strings.Builder
	sb.WriteString(res.Output)
	for _, n := range res.Notes {
		sb.WriteString(n)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *AppModel) setOutput(text string) {
	m.output = text
	m.outputOffset = 0
}

func (m *AppModel) appendOutput(line string) {
	m.output += line + "\n"
}

func (m *AppModel) clampSourceOffset() {
	if last := lineCount(m.source) - 1; m.sourceOffset > last {
		m.sourceOffset = last
	}
}

func (m AppModel) maxOutputOffset() int {
	return strings.Count(m.output, "\n")
}

// visibleSourceLines returns how many source lines fit in the current terminal height.
func (m AppModel) visibleSourceLines() int {
	lines := (m.height - 9) / 2 // header, titles, separators, status and footer
	if lines < 12 {
		return 12
	}
	return lines
}

// visibleOutputLines returns how many output lines fit in the current terminal height.
func (m AppModel) visibleOutputLines() int {
	lines := m.height - 9 - m.visibleSourceLines()
	if lines < 10 {
		return 10
	}
	return lines
}

// View renders the full TUI.
func (m AppModel) View() string {
	header := titleStyle.Render(" melodeck") + fmt.Sprintf(" | %s | compiler: %s%s\n",
		filepath.Base(m.opts.SourcePath), m.session.CompilerPath(), m.compilerMarker())
	separator := "────────────────────────────────────────────────────────────\n"

	if m.view == viewHistory {
		return m.renderHistoryView(header, separator)
	}
	return m.renderMainView(header, separator)
}

func (m AppModel) compilerMarker() string {
	if m.session.IsCompilerAvailable() {
		return ""
	}
	return " [missing]"
}

func (m AppModel) renderMainView(header, separator string) string {
	sourceTitle := paneTitleStyle.Render(fmt.Sprintf(" Source (%d lines)", lineCount(m.source))) + "\n"
	sourceView := numberLines(m.source, m.sourceOffset, m.visibleSourceLines())

	outputTitle := paneTitleStyle.Render(" Output") + "\n"
	outputView := m.renderOutput()

	footer := footerStyle.Render(" c: compile   p: play   e: edit   s: sample   x: clear   h: history   ↑/↓: scroll   q: quit") + "\n"
	return header + separator + sourceTitle + sourceView + separator +
		outputTitle + outputView + separator + m.renderStatusBar() + separator + footer
}

func (m AppModel) renderOutput() string {
	if m.output == "" {
		return "\n"
	}
	lines := strings.Split(m.output, "\n")
	start := m.outputOffset
	if start >= len(lines) {
		start = len(lines) - 1
	}
	end := start + m.visibleOutputLines()
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n") + "\n"
}

// renderStatusBar is the status reporter: it shows the latest notice or, when
// none is pending, the session's current status.
func (m AppModel) renderStatusBar() string {
	if m.notice != nil {
		return " " + renderStatus(m.notice.text, m.notice.color) + "\n"
	}
	text, color := statusLine(m.status, m.session.CompilerPath())
	return " " + renderStatus(text, color) + "\n"
}

func (m AppModel) renderHistoryView(header, separator string) string {
	title := paneTitleStyle.Render(" Compile history") + "\n"
	body := m.list.View()
	if m.err != nil {
		body = fmt.Sprintf(" Error: %v\n", m.err)
	}
	footer := footerStyle.Render(" ↑/↓: navigate   enter: show output   esc: back   q: quit") + "\n"
	return header + separator + title + body + separator + footer
}

// Run starts the Bubbletea program and blocks until the user quits.
// onStart, if set, receives the running program so collaborators such as the
// file watcher can send messages into it.
func Run(m AppModel, onStart func(p *tea.Program)) error {
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen())
	if onStart != nil {
		onStart(p)
	}
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("melodeck: %w", err)
	}
	return nil
}
