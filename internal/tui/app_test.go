package tui_test

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/waabox/melodeck/internal/domain"
	"github.com/waabox/melodeck/internal/tui"
)

// fakeSession satisfies domain.CompileSession for TUI tests.
type fakeSession struct {
	result         domain.CompileResult
	status         domain.CompileStatus
	compilerExists bool
	artifactExists bool
	compileCalls   int
	gotSource      string
	resetCalled    bool
	ch             chan domain.CompileStatus
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		status:         domain.Ready(),
		compilerExists: true,
		ch:             make(chan domain.CompileStatus, 8),
	}
}

func (f *fakeSession) Compile(_ context.Context, source string) domain.CompileResult {
	f.compileCalls++
	f.gotSource = source
	f.status = f.result.Status
	return f.result
}
func (f *fakeSession) Status() domain.CompileStatus { return f.status }
func (f *fakeSession) Subscribe() (<-chan domain.CompileStatus, func()) {
	return f.ch, func() {}
}
func (f *fakeSession) Reset() {
	f.resetCalled = true
	f.status = domain.Ready()
}
func (f *fakeSession) IsCompilerAvailable() bool { return f.compilerExists }
func (f *fakeSession) CompilerPath() string      { return "/opt/songs/music" }
func (f *fakeSession) ArtifactPath() string      { return "/opt/songs/output.mid" }
func (f *fakeSession) ArtifactExists() bool      { return f.artifactExists }

// fakeOpener satisfies domain.Opener.
type fakeOpener struct {
	opened string
	err    error
}

func (f *fakeOpener) Open(path string) error {
	f.opened = path
	return f.err
}

// fakeHistory satisfies domain.HistoryLister.
type fakeHistory struct {
	records []domain.CompileRecord
}

func (f *fakeHistory) List(_ int) ([]domain.CompileRecord, error) {
	return f.records, nil
}

func newApp(session *fakeSession, opener *fakeOpener, history domain.HistoryLister) tui.AppModel {
	return tui.NewAppModel(session, opener, history, tui.Options{
		SourcePath:   "/opt/songs/song.music",
		HistoryLimit: 20,
	})
}

func press(t *testing.T, m tea.Model, key string) (tui.AppModel, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return updated.(tui.AppModel), cmd
}

func TestApp_MissingSourceFileLoadsSample(t *testing.T) {
	m := newApp(newFakeSession(), &fakeOpener{}, nil)

	m1, _ := m.Update(tui.SourceLoadedMsg{Err: fs.ErrNotExist})
	view := m1.(tui.AppModel).View()

	if !strings.Contains(view, "song MyFirstSong {") {
		t.Errorf("expected sample song in view, got:\n%s", view)
	}
	if !strings.Contains(view, "Ready") {
		t.Errorf("expected Ready status, got:\n%s", view)
	}
}

func TestApp_SourceLoaded_RendersLineNumbers(t *testing.T) {
	m := newApp(newFakeSession(), &fakeOpener{}, nil)

	m1, _ := m.Update(tui.SourceLoadedMsg{Content: "song A {\n    tempo 90;\n}\n"})
	view := m1.(tui.AppModel).View()

	for _, want := range []string{"1 │ song A {", "2 │     tempo 90;", "3 │ }", "Source (3 lines)"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view, got:\n%s", want, view)
		}
	}
}

func TestApp_CompileKey_RunsSessionAndRendersResult(t *testing.T) {
	session := newFakeSession()
	session.result = domain.CompileResult{
		Status: domain.Succeeded(true),
		Output: "compiled MyFirstSong\n\n",
		Notes:  []string{"Artifact generated: output.mid"},
	}
	m := newApp(session, &fakeOpener{}, nil)
	m0, _ := m.Update(tui.SourceLoadedMsg{Content: "song B {}"})

	m1, cmd := press(t, m0, "c")
	if cmd == nil {
		t.Fatal("expected compile command")
	}
	msg := cmd()
	if session.compileCalls != 1 || session.gotSource != "song B {}" {
		t.Fatalf("expected one compile of the source, got calls=%d source=%q", session.compileCalls, session.gotSource)
	}
	m2, _ := m1.Update(msg)
	view := m2.(tui.AppModel).View()

	for _, want := range []string{"compiled MyFirstSong", "Artifact generated: output.mid", "Compilation successful"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view, got:\n%s", want, view)
		}
	}
}

func TestApp_CompileKey_RejectedWhileCompiling(t *testing.T) {
	session := newFakeSession()
	m := newApp(session, &fakeOpener{}, nil)

	m1, cmd := press(t, m, "c")
	if cmd == nil {
		t.Fatal("expected first compile to start")
	}
	m2, cmd2 := press(t, m1, "c")

	if cmd2 != nil {
		t.Error("expected second compile to be rejected while the first is in flight")
	}
	if !strings.Contains(m2.View(), "Compile already in progress") {
		t.Errorf("expected in-progress notice, got:\n%s", m2.View())
	}
}

func TestApp_FailedCompile_ShowsFailure(t *testing.T) {
	m := newApp(newFakeSession(), &fakeOpener{}, nil)

	m1, _ := m.Update(tui.CompileFinishedMsg{Result: domain.CompileResult{
		Status: domain.Failed(),
		Output: "\nerror: unexpected '}' at line 3\n",
	}})
	view := m1.(tui.AppModel).View()

	if !strings.Contains(view, "Compilation failed") || !strings.Contains(view, "unexpected '}'") {
		t.Errorf("expected failure status and diagnostics, got:\n%s", view)
	}
}

func TestApp_PreconditionMissing_NamesCompiler(t *testing.T) {
	session := newFakeSession()
	session.compilerExists = false
	m := newApp(session, &fakeOpener{}, nil)

	m1, _ := m.Update(tui.CompileFinishedMsg{Result: domain.CompileResult{
		Status: domain.PreconditionMissing(),
		Notes:  []string{"ERROR: music not found in /opt/songs."},
	}})
	view := m1.(tui.AppModel).View()

	if !strings.Contains(view, "music not found") {
		t.Errorf("expected not-found status, got:\n%s", view)
	}
	if !strings.Contains(view, "[missing]") {
		t.Errorf("expected missing marker in header, got:\n%s", view)
	}
}

func TestApp_StatusChanged_ShowsCompiling(t *testing.T) {
	m := newApp(newFakeSession(), &fakeOpener{}, nil)
	m0, _ := press(t, m, "c")

	m1, cmd := m0.Update(tui.StatusChangedMsg{Status: domain.Compiling()})

	if !strings.Contains(m1.(tui.AppModel).View(), "Compiling...") {
		t.Errorf("expected Compiling status, got:\n%s", m1.(tui.AppModel).View())
	}
	if cmd == nil {
		t.Error("expected the status subscription to be re-armed")
	}
}

func TestApp_StatusSubscription_DeliversSessionStatus(t *testing.T) {
	session := newFakeSession()
	m := newApp(session, &fakeOpener{}, nil)
	session.ch <- domain.Failed()

	_, cmd := m.Update(tui.StatusChangedMsg{Status: domain.Compiling()})
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	select {
	case msg := <-done:
		got, ok := msg.(tui.StatusChangedMsg)
		if !ok || got.Status.Kind != domain.StatusFailed {
			t.Errorf("expected StatusChangedMsg(Failed), got %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the subscription command to deliver the published status")
	}
}

func TestApp_StaleStatusAfterResult_IsIgnored(t *testing.T) {
	session := newFakeSession()
	session.artifactExists = true
	m := newApp(session, &fakeOpener{}, nil)

	m0, _ := press(t, m, "c")
	m1, _ := m0.Update(tui.CompileFinishedMsg{Result: domain.CompileResult{Status: domain.Succeeded(true)}})
	m2, cmd := press(t, m1, "p")
	m3, _ := m2.Update(cmd())

	// Statuses published during the run arrive after the result.
	m4, next := m3.Update(tui.StatusChangedMsg{Status: domain.Ready()})
	m5, _ := m4.Update(tui.StatusChangedMsg{Status: domain.Compiling()})
	m6, _ := m5.Update(tui.StatusChangedMsg{Status: domain.Succeeded(true)})
	view := m6.(tui.AppModel).View()

	if next == nil {
		t.Error("expected the status subscription to stay armed")
	}
	if strings.Contains(view, "Compiling...") {
		t.Errorf("expected stale Compiling to be ignored, got:\n%s", view)
	}
	if !strings.Contains(view, "Playing output.mid") {
		t.Errorf("expected playing notice to survive stale statuses, got:\n%s", view)
	}
}

func TestApp_PlayWithoutArtifact_AsksToCompile(t *testing.T) {
	opener := &fakeOpener{}
	m := newApp(newFakeSession(), opener, nil)

	m1, cmd := press(t, m, "p")
	view := m1.View()

	if cmd != nil {
		t.Error("expected no playback command without an artifact")
	}
	if !strings.Contains(view, "No artifact") || !strings.Contains(view, "Please compile first.") {
		t.Errorf("expected compile-first hint, got:\n%s", view)
	}
}

func TestApp_PlayWithArtifact_OpensIt(t *testing.T) {
	session := newFakeSession()
	session.artifactExists = true
	opener := &fakeOpener{}
	m := newApp(session, opener, nil)

	m1, cmd := press(t, m, "p")
	if cmd == nil {
		t.Fatal("expected playback command")
	}
	m2, _ := m1.Update(cmd())

	if opener.opened != "/opt/songs/output.mid" {
		t.Errorf("expected artifact to be opened, got %q", opener.opened)
	}
	if !strings.Contains(m2.(tui.AppModel).View(), "Playing output.mid") {
		t.Errorf("expected playing notice, got:\n%s", m2.(tui.AppModel).View())
	}
}

func TestApp_PlaybackError_IsReported(t *testing.T) {
	m := newApp(newFakeSession(), &fakeOpener{}, nil)

	m1, _ := m.Update(tui.PlaybackMsg{Err: errors.New("xdg-open: not found")})
	view := m1.(tui.AppModel).View()

	if !strings.Contains(view, "Playback error: xdg-open: not found") {
		t.Errorf("expected playback error, got:\n%s", view)
	}
}

func TestApp_SampleKey_LoadsSample(t *testing.T) {
	m := newApp(newFakeSession(), &fakeOpener{}, nil)
	m0, _ := m.Update(tui.SourceLoadedMsg{Content: "song Other {}"})

	m1, _ := press(t, m0, "s")
	view := m1.View()

	if !strings.Contains(view, "Sample loaded") || !strings.Contains(view, "MyFirstSong") {
		t.Errorf("expected sample to be loaded, got:\n%s", view)
	}
}

func TestApp_ClearKey_ResetsEverything(t *testing.T) {
	session := newFakeSession()
	m := newApp(session, &fakeOpener{}, nil)
	m0, _ := m.Update(tui.SourceLoadedMsg{Content: "song Other {}"})
	m1, _ := m0.Update(tui.CompileFinishedMsg{Result: domain.CompileResult{Status: domain.Failed(), Output: "boom\n"}})

	m2, _ := press(t, m1, "x")
	// The session publishes Ready after Reset; the notice must survive it.
	m3, _ := m2.Update(tui.StatusChangedMsg{Status: domain.Ready()})
	view := m3.(tui.AppModel).View()

	if !session.resetCalled {
		t.Error("expected session reset")
	}
	if strings.Contains(view, "Other") || strings.Contains(view, "boom") {
		t.Errorf("expected source and output to be cleared, got:\n%s", view)
	}
	if !strings.Contains(view, "Cleared") {
		t.Errorf("expected Cleared notice, got:\n%s", view)
	}
}

func TestApp_OutputScroll_MovesOffset(t *testing.T) {
	m := newApp(newFakeSession(), &fakeOpener{}, nil)
	var lines []string
	for i := 1; i <= 40; i++ {
		lines = append(lines, "diag-"+strings.Repeat("x", i%3)+"-"+string(rune('A'+i%26)))
	}
	m0, _ := m.Update(tui.CompileFinishedMsg{Result: domain.CompileResult{
		Status: domain.Failed(),
		Output: "first-line\n" + strings.Join(lines, "\n"),
	}})

	m1, _ := press(t, m0, "down")
	if strings.Contains(m1.View(), "first-line") {
		t.Errorf("expected first line to scroll out of view, got:\n%s", m1.View())
	}
	m2, _ := press(t, m1, "g")
	if !strings.Contains(m2.View(), "first-line") {
		t.Errorf("expected g to jump back to the top, got:\n%s", m2.View())
	}
}

func TestApp_HistoryView_ShowsRecordOutput(t *testing.T) {
	history := &fakeHistory{records: []domain.CompileRecord{
		{ID: "0f8e1c2a-aaaa", Status: domain.StatusFailed, ExitCode: 1, Output: "old failure\n", StartedAt: time.Now().Add(-time.Hour)},
		{ID: "9b7d3e4f-bbbb", Status: domain.StatusSucceeded, ArtifactPresent: true, Output: "old success\n", StartedAt: time.Now().Add(-2 * time.Hour)},
	}}
	m := newApp(newFakeSession(), &fakeOpener{}, history)

	m1, cmd := press(t, m, "h")
	if cmd == nil {
		t.Fatal("expected history to be reloaded")
	}
	m2, _ := m1.Update(cmd())
	view := m2.(tui.AppModel).View()
	if !strings.Contains(view, "Compile history") || !strings.Contains(view, "0f8e1c2a") {
		t.Fatalf("expected history list, got:\n%s", view)
	}

	m3, _ := press(t, m2, "down")
	m4, _ := press(t, m3, "enter")
	view = m4.View()
	if !strings.Contains(view, "old success") {
		t.Errorf("expected selected record output in console, got:\n%s", view)
	}
	if strings.Contains(view, "Compile history") {
		t.Errorf("expected to return to the main view, got:\n%s", view)
	}
}

func TestApp_QuitKey(t *testing.T) {
	m := newApp(newFakeSession(), &fakeOpener{}, nil)
	_, cmd := press(t, m, "q")
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}
