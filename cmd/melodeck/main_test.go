package main

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/waabox/melodeck/internal/domain"
)

type stubSession struct {
	domain.CompileSession
	result domain.CompileResult
}

func (s stubSession) Compile(_ context.Context, _ string) domain.CompileResult { return s.result }
func (s stubSession) CompilerPath() string                                     { return "/opt/songs/music" }

func TestExitCode(t *testing.T) {
	tests := []struct {
		status domain.CompileStatus
		want   int
	}{
		{domain.Succeeded(true), 0},
		{domain.Succeeded(false), 0},
		{domain.Failed(), 1},
		{domain.PreconditionMissing(), 2},
	}
	for _, tt := range tests {
		if got := exitCode(tt.status); got != tt.want {
			t.Errorf("exitCode(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}
	if exitFor(domain.Succeeded(true)) != nil {
		t.Error("expected no error for a successful compile")
	}
	if err := exitFor(domain.PreconditionMissing()); err != exitError(2) {
		t.Errorf("expected exitError(2), got %v", err)
	}
}

func TestCompileAndPrint_WritesOutputNotesAndStatus(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session := stubSession{result: domain.CompileResult{
		Status:   domain.Failed(),
		ExitCode: 1,
		Output:   "\nline 2: unknown note H4\n",
		Notes:    []string{"Compiler timed out after 5s"},
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
	}}
	var buf bytes.Buffer

	status := compileAndPrint(context.Background(), session, "song {}", &buf)

	if status.Kind != domain.StatusFailed {
		t.Errorf("expected Failed, got %s", status)
	}
	want := "\nline 2: unknown note H4\nCompiler timed out after 5s\nCompilation failed (1.5s)\n"
	if buf.String() != want {
		t.Errorf("unexpected output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestCompileAndPrint_NamesMissingCompiler(t *testing.T) {
	session := stubSession{result: domain.CompileResult{Status: domain.PreconditionMissing()}}
	var buf bytes.Buffer

	compileAndPrint(context.Background(), session, "", &buf)

	if !strings.Contains(buf.String(), "/opt/songs/music not found") {
		t.Errorf("expected compiler path in output, got %q", buf.String())
	}
}

func TestRecompiler_CoalescesRequestsDuringRun(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{}, 4)
	gate := make(chan struct{})

	rc := newRecompiler(func(ctx context.Context) {
		runs.Add(1)
		started <- struct{}{}
		<-gate
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rc.Request()
	go rc.Loop(ctx)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started")
	}
	for i := 0; i < 5; i++ {
		rc.Request()
	}
	close(gate)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up run never started")
	}
	time.Sleep(100 * time.Millisecond)

	if got := runs.Load(); got != 2 {
		t.Errorf("expected 2 runs, got %d", got)
	}
}

func TestWriteHistoryTable(t *testing.T) {
	records := []domain.CompileRecord{{
		ID:              "5e2f0c3b-9d1a-4b7e-8c6f-1a2b3c4d5e6f",
		Status:          domain.StatusSucceeded,
		ArtifactPresent: true,
		SourceBytes:     1500,
		StartedAt:       time.Now().Add(-3 * time.Hour),
		FinishedAt:      time.Now().Add(-3 * time.Hour).Add(250 * time.Millisecond),
	}, {
		ID:       "a1",
		Status:   domain.StatusPreconditionMissing,
		ExitCode: domain.NoExitCode,
	}}
	var buf bytes.Buffer

	if err := writeHistoryTable(&buf, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"ID", "STATUS", "5e2f0c3b", "succeeded", "1.5 kB", "3 hours ago", "250ms", "precondition_missing", "--"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "5e2f0c3b-9d1a") {
		t.Errorf("expected shortened id, got:\n%s", out)
	}
}

func TestWriteHistoryTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeHistoryTable(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "No compiles recorded yet.\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestWriteHistoryYAML(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []domain.CompileRecord{{
		ID:         "5e2f0c3b",
		Status:     domain.StatusFailed,
		ExitCode:   3,
		Output:     "bad tempo\n",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}}
	var buf bytes.Buffer

	if err := writeHistoryYAML(&buf, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"- id: 5e2f0c3b", "status: failed", "exit_code: 3", "artifact_present: false", "started_at: 2026-03-01T10:00:00Z", "output: |"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in yaml, got:\n%s", want, out)
		}
	}
}
