package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/forgo/planner/api/internal/model"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	for _, path := range [][]string{
		{"listen-progress"},
		{"evaluate"},
		{"jobs", "list"},
		{"progress"},
		{"watch"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("find %v: %v", path, err)
		}
		if cmd.Name() != path[len(path)-1] {
			t.Fatalf("find %v returned %q", path, cmd.Name())
		}
	}

	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatal("expected persistent --config flag")
	}
}

func TestCommandFlags(t *testing.T) {
	root := newRootCommand()

	listen, _, _ := root.Find([]string{"listen-progress"})
	if listen.Flags().Lookup("verbose") == nil {
		t.Error("listen-progress should accept --verbose")
	}

	evaluate, _, _ := root.Find([]string{"evaluate"})
	if evaluate.Flags().Lookup("trigger") == nil {
		t.Error("evaluate should accept --trigger")
	}

	list, _, _ := root.Find([]string{"jobs", "list"})
	status := list.Flags().Lookup("status")
	if status == nil || status.DefValue != "running" {
		t.Errorf("jobs list --status should default to running, got %+v", status)
	}

	watchCmd, _, _ := root.Find([]string{"watch"})
	if watchCmd.Flags().Lookup("server") == nil {
		t.Error("watch should accept --server")
	}
}

func TestEvaluateRequiresRecruitmentID(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"evaluate"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestPrintEvaluation(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	printEvaluation(&buf, &model.RecruitmentEvaluation{RecruitmentID: "recruitment:1", ShouldTrigger: true, EvaluatedAt: at})
	if got := buf.String(); got != "recruitment:1: ready (evaluated 2026-03-01T12:00:00Z)\n" {
		t.Fatalf("unexpected output %q", got)
	}

	buf.Reset()
	printEvaluation(&buf, &model.RecruitmentEvaluation{RecruitmentID: "recruitment:1", EvaluatedAt: at})
	if !strings.Contains(buf.String(), "not ready") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestPrintTriggerResult(t *testing.T) {
	var buf bytes.Buffer

	printTriggerResult(&buf, "recruitment:1", &model.TriggerResult{Triggered: false})
	if got := buf.String(); got != "recruitment:1: not triggered\n" {
		t.Fatalf("unexpected output %q", got)
	}

	buf.Reset()
	printTriggerResult(&buf, "recruitment:1", &model.TriggerResult{
		Triggered: true,
		Job:       &model.Job{ID: "job:9", Status: model.JobStatusQueued},
	})
	if got := buf.String(); got != "recruitment:1: triggered job job:9 (queued)\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestWriteJobsTable(t *testing.T) {
	var buf bytes.Buffer
	writeJobsTable(&buf, nil)
	if buf.String() != "No jobs found\n" {
		t.Fatalf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	rec := "recruitment:1"
	writeJobsTable(&buf, []*model.Job{
		{ID: "job:1", Status: model.JobStatusRunning, CurrentIteration: 12, RecruitmentID: &rec},
		{ID: "job:2", Status: model.JobStatusQueued},
	})
	out := buf.String()
	for _, want := range []string{"ID", "Status", "job:1", "running", "12", "recruitment:1", "job:2", "queued"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteProgressTable(t *testing.T) {
	var buf bytes.Buffer
	writeProgressTable(&buf, nil)
	if buf.String() != "No progress recorded\n" {
		t.Fatalf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	writeProgressTable(&buf, []*model.ProgressRecord{
		{ID: "progress:a", Iteration: 1, Timestamp: time.Now()},
		{ID: "progress:b", Iteration: 2, Timestamp: time.Now()},
	})
	out := buf.String()
	for _, want := range []string{"Iteration", "progress:a", "progress:b"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTable(t *testing.T) {
	if got := renderTable(nil, nil, nil); got != "" {
		t.Fatalf("expected empty render for no headers, got %q", got)
	}

	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []columnAlignment{alignRight})
	lines := strings.Split(out, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines (border, header, rule, 2 rows, border), got %d:\n%s", len(lines), out)
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(time.Time{}); got != "-" {
		t.Fatalf("expected dash for zero time, got %q", got)
	}
}
