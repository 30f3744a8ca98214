package status

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chr1sbest/pipegate/internal/runstate"
)

func stateAt(t *testing.T, upTo int) *runstate.State {
	t.Helper()
	st := runstate.New("20260101-000000", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "/tmp/runs/20260101-000000")
	for _, step := range runstate.Steps[:upTo] {
		if err := st.Transition(step, runstate.StatusRunning); err != nil {
			t.Fatalf("transition: %v", err)
		}
		if err := st.Transition(step, runstate.StatusOK); err != nil {
			t.Fatalf("transition: %v", err)
		}
	}
	return st
}

func TestPhaseOf(t *testing.T) {
	st := stateAt(t, 2)
	if got := PhaseOf(st); got != PhaseRunning {
		t.Fatalf("PhaseOf = %s, want running", got)
	}

	blocked := stateAt(t, 4)
	_ = blocked.Transition(runstate.StepDefineProduct, runstate.StatusBlocked)
	if got := PhaseOf(blocked); got != PhaseBlocked {
		t.Fatalf("PhaseOf = %s, want blocked", got)
	}

	failed := stateAt(t, 1)
	_ = failed.Transition(runstate.StepDeriveCandidates, runstate.StatusRunning)
	_ = failed.Transition(runstate.StepDeriveCandidates, runstate.StatusFailed)
	failed.AppendError("extract: no candidate problems")
	if got := PhaseOf(failed); got != PhaseFailed {
		t.Fatalf("PhaseOf = %s, want failed", got)
	}
	if got := Summary(failed); got != "run 20260101-000000 failed at derive_candidates: extract: no candidate problems" {
		t.Fatalf("Summary = %q", got)
	}

	killed := stateAt(t, 3)
	killed.Killed = true
	if got := PhaseOf(killed); got != PhaseKilled {
		t.Fatalf("PhaseOf = %s, want killed", got)
	}

	done := stateAt(t, 6)
	now := time.Now()
	done.EndedAt = &now
	done.SetPath(runstate.PathBundleZip, "outputs/bundles/p.zip")
	if got := Summary(done); got != "run 20260101-000000 completed, bundle at outputs/bundles/p.zip" {
		t.Fatalf("Summary = %q", got)
	}
}

func TestRenderListsEveryStep(t *testing.T) {
	st := stateAt(t, 4)
	st.SelectProduct("prod-1")
	st.ApprovalRequired = true
	_ = st.Transition(runstate.StepDefineProduct, runstate.StatusBlocked)
	_ = st.Transition(runstate.StepGenerateFiles, runstate.StatusSkipped)

	out := Render(st)
	for _, want := range []string{"20260101-000000", "blocked", "prod-1", "approved", "skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	for _, step := range runstate.Steps {
		if !strings.Contains(out, string(step)) {
			t.Errorf("render missing step %s", step)
		}
	}
}

func TestWriterStepAndFailed(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithWriter(&buf)
	w.Step(2, 6, "derive_candidates")
	if !strings.Contains(buf.String(), "2/6") || !strings.Contains(buf.String(), "derive_candidates") {
		t.Fatalf("unexpected step output %q", buf.String())
	}

	w.Failed("derive_candidates", errors.New("nothing extracted"))
	out := buf.String()
	if !strings.Contains(out, moveUp+clearLine) {
		t.Fatalf("expected previous line to be cleared: %q", out)
	}
	if !strings.Contains(out, "derive_candidates failed") || !strings.Contains(out, "nothing extracted") {
		t.Fatalf("unexpected failure output %q", out)
	}
	if w.linesWritten != 0 {
		t.Fatalf("failure lines should persist, linesWritten=%d", w.linesWritten)
	}
}
