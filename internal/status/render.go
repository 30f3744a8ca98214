// Package status renders run progress and persisted run state for the terminal.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/chr1sbest/pipegate/internal/runstate"
)

// Phase is the one-word summary of where a run stands.
type Phase string

const (
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseBlocked   Phase = "blocked"
	PhaseKilled    Phase = "killed"
	PhaseFailed    Phase = "failed"
)

// PhaseOf derives the run phase from persisted state.
func PhaseOf(st *runstate.State) Phase {
	switch {
	case st.Killed:
		return PhaseKilled
	case st.Ended():
		return PhaseCompleted
	}
	for _, step := range runstate.Steps {
		switch st.StepStatus.Get(step) {
		case runstate.StatusFailed:
			return PhaseFailed
		case runstate.StatusBlocked:
			return PhaseBlocked
		}
	}
	return PhaseRunning
}

var statusColors = map[runstate.StepStatus]lipgloss.Color{
	runstate.StatusPending: lipgloss.Color("#777777"),
	runstate.StatusRunning: lipgloss.Color("#5B8DEF"),
	runstate.StatusOK:      lipgloss.Color("#5FD787"),
	runstate.StatusFailed:  lipgloss.Color("#FF6B6B"),
	runstate.StatusSkipped: lipgloss.Color("#AAAAAA"),
	runstate.StatusBlocked: lipgloss.Color("#FFD75F"),
}

var statusIcons = map[runstate.StepStatus]string{
	runstate.StatusPending: "·",
	runstate.StatusRunning: "▶",
	runstate.StatusOK:      "✓",
	runstate.StatusFailed:  "✗",
	runstate.StatusSkipped: "↷",
	runstate.StatusBlocked: "⏸",
}

var phaseColors = map[Phase]lipgloss.Color{
	PhaseRunning:   lipgloss.Color("#5B8DEF"),
	PhaseCompleted: lipgloss.Color("#5FD787"),
	PhaseBlocked:   lipgloss.Color("#FFD75F"),
	PhaseKilled:    lipgloss.Color("#FF6B6B"),
	PhaseFailed:    lipgloss.Color("#FF6B6B"),
}

// Render draws a run's state as a boxed step table.
func Render(st *runstate.State) string {
	phase := PhaseOf(st)
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(phaseColors[phase]).
		Render(fmt.Sprintf("run %s · %s", st.RunID, phase))

	label := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	rows := []string{head, ""}
	for _, step := range runstate.Steps {
		s := st.StepStatus.Get(step)
		style := lipgloss.NewStyle().Foreground(statusColors[s])
		name := lipgloss.NewStyle().Width(18).Render(string(step))
		rows = append(rows, fmt.Sprintf("%s %s %s", style.Render(statusIcons[s]), name, style.Render(string(s))))
	}

	rows = append(rows, "")
	rows = append(rows, label.Render("started  ")+st.StartedAt.Format(time.RFC3339))
	if st.EndedAt != nil {
		rows = append(rows, label.Render("ended    ")+st.EndedAt.Format(time.RFC3339))
	}
	if st.SelectedProblemID != nil {
		rows = append(rows, label.Render("problem  ")+*st.SelectedProblemID)
	}
	if st.SelectedProductID != nil {
		rows = append(rows, label.Render("product  ")+*st.SelectedProductID)
	}
	if st.ApprovalRequired {
		rows = append(rows, label.Render("approved ")+fmt.Sprintf("%t", st.Approved))
	}
	if zip := st.Paths[runstate.PathBundleZip]; zip != "" {
		rows = append(rows, label.Render("bundle   ")+zip)
	}
	if len(st.Errors) > 0 {
		rows = append(rows, "", lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("errors"))
		for _, e := range st.Errors {
			rows = append(rows, "  "+e)
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// Summary is the single line printed when a run stops.
func Summary(st *runstate.State) string {
	phase := PhaseOf(st)
	var b strings.Builder
	fmt.Fprintf(&b, "run %s %s", st.RunID, phase)
	switch phase {
	case PhaseFailed:
		fmt.Fprintf(&b, " at %s", st.CurrentStep)
		if n := len(st.Errors); n > 0 {
			fmt.Fprintf(&b, ": %s", st.Errors[n-1])
		}
	case PhaseBlocked:
		b.WriteString(": approval required, run `pipegate approve " + st.RunID + "` then `pipegate run`")
	case PhaseKilled:
		if st.CurrentStep != "" {
			fmt.Fprintf(&b, " at %s", st.CurrentStep)
		}
	case PhaseCompleted:
		if zip := st.Paths[runstate.PathBundleZip]; zip != "" {
			fmt.Fprintf(&b, ", bundle at %s", zip)
		}
	}
	return b.String()
}
