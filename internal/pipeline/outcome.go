package pipeline

import "github.com/chr1sbest/pipegate/internal/runstate"

// OutcomeKind is the tagged result of a step or a whole run.
type OutcomeKind int

const (
	// OutcomeOK means the step finished and the run may continue
	OutcomeOK OutcomeKind = iota

	// OutcomeFailed means the step returned an error; the run stops
	OutcomeFailed

	// OutcomeKilled means the kill sentinel (or an interrupt) was seen at a step boundary
	OutcomeKilled

	// OutcomeBlocked means the run halted at the approval gate
	// This is an expected stop, not an error
	OutcomeBlocked
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	case OutcomeKilled:
		return "killed"
	case OutcomeBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Exit codes reported by `pipegate run`.
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitBlocked = 2
	ExitKilled  = 3
)

// Outcome carries the kind, the step it happened at, and the cause for
// anything other than OutcomeOK.
type Outcome struct {
	Kind OutcomeKind
	Step runstate.Step
	Err  error
}

// OK returns an outcome indicating the step succeeded
func OK(step runstate.Step) Outcome {
	return Outcome{Kind: OutcomeOK, Step: step}
}

// Failed returns an outcome indicating a failure
func Failed(step runstate.Step, err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Step: step, Err: err}
}

// Killed returns an outcome indicating the run must stop now
func Killed(step runstate.Step, err error) Outcome {
	return Outcome{Kind: OutcomeKilled, Step: step, Err: err}
}

// Blocked returns an outcome indicating the run waits for approval
func Blocked(step runstate.Step, err error) Outcome {
	return Outcome{Kind: OutcomeBlocked, Step: step, Err: err}
}

// IsOK returns true if the run may continue
func (o Outcome) IsOK() bool {
	return o.Kind == OutcomeOK
}

// ExitCode maps the outcome to the process exit code.
func (o Outcome) ExitCode() int {
	switch o.Kind {
	case OutcomeOK:
		return ExitOK
	case OutcomeBlocked:
		return ExitBlocked
	case OutcomeKilled:
		return ExitKilled
	default:
		return ExitFailed
	}
}
