package runstate

import (
	"errors"
	"fmt"
	"time"
)

// Step is one of the six ordered pipeline stages.
type Step string

const (
	StepPullRaw          Step = "pull_raw"
	StepDeriveCandidates Step = "derive_candidates"
	StepRankProblems     Step = "rank_problems"
	StepDefineProduct    Step = "define_product"
	StepGenerateFiles    Step = "generate_files"
	StepPackageBundle    Step = "package_bundle"
)

// Steps lists every step in execution order.
var Steps = []Step{
	StepPullRaw,
	StepDeriveCandidates,
	StepRankProblems,
	StepDefineProduct,
	StepGenerateFiles,
	StepPackageBundle,
}

// Valid reports whether s names a defined step.
func (s Step) Valid() bool {
	for _, known := range Steps {
		if s == known {
			return true
		}
	}
	return false
}

// StepStatus is the lifecycle status of a single step.
type StepStatus string

const (
	StatusPending StepStatus = "pending"
	StatusRunning StepStatus = "running"
	StatusOK      StepStatus = "ok"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
	StatusBlocked StepStatus = "blocked"
)

// StepStatuses holds exactly one status per step. Fields are declared in
// JSON key order so encoding is sorted.
type StepStatuses struct {
	DefineProduct    StepStatus `json:"define_product"`
	DeriveCandidates StepStatus `json:"derive_candidates"`
	GenerateFiles    StepStatus `json:"generate_files"`
	PackageBundle    StepStatus `json:"package_bundle"`
	PullRaw          StepStatus `json:"pull_raw"`
	RankProblems     StepStatus `json:"rank_problems"`
}

// AllPending returns a StepStatuses with every step pending.
func AllPending() StepStatuses {
	return StepStatuses{
		DefineProduct:    StatusPending,
		DeriveCandidates: StatusPending,
		GenerateFiles:    StatusPending,
		PackageBundle:    StatusPending,
		PullRaw:          StatusPending,
		RankProblems:     StatusPending,
	}
}

func (s *StepStatuses) field(step Step) *StepStatus {
	switch step {
	case StepPullRaw:
		return &s.PullRaw
	case StepDeriveCandidates:
		return &s.DeriveCandidates
	case StepRankProblems:
		return &s.RankProblems
	case StepDefineProduct:
		return &s.DefineProduct
	case StepGenerateFiles:
		return &s.GenerateFiles
	case StepPackageBundle:
		return &s.PackageBundle
	}
	return nil
}

// Get returns the status of step, or "" for an unknown step.
func (s StepStatuses) Get(step Step) StepStatus {
	if f := s.field(step); f != nil {
		return *f
	}
	return ""
}

// Path keys recorded in State.Paths.
const (
	PathRunFolder     = "run_folder"
	PathStateFile     = "state_file"
	PathRawSnapshot   = "raw_snapshot"
	PathBundleStaging = "bundle_staging"
	PathBundleDir     = "bundle_dir"
	PathBundleZip     = "bundle_zip"
	PathPublishedURL  = "published_url"
)

// State is the durable record of one run. Fields are declared in JSON key
// order so the persisted file has sorted keys.
type State struct {
	ApprovalRequired  bool              `json:"approval_required"`
	Approved          bool              `json:"approved"`
	CurrentStep       Step              `json:"current_step"`
	EndedAt           *time.Time        `json:"ended_at"`
	Errors            []string          `json:"errors"`
	Killed            bool              `json:"killed"`
	Paths             map[string]string `json:"paths"`
	RunID             string            `json:"run_id"`
	SelectedProblemID *string           `json:"selected_problem_id"`
	SelectedProductID *string           `json:"selected_product_id"`
	StartedAt         time.Time         `json:"started_at"`
	StepStatus        StepStatuses      `json:"step_status"`
}

// New creates the initial state for a run rooted at runFolder.
func New(runID string, startedAt time.Time, runFolder string) *State {
	return &State{
		CurrentStep: StepPullRaw,
		Errors:      []string{},
		Paths: map[string]string{
			PathRunFolder: runFolder,
			PathStateFile: StatePath(runFolder),
		},
		RunID:      runID,
		StartedAt:  startedAt.UTC(),
		StepStatus: AllPending(),
	}
}

// ErrIllegalTransition is returned for a status change the lifecycle forbids.
var ErrIllegalTransition = errors.New("illegal step transition")

// CanTransition reports whether step may move from one status to another.
// Steps advance pending→running→{ok|failed}. Only define_product may become
// blocked, and only the steps after the approval gate may be skipped.
func CanTransition(step Step, from, to StepStatus) bool {
	switch {
	case from == StatusPending && to == StatusRunning:
		return true
	case from == StatusRunning && (to == StatusOK || to == StatusFailed):
		return true
	case from == StatusOK && to == StatusBlocked:
		return step == StepDefineProduct
	case from == StatusPending && to == StatusSkipped:
		return step == StepGenerateFiles || step == StepPackageBundle
	}
	return false
}

// Transition moves step to status `to`, enforcing the step lifecycle.
// Entering running also makes step the current step.
func (s *State) Transition(step Step, to StepStatus) error {
	f := s.StepStatus.field(step)
	if f == nil {
		return fmt.Errorf("%w: unknown step %q", ErrIllegalTransition, step)
	}
	if !CanTransition(step, *f, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, step, *f, to)
	}
	*f = to
	if to == StatusRunning {
		s.CurrentStep = step
	}
	return nil
}

// AppendError records a failure message. The list is append-only.
func (s *State) AppendError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// SetPath records a logical path.
func (s *State) SetPath(key, path string) {
	if s.Paths == nil {
		s.Paths = map[string]string{}
	}
	s.Paths[key] = path
}

// RunFolder returns the run's folder as recorded in Paths.
func (s *State) RunFolder() string {
	return s.Paths[PathRunFolder]
}

// Ended reports whether the run completed successfully.
func (s *State) Ended() bool {
	return s.EndedAt != nil
}

// Terminal reports whether the run has stopped, either by completing or by
// halting at a gate, kill or failure.
func (s *State) Terminal() bool {
	if s.Ended() || s.Killed {
		return true
	}
	for _, step := range Steps {
		switch s.StepStatus.Get(step) {
		case StatusFailed, StatusBlocked:
			return true
		}
	}
	return false
}

func strPtr(v string) *string { return &v }

// SelectProblem records the problem chosen by ranking.
func (s *State) SelectProblem(id string) { s.SelectedProblemID = strPtr(id) }

// SelectProduct records the product produced by definition.
func (s *State) SelectProduct(id string) { s.SelectedProductID = strPtr(id) }

// ProductID returns the selected product id, or "".
func (s *State) ProductID() string {
	if s.SelectedProductID == nil {
		return ""
	}
	return *s.SelectedProductID
}
