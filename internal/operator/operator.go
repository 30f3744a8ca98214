// Package operator holds the human-facing controls over runs: inspect a run,
// approve it, and engage or release the kill switch.
package operator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chr1sbest/pipegate/internal/approval"
	"github.com/chr1sbest/pipegate/internal/killswitch"
	"github.com/chr1sbest/pipegate/internal/runstate"
)

// LatestLinkName matches the pointer the orchestrator maintains.
const LatestLinkName = "latest"

var (
	// ErrNoRuns is returned when no run folder holds a run state.
	ErrNoRuns = errors.New("no runs found")
	// ErrNoPendingApproval is returned when no run is blocked at the approval gate.
	ErrNoPendingApproval = errors.New("no run is awaiting approval")
	// ErrNotAwaitingApproval is returned when approving a run that did not
	// stop at the approval gate.
	ErrNotAwaitingApproval = errors.New("run is not awaiting approval")
)

// Operator works against one runs directory.
type Operator struct {
	runsDir string
	store   *runstate.Store
	gate    *approval.Gate
	kill    *killswitch.Switch
}

func New(runsDir string) *Operator {
	return &Operator{
		runsDir: runsDir,
		store:   runstate.NewStore(),
		gate:    approval.NewGate(),
		kill:    killswitch.ForRunsDir(runsDir),
	}
}

// RunsDir returns the directory the operator works against.
func (o *Operator) RunsDir() string { return o.runsDir }

// Switch exposes the kill switch for status queries.
func (o *Operator) Switch() *killswitch.Switch { return o.kill }

// folder validates runID and returns its folder.
func (o *Operator) folder(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	folder := filepath.Join(o.runsDir, runID)
	if _, err := os.Stat(runstate.StatePath(folder)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("run %s not found", runID)
		}
		return "", fmt.Errorf("stat run %s: %w", runID, err)
	}
	return folder, nil
}

// Show loads the state of runID. An empty id means the current run.
func (o *Operator) Show(runID string) (*runstate.State, error) {
	if runID == "" {
		id, err := o.CurrentRun()
		if err != nil {
			return nil, err
		}
		runID = id
	}
	folder, err := o.folder(runID)
	if err != nil {
		return nil, err
	}
	return o.store.Load(runstate.StatePath(folder))
}

// AwaitingApproval reports whether st halted at the approval gate without a
// recorded approval. Only such runs can pass an approval on to the next run.
func AwaitingApproval(st *runstate.State) bool {
	return st.ApprovalRequired && !st.Approved && st.StepStatus.DefineProduct == runstate.StatusBlocked
}

// Approve writes an approval record for runID. An empty note is stored as
// null. Runs that are not blocked at the approval gate are rejected, since
// the next run would never pick their approval up.
func (o *Operator) Approve(runID, by, note string) (*approval.Record, error) {
	if strings.TrimSpace(by) == "" {
		return nil, errors.New("approver is required")
	}
	folder, err := o.folder(runID)
	if err != nil {
		return nil, err
	}
	st, err := o.store.Load(runstate.StatePath(folder))
	if err != nil {
		return nil, err
	}
	if !AwaitingApproval(st) {
		return nil, fmt.Errorf("%w: run %s is %s", ErrNotAwaitingApproval, runID, describe(st))
	}
	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	return o.gate.WriteApproval(folder, runID, by, notePtr)
}

// Approval reads the approval record of runID, if any.
func (o *Operator) Approval(runID string) (*approval.Record, error) {
	folder, err := o.folder(runID)
	if err != nil {
		return nil, err
	}
	return o.gate.Read(folder)
}

// Kill engages the kill switch. Running and future runs halt at their next
// step boundary until Unkill.
func (o *Operator) Kill(reason string) error {
	return o.kill.Engage(reason)
}

func (o *Operator) Unkill() error {
	return o.kill.Disengage()
}

func (o *Operator) Killed() bool {
	return o.kill.IsKilled()
}

// ListRuns returns run ids newest first. Folders without a run state are
// ignored.
func (o *Operator) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(o.runsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(runstate.StatePath(filepath.Join(o.runsDir, e.Name()))); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// CurrentRun is the newest run with a run state, finished or not.
func (o *Operator) CurrentRun() (string, error) {
	ids, err := o.ListRuns()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrNoRuns
	}
	return ids[0], nil
}

// PendingApproval is the newest run blocked at the approval gate. Newer runs
// that failed or were killed earlier in the sequence are skipped.
func (o *Operator) PendingApproval() (string, error) {
	ids, err := o.ListRuns()
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		st, err := o.store.Load(runstate.StatePath(filepath.Join(o.runsDir, id)))
		if err != nil {
			continue
		}
		if AwaitingApproval(st) {
			return id, nil
		}
	}
	return "", ErrNoPendingApproval
}

func describe(st *runstate.State) string {
	switch {
	case st.Killed:
		return "killed"
	case st.Approved:
		return "already approved"
	case st.Ended():
		return "completed"
	}
	for _, step := range runstate.Steps {
		if st.StepStatus.Get(step) == runstate.StatusFailed {
			return "failed at " + string(step)
		}
	}
	return "not at the approval gate"
}

// Latest resolves runs/latest to the last successful run id.
func (o *Operator) Latest() (string, error) {
	target, err := os.Readlink(filepath.Join(o.runsDir, LatestLinkName))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("read latest: %w", err)
	}
	return filepath.Base(target), nil
}
