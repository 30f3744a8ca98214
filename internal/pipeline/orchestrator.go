// Package pipeline runs the six-step product pipeline with persisted state,
// a kill switch checked at every step boundary, and an approval gate before
// any files are generated.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chr1sbest/pipegate/internal/approval"
	"github.com/chr1sbest/pipegate/internal/killswitch"
	"github.com/chr1sbest/pipegate/internal/logger"
	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/runstate"
	"github.com/chr1sbest/pipegate/internal/sources"
)

// LatestLinkName is the pointer to the last successful run inside the runs dir.
const LatestLinkName = "latest"

const (
	rawSnapshotName   = "raw.jsonl"
	bundleStagingName = "bundle_staging"
)

type Fetcher interface {
	Fetch(ctx context.Context) ([]model.RawItem, error)
}

type Extractor interface {
	Extract(items []model.RawItem) ([]model.Problem, error)
}

type Ranker interface {
	Rank(problems []model.Problem) (model.Problem, error)
}

type Definer interface {
	Define(p model.Problem) (model.ProductSpec, error)
}

type Generator interface {
	Generate(spec model.ProductSpec, dir string) ([]model.Artifact, error)
}

type Packager interface {
	Package(ctx context.Context, spec model.ProductSpec, artifacts []model.Artifact, staging string) (model.Bundle, error)
}

// Collaborators perform the actual work of each step.
type Collaborators struct {
	Fetcher   Fetcher
	Extractor Extractor
	Ranker    Ranker
	Definer   Definer
	Generator Generator
	Packager  Packager
}

// Progress receives step progress for display. *status.Writer satisfies it.
type Progress interface {
	Step(n, total int, step string)
	Failed(step string, err error)
	Clear()
}

type noopProgress struct{}

func (noopProgress) Step(int, int, string) {}
func (noopProgress) Failed(string, error)  {}
func (noopProgress) Clear()                {}

// Result describes a finished (or halted) run.
type Result struct {
	RunID     string
	RunFolder string
	State     *runstate.State
	Outcome   Outcome
	Bundle    *model.Bundle
}

// ExitCode maps the run outcome to the process exit code.
func (r Result) ExitCode() int {
	return r.Outcome.ExitCode()
}

// Orchestrator drives one run through every step.
type Orchestrator struct {
	runsDir      string
	logsDir      string
	collab       Collaborators
	store        *runstate.Store
	kill         *killswitch.Switch
	gate         *approval.Gate
	carryForward bool
	watchKill    bool
	clock        func() time.Time
	logger       logger.Logger
	logLevel     logger.Level
	progress     Progress
	postCommit   []func(*runstate.State) error
}

type Option func(*Orchestrator)

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = log }
}

// WithRunLogs writes each run's log to <dir>/<run_id>.log in addition to the base logger.
func WithRunLogs(dir string, level logger.Level) Option {
	return func(o *Orchestrator) {
		o.logsDir = dir
		o.logLevel = level
	}
}

func WithProgress(p Progress) Option {
	return func(o *Orchestrator) { o.progress = p }
}

// WithCarryForward toggles reuse of an approval granted to an earlier
// blocked run of the same product.
func WithCarryForward(enabled bool) Option {
	return func(o *Orchestrator) { o.carryForward = enabled }
}

// WithKillWatch logs as soon as the kill sentinel appears instead of only at
// the next boundary. It never interrupts a running step.
func WithKillWatch(enabled bool) Option {
	return func(o *Orchestrator) { o.watchKill = enabled }
}

func WithGate(g *approval.Gate) Option {
	return func(o *Orchestrator) { o.gate = g }
}

// New creates an orchestrator whose runs, kill sentinel and latest pointer
// live under runsDir.
func New(runsDir string, collab Collaborators, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runsDir:      runsDir,
		collab:       collab,
		store:        runstate.NewStore(),
		kill:         killswitch.ForRunsDir(runsDir),
		gate:         approval.NewGate(),
		carryForward: true,
		clock:        time.Now,
		logger:       logger.NewNoopLogger(),
		logLevel:     logger.LevelInfo,
		progress:     noopProgress{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.postCommit = append(o.postCommit, o.updateLatest)
	return o
}

// run carries the per-run values threaded through the steps.
type run struct {
	st      *runstate.State
	stepper *Stepper
	log     logger.Logger
	stepNum int

	items     []model.RawItem
	problems  []model.Problem
	top       model.Problem
	spec      model.ProductSpec
	artifacts []model.Artifact
	bundle    *model.Bundle
}

// Run executes one full pass. The error is non-nil only when the run could
// not be set up at all; every other stop is reported through Result.Outcome.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	now := o.clock().UTC()
	runID := runstate.NewRunID(o.runsDir, now)
	folder, err := o.store.EnsureRunFolder(runID, o.runsDir)
	if err != nil {
		return Result{}, fmt.Errorf("create run folder: %w", err)
	}

	log, closeLog := o.runLogger(runID)
	defer closeLog()

	st := runstate.New(runID, now, folder)
	st.SetPath(runstate.PathRawSnapshot, filepath.Join(folder, rawSnapshotName))
	st.SetPath(runstate.PathBundleStaging, filepath.Join(folder, bundleStagingName))
	if err := o.store.Save(st, runstate.StatePath(folder)); err != nil {
		return Result{}, fmt.Errorf("write initial run state: %w", err)
	}
	log.Info("Run started", logger.F("folder", folder))

	if o.watchKill {
		watchCtx, cancel := context.WithCancel(ctx)
		done := o.logKillRequests(watchCtx, log)
		// Runs before closeLog so the watcher never writes to a closed log.
		defer func() {
			cancel()
			<-done
		}()
	}

	r := &run{st: st, stepper: NewStepper(o.store, o.kill, log), log: log}
	out := o.execute(ctx, r)
	o.progress.Clear()

	switch out.Kind {
	case OutcomeOK:
		log.Info("Run complete", logger.F("bundle", st.Paths[runstate.PathBundleZip]))
		for _, fn := range o.postCommit {
			if err := fn(st); err != nil {
				log.Warn("Post-commit action failed", logger.F("error", err))
			}
		}
	case OutcomeKilled:
		st.Killed = true
		if err := o.store.Save(st, runstate.StatePath(folder)); err != nil {
			log.Error("Failed to persist kill", logger.F("error", err))
		}
		log.Warn("Run killed", logger.F("step", out.Step), logger.F("reason", out.Err))
	case OutcomeBlocked:
		log.Info("Run blocked awaiting approval", logger.F("product_id", st.ProductID()))
	case OutcomeFailed:
		o.progress.Failed(string(out.Step), out.Err)
		log.Error("Run failed", logger.F("step", out.Step), logger.F("error", out.Err))
	}

	return Result{RunID: runID, RunFolder: folder, State: st, Outcome: out, Bundle: r.bundle}, nil
}

func (o *Orchestrator) step(ctx context.Context, r *run, step runstate.Step, delegate Delegate) Outcome {
	r.stepNum++
	o.progress.Step(r.stepNum, len(runstate.Steps), string(step))
	return r.stepper.Run(ctx, r.st, step, delegate)
}

func (o *Orchestrator) execute(ctx context.Context, r *run) Outcome {
	st := r.st
	c := o.collab

	if out := o.step(ctx, r, runstate.StepPullRaw, func(ctx context.Context) error {
		items, err := c.Fetcher.Fetch(ctx)
		if err != nil {
			return err
		}
		r.items = items
		r.log.Info("Fetched raw items", logger.F("count", len(items)))
		return sources.WriteSnapshot(st.Paths[runstate.PathRawSnapshot], items)
	}); !out.IsOK() {
		return out
	}

	if out := o.step(ctx, r, runstate.StepDeriveCandidates, func(context.Context) error {
		problems, err := c.Extractor.Extract(r.items)
		if err != nil {
			return err
		}
		r.problems = problems
		r.log.Info("Extracted problems", logger.F("count", len(problems)))
		return nil
	}); !out.IsOK() {
		return out
	}

	if out := o.step(ctx, r, runstate.StepRankProblems, func(context.Context) error {
		top, err := c.Ranker.Rank(r.problems)
		if err != nil {
			return err
		}
		r.top = top
		st.SelectProblem(top.ProblemID)
		r.log.Info("Selected problem", logger.F("problem_id", top.ProblemID), logger.F("score", top.Score))
		return nil
	}); !out.IsOK() {
		return out
	}

	if out := o.step(ctx, r, runstate.StepDefineProduct, func(context.Context) error {
		spec, err := c.Definer.Define(r.top)
		if err != nil {
			return err
		}
		r.spec = spec
		st.SelectProduct(spec.ProductID)
		return nil
	}); !out.IsOK() {
		return out
	}

	if out := o.approvalGate(r); !out.IsOK() {
		return out
	}

	if out := o.step(ctx, r, runstate.StepGenerateFiles, func(context.Context) error {
		artifacts, err := c.Generator.Generate(r.spec, st.Paths[runstate.PathBundleStaging])
		if err != nil {
			return err
		}
		r.artifacts = artifacts
		r.log.Info("Generated files", logger.F("count", len(artifacts)))
		return nil
	}); !out.IsOK() {
		return out
	}

	if out := o.step(ctx, r, runstate.StepPackageBundle, func(ctx context.Context) error {
		bundle, err := c.Packager.Package(ctx, r.spec, r.artifacts, st.Paths[runstate.PathBundleStaging])
		if err != nil {
			return err
		}
		r.bundle = &bundle
		st.SetPath(runstate.PathBundleDir, bundle.Dir)
		st.SetPath(runstate.PathBundleZip, bundle.ZipPath)
		if bundle.PublishedURL != "" {
			st.SetPath(runstate.PathPublishedURL, bundle.PublishedURL)
		}
		return nil
	}); !out.IsOK() {
		return out
	}

	ended := o.clock().UTC()
	st.EndedAt = &ended
	if err := o.store.Save(st, runstate.StatePath(st.RunFolder())); err != nil {
		st.EndedAt = nil
		st.AppendError(fmt.Sprintf("%s: %v", runstate.StepPackageBundle, err))
		return Failed(runstate.StepPackageBundle, err)
	}
	return OK(runstate.StepPackageBundle)
}

// approvalGate runs between define_product and generate_files. Without an
// approval the run is blocked and the remaining steps are skipped.
func (o *Orchestrator) approvalGate(r *run) Outcome {
	st := r.st
	folder := st.RunFolder()
	statePath := runstate.StatePath(folder)
	gateStep := runstate.StepDefineProduct

	st.ApprovalRequired = true
	if err := o.store.Save(st, statePath); err != nil {
		st.AppendError(fmt.Sprintf("approval gate: %v", err))
		return Failed(gateStep, err)
	}

	if o.carryForward {
		carried, err := o.gate.CarryForward(o.runsDir, folder, st.RunID, st.ProductID())
		if err != nil {
			r.log.Warn("Approval carry-forward failed", logger.F("error", err))
		} else if carried {
			r.log.Info("Approval carried forward", logger.F("product_id", st.ProductID()))
		}
	}

	if err := o.gate.RequireApproved(folder); err != nil {
		for _, step := range []struct {
			step runstate.Step
			to   runstate.StepStatus
		}{
			{runstate.StepDefineProduct, runstate.StatusBlocked},
			{runstate.StepGenerateFiles, runstate.StatusSkipped},
			{runstate.StepPackageBundle, runstate.StatusSkipped},
		} {
			if terr := st.Transition(step.step, step.to); terr != nil {
				return Failed(gateStep, terr)
			}
		}
		if serr := o.store.Save(st, statePath); serr != nil {
			st.AppendError(fmt.Sprintf("approval gate: %v", serr))
			return Failed(gateStep, serr)
		}
		return Blocked(gateStep, err)
	}

	st.Approved = true
	if err := o.store.Save(st, statePath); err != nil {
		st.AppendError(fmt.Sprintf("approval gate: %v", err))
		return Failed(gateStep, err)
	}
	r.log.Info("Approval found, continuing")
	return OK(gateStep)
}

// updateLatest points runs/latest at the finished run via a relative symlink,
// swapped in with a rename.
func (o *Orchestrator) updateLatest(st *runstate.State) error {
	link := filepath.Join(o.runsDir, LatestLinkName)
	tmp := filepath.Join(o.runsDir, "."+LatestLinkName+".tmp-"+st.RunID)
	_ = os.Remove(tmp)
	if err := os.Symlink(st.RunID, tmp); err != nil {
		return fmt.Errorf("update latest: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("update latest: %w", err)
	}
	return nil
}

func (o *Orchestrator) runLogger(runID string) (logger.Logger, func()) {
	base := o.logger.WithFields(logger.F("run_id", runID))
	if o.logsDir == "" {
		return base, func() {}
	}
	if err := os.MkdirAll(o.logsDir, 0o755); err != nil {
		base.Warn("Run log unavailable", logger.F("error", err))
		return base, func() {}
	}
	fl, err := logger.NewFileLogger(filepath.Join(o.logsDir, runID+".log"), o.logLevel)
	if err != nil {
		base.Warn("Run log unavailable", logger.F("error", err))
		return base, func() {}
	}
	multi := logger.NewMultiLogger(o.logger, fl).WithFields(logger.F("run_id", runID))
	return multi, func() { _ = fl.Close() }
}

// logKillRequests logs once when the kill switch fires. The returned channel
// closes after the watcher has stopped logging; cancel ctx to stop it.
func (o *Orchestrator) logKillRequests(ctx context.Context, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	fired, err := o.kill.Watch(ctx)
	if err != nil {
		log.Debug("Kill watch unavailable", logger.F("error", err))
		close(done)
		return done
	}
	go func() {
		defer close(done)
		for range fired {
			log.Warn("Kill requested, stopping at next step boundary", logger.F("sentinel", o.kill.Path()))
		}
	}()
	return done
}
