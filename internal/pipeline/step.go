package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/chr1sbest/pipegate/internal/logger"
	"github.com/chr1sbest/pipegate/internal/runerr"
	"github.com/chr1sbest/pipegate/internal/runstate"
)

// Persister saves run state. *runstate.Store satisfies it.
type Persister interface {
	Save(st *runstate.State, path string) error
}

// AliveChecker reports a kill. *killswitch.Switch satisfies it.
type AliveChecker interface {
	RequireAlive() error
}

// Delegate is the work a step performs.
type Delegate func(ctx context.Context) error

// Stepper wraps one step's work with kill checks and state persistence.
type Stepper struct {
	store  Persister
	kill   AliveChecker
	logger logger.Logger
}

func NewStepper(store Persister, kill AliveChecker, log logger.Logger) *Stepper {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Stepper{store: store, kill: kill, logger: log}
}

// requireAlive treats a cancelled context like an engaged kill switch.
func (s *Stepper) requireAlive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return runerr.New(runerr.KindKillEngaged, "interrupted", err)
	}
	return s.kill.RequireAlive()
}

func (s *Stepper) persist(st *runstate.State) error {
	return s.store.Save(st, runstate.StatePath(st.RunFolder()))
}

// fail records err against step and persists. A second persist failure is
// only logged; the original cause is what the run reports.
func (s *Stepper) fail(st *runstate.State, step runstate.Step, err error) Outcome {
	if st.StepStatus.Get(step) == runstate.StatusRunning {
		_ = st.Transition(step, runstate.StatusFailed)
	}
	st.AppendError(fmt.Sprintf("%s: %v", step, err))
	if perr := s.persist(st); perr != nil {
		s.logger.Error("Failed to persist failed step", logger.F("step", step), logger.F("error", perr))
	}
	return Failed(step, err)
}

// Run executes delegate as step:
//  1. abort if killed
//  2. mark running and persist
//  3. run the delegate
//  4. on success mark ok, persist, and check the kill switch again
//  5. on failure mark failed, record the error, and persist
func (s *Stepper) Run(ctx context.Context, st *runstate.State, step runstate.Step, delegate Delegate) Outcome {
	if err := s.requireAlive(ctx); err != nil {
		return Killed(step, err)
	}

	if err := st.Transition(step, runstate.StatusRunning); err != nil {
		return s.fail(st, step, runerr.Validation("mark running", err))
	}
	if err := s.persist(st); err != nil {
		return s.fail(st, step, err)
	}

	log := s.logger.WithFields(logger.F("step", step))
	log.Info("Step started")
	start := time.Now()

	if err := delegate(ctx); err != nil {
		log.Error("Step failed", logger.F("error", err), logger.F("kind", runerr.KindOf(err)), logger.F("duration", time.Since(start)))
		return s.fail(st, step, err)
	}

	if err := st.Transition(step, runstate.StatusOK); err != nil {
		return s.fail(st, step, runerr.Validation("mark ok", err))
	}
	if err := s.persist(st); err != nil {
		st.AppendError(fmt.Sprintf("%s: %v", step, err))
		return Failed(step, err)
	}
	log.Info("Step finished", logger.F("duration", time.Since(start)))

	if err := s.requireAlive(ctx); err != nil {
		return Killed(step, err)
	}
	return OK(step)
}
