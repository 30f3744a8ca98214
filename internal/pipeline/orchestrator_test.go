package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chr1sbest/pipegate/internal/approval"
	"github.com/chr1sbest/pipegate/internal/config"
	"github.com/chr1sbest/pipegate/internal/discovery"
	"github.com/chr1sbest/pipegate/internal/killswitch"
	"github.com/chr1sbest/pipegate/internal/logger"
	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/operator"
	"github.com/chr1sbest/pipegate/internal/packaging"
	"github.com/chr1sbest/pipegate/internal/product"
	"github.com/chr1sbest/pipegate/internal/runerr"
	"github.com/chr1sbest/pipegate/internal/runstate"
)

type stubFetcher struct {
	items []model.RawItem
	err   error
	calls int
	hook  func()
}

func (f *stubFetcher) Fetch(context.Context) ([]model.RawItem, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	return f.items, f.err
}

var candidateItems = []model.RawItem{
	{ObjectID: "1", Source: "hn_algolia", Title: "Show HN: a thing", CreatedAt: "2026-01-01T00:00:00Z"},
	{ObjectID: "2", Source: "hn_algolia", Title: "How do I keep a changelog tool in sync", Text: "developers lose track", CreatedAt: "2026-01-01T00:00:00Z"},
	{ObjectID: "3", Source: "hn_algolia", Title: "Need help", CreatedAt: "2026-01-01T00:00:00Z"},
}

type harness struct {
	root    string
	runs    string
	bundles string
	logs    string
	fetcher *stubFetcher
	now     time.Time
	logBuf  *bytes.Buffer
}

func newHarness(t *testing.T, items []model.RawItem) *harness {
	t.Helper()
	root := t.TempDir()
	return &harness{
		root:    root,
		runs:    filepath.Join(root, "runs"),
		bundles: filepath.Join(root, "outputs", "bundles"),
		logs:    filepath.Join(root, "logs"),
		fetcher: &stubFetcher{items: items},
		now:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		logBuf:  &bytes.Buffer{},
	}
}

func (h *harness) clock() time.Time {
	h.now = h.now.Add(time.Second)
	return h.now
}

func (h *harness) orchestrator(opts ...Option) *Orchestrator {
	collab := Collaborators{
		Fetcher:   h.fetcher,
		Extractor: discovery.NewExtractor(),
		Ranker:    discovery.NewRanker(),
		Definer:   product.NewDefiner(),
		Generator: product.NewTemplatePackGenerator(),
		Packager:  packaging.New(h.bundles, config.Default().Pricing, packaging.WithClock(h.clock)),
	}
	base := []Option{
		WithClock(h.clock),
		WithLogger(logger.New(h.logBuf, logger.LevelDebug)),
		WithRunLogs(h.logs, logger.LevelDebug),
		WithGate(approval.NewGate(approval.WithClock(h.clock))),
	}
	return New(h.runs, collab, append(base, opts...)...)
}

func loadState(t *testing.T, res Result) *runstate.State {
	t.Helper()
	st, err := runstate.NewStore().Load(runstate.StatePath(res.RunFolder))
	require.NoError(t, err)
	return st
}

func TestRunWithoutCandidatesFailsAtDerive(t *testing.T) {
	h := newHarness(t, []model.RawItem{{ObjectID: "1", Title: "Show HN: a thing", CreatedAt: "2026-01-01T00:00:00Z"}})

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome.Kind)
	require.Equal(t, runstate.StepDeriveCandidates, res.Outcome.Step)
	require.Equal(t, ExitFailed, res.ExitCode())
	require.Equal(t, runerr.KindExtraction, runerr.KindOf(res.Outcome.Err))

	st := loadState(t, res)
	require.Equal(t, runstate.StatusOK, st.StepStatus.PullRaw)
	require.Equal(t, runstate.StatusFailed, st.StepStatus.DeriveCandidates)
	require.Equal(t, runstate.StatusPending, st.StepStatus.RankProblems)
	require.NotEmpty(t, st.Errors)
	require.Nil(t, st.EndedAt)

	_, err = os.Stat(h.bundles)
	require.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(filepath.Join(res.RunFolder, "raw.jsonl"))
	require.NoError(t, err)
}

func TestRunWithoutApprovalBlocks(t *testing.T) {
	h := newHarness(t, candidateItems)

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, res.Outcome.Kind)
	require.Equal(t, ExitBlocked, res.ExitCode())
	require.ErrorIs(t, res.Outcome.Err, runerr.ErrApprovalRequired)

	st := loadState(t, res)
	require.True(t, st.ApprovalRequired)
	require.False(t, st.Approved)
	require.Equal(t, runstate.StatusBlocked, st.StepStatus.DefineProduct)
	require.Equal(t, runstate.StatusSkipped, st.StepStatus.GenerateFiles)
	require.Equal(t, runstate.StatusSkipped, st.StepStatus.PackageBundle)
	require.Equal(t, discovery.StableHash(candidateItems[1].Title+candidateItems[1].Text), st.ProductID())
	require.Empty(t, st.Errors)

	_, err = os.Stat(filepath.Join(h.bundles, st.ProductID()))
	require.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Lstat(filepath.Join(h.runs, LatestLinkName))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApprovalThenSecondRunProducesBundle(t *testing.T) {
	h := newHarness(t, candidateItems)

	first, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, first.Outcome.Kind)

	_, err = approval.NewGate().WriteApproval(first.RunFolder, first.RunID, "ops", nil)
	require.NoError(t, err)

	second, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, second.Outcome.Kind, "%v", second.Outcome.Err)
	require.Equal(t, ExitOK, second.ExitCode())
	require.NotEqual(t, first.RunID, second.RunID)

	st := loadState(t, second)
	require.True(t, st.Approved)
	require.NotNil(t, st.EndedAt)
	for _, step := range runstate.Steps {
		require.Equal(t, runstate.StatusOK, st.StepStatus.Get(step), step)
	}

	require.NotNil(t, second.Bundle)
	for _, a := range second.Bundle.Manifest.Artifacts {
		data, err := os.ReadFile(filepath.Join(second.Bundle.Dir, filepath.FromSlash(a.Path)))
		require.NoError(t, err)
		sum := sha256.Sum256(data)
		require.Equal(t, hex.EncodeToString(sum[:]), a.SHA256, a.Path)
	}
	_, err = os.Stat(filepath.Join(h.bundles, st.ProductID()+".zip"))
	require.NoError(t, err)
	require.Equal(t, second.Bundle.ZipPath, st.Paths[runstate.PathBundleZip])

	target, err := os.Readlink(filepath.Join(h.runs, LatestLinkName))
	require.NoError(t, err)
	require.Equal(t, second.RunID, target)

	rec, err := approval.NewGate().Read(second.RunFolder)
	require.NoError(t, err)
	require.Contains(t, *rec.Note, first.RunID)

	runLog, err := os.ReadFile(filepath.Join(h.logs, second.RunID+".log"))
	require.NoError(t, err)
	require.Contains(t, string(runLog), "Approval carried forward")
	require.Contains(t, h.logBuf.String(), "Run complete")
}

func TestCarryForwardDisabledBlocksAgain(t *testing.T) {
	h := newHarness(t, candidateItems)

	first, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	_, err = approval.NewGate().WriteApproval(first.RunFolder, first.RunID, "ops", nil)
	require.NoError(t, err)

	second, err := h.orchestrator(WithCarryForward(false)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, second.Outcome.Kind)
}

func TestKillBeforeRun(t *testing.T) {
	h := newHarness(t, candidateItems)
	kill := killswitch.ForRunsDir(h.runs)
	require.NoError(t, kill.Engage("maintenance"))

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeKilled, res.Outcome.Kind)
	require.Equal(t, ExitKilled, res.ExitCode())
	require.Zero(t, h.fetcher.calls)

	st := loadState(t, res)
	require.True(t, st.Killed)
	require.Empty(t, st.Errors)
	for _, step := range runstate.Steps {
		require.NotEqual(t, runstate.StatusFailed, st.StepStatus.Get(step))
	}

	require.NoError(t, kill.Disengage())
	res, err = h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, res.Outcome.Kind)
}

func TestKillDuringRunStopsAtNextBoundary(t *testing.T) {
	h := newHarness(t, candidateItems)
	kill := killswitch.ForRunsDir(h.runs)
	h.fetcher.hook = func() { _ = kill.Engage("") }

	res, err := h.orchestrator(WithKillWatch(true)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeKilled, res.Outcome.Kind)
	require.Equal(t, runstate.StepPullRaw, res.Outcome.Step)

	st := loadState(t, res)
	require.True(t, st.Killed)
	require.Equal(t, runstate.StatusOK, st.StepStatus.PullRaw)
	require.Equal(t, runstate.StatusPending, st.StepStatus.DeriveCandidates)
	require.Empty(t, st.Errors)
}

func TestKillWatchLogsBeforeRunLogCloses(t *testing.T) {
	h := newHarness(t, candidateItems)
	require.NoError(t, killswitch.ForRunsDir(h.runs).Engage("maintenance"))

	res, err := h.orchestrator(WithKillWatch(true)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeKilled, res.Outcome.Kind)

	runLog, err := os.ReadFile(filepath.Join(h.logs, res.RunID+".log"))
	require.NoError(t, err)
	require.Contains(t, string(runLog), "Kill requested, stopping at next step boundary")
}

func TestApproveSkipsNewerFailedRun(t *testing.T) {
	h := newHarness(t, candidateItems)

	blocked, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, blocked.Outcome.Kind)

	h.fetcher.err = runerr.Transport("fetch hn_algolia", errors.New("unexpected status 503"))
	failed, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, failed.Outcome.Kind)
	h.fetcher.err = nil

	op := operator.New(h.runs)
	_, err = op.Approve(failed.RunID, "ops", "")
	require.ErrorIs(t, err, operator.ErrNotAwaitingApproval)

	id, err := op.PendingApproval()
	require.NoError(t, err)
	require.Equal(t, blocked.RunID, id)
	_, err = op.Approve(id, "ops", "")
	require.NoError(t, err)

	next, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, next.Outcome.Kind, "%v", next.Outcome.Err)

	rec, err := approval.NewGate().Read(next.RunFolder)
	require.NoError(t, err)
	require.Contains(t, *rec.Note, blocked.RunID)
}

func TestFetchErrorFailsAtPullRaw(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.err = runerr.Transport("fetch hn_algolia", errors.New("unexpected status 503"))

	res, err := h.orchestrator().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome.Kind)
	require.Equal(t, runstate.StepPullRaw, res.Outcome.Step)

	st := loadState(t, res)
	require.Equal(t, runstate.StatusFailed, st.StepStatus.PullRaw)
	require.True(t, strings.HasPrefix(st.Errors[0], "pull_raw: fetch hn_algolia"))
}

func TestRunIDsAreUniqueForSameSecond(t *testing.T) {
	h := newHarness(t, candidateItems)
	fixed := func() time.Time { return h.now }

	a, err := h.orchestrator(WithClock(fixed)).Run(context.Background())
	require.NoError(t, err)
	b, err := h.orchestrator(WithClock(fixed)).Run(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, a.RunID, b.RunID)
	require.True(t, strings.HasPrefix(b.RunID, a.RunID+"-"))
}

type recordingProgress struct {
	steps  []string
	failed string
}

func (p *recordingProgress) Step(_, _ int, step string)  { p.steps = append(p.steps, step) }
func (p *recordingProgress) Failed(step string, _ error) { p.failed = step }
func (p *recordingProgress) Clear()                      {}

func TestProgressReportsSteps(t *testing.T) {
	h := newHarness(t, nil)
	p := &recordingProgress{}
	res, err := h.orchestrator(WithProgress(p)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome.Kind)
	require.Equal(t, []string{"pull_raw", "derive_candidates"}, p.steps)
	require.Equal(t, "derive_candidates", p.failed)
}
