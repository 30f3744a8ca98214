package approval

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chr1sbest/pipegate/internal/runerr"
	"github.com/chr1sbest/pipegate/internal/runstate"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestGate() *Gate {
	return NewGate(WithClock(func() time.Time { return fixedNow }))
}

func TestIsApprovedFailsClosed(t *testing.T) {
	g := newTestGate()
	cases := []struct {
		name    string
		content *string
		want    bool
	}{
		{name: "missing file", content: nil, want: false},
		{name: "empty file", content: ptr(""), want: false},
		{name: "not json", content: ptr("approved!"), want: false},
		{name: "schema mismatch", content: ptr(`{"run_id":"r1","approved":true}`), want: false},
		{name: "wrong types", content: ptr(`{"run_id":"r1","approved_at":1,"approved_by":"ops"}`), want: false},
		{name: "valid", content: ptr(`{"run_id":"r1","approved_at":"2026-01-01T00:00:00Z","approved_by":"ops","note":null}`), want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if tc.content != nil {
				require.NoError(t, os.WriteFile(g.RecordPath(dir), []byte(*tc.content), 0o644))
			}
			require.Equal(t, tc.want, g.IsApproved(dir))
		})
	}
}

func TestWriteApprovalThenApproved(t *testing.T) {
	g := newTestGate()
	dir := t.TempDir()

	require.False(t, g.IsApproved(dir))
	rec, err := g.WriteApproval(dir, "20260304-050000", "ops@example.com", ptr("looks good"))
	require.NoError(t, err)
	require.Equal(t, fixedNow, rec.ApprovedAt)

	require.True(t, g.IsApproved(dir))
	require.NoError(t, g.RequireApproved(dir))

	got, err := g.Read(dir)
	require.NoError(t, err)
	require.Equal(t, rec, got)
	require.Equal(t, filepath.Join(dir, RecordFileName), g.RecordPath(dir))
}

func TestWriteApprovalValidatesInput(t *testing.T) {
	g := newTestGate()
	dir := t.TempDir()

	_, err := g.WriteApproval(dir, "", "ops", nil)
	require.Error(t, err)
	_, err = g.WriteApproval(dir, "r1", "   ", nil)
	require.Error(t, err)
	_, err = g.WriteApproval(filepath.Join(dir, "nope"), "r1", "ops", nil)
	require.Error(t, err)
	require.False(t, g.IsApproved(dir))
}

func TestRequireApprovedBlocks(t *testing.T) {
	err := newTestGate().RequireApproved(t.TempDir())
	require.True(t, errors.Is(err, runerr.ErrApprovalRequired))
	require.True(t, runerr.IsHalt(err))
}

func writeBlockedRun(t *testing.T, runsDir, runID, productID string) string {
	t.Helper()
	folder, err := runstate.EnsureRunFolder(runID, runsDir)
	require.NoError(t, err)
	st := runstate.New(runID, fixedNow, folder)
	st.SelectProduct(productID)
	st.ApprovalRequired = true
	for _, step := range runstate.Steps[:4] {
		require.NoError(t, st.Transition(step, runstate.StatusRunning))
		require.NoError(t, st.Transition(step, runstate.StatusOK))
	}
	require.NoError(t, st.Transition(runstate.StepDefineProduct, runstate.StatusBlocked))
	require.NoError(t, runstate.NewStore().Save(st, runstate.StatePath(folder)))
	return folder
}

func TestCarryForwardCopiesApprovalForSameProduct(t *testing.T) {
	g := newTestGate()
	runs := t.TempDir()

	prev := writeBlockedRun(t, runs, "20260101-000000", "prod-1")
	_, err := g.WriteApproval(prev, "20260101-000000", "ops", ptr("ship it"))
	require.NoError(t, err)

	current, err := runstate.EnsureRunFolder("20260101-010000", runs)
	require.NoError(t, err)

	ok, err := g.CarryForward(runs, current, "20260101-010000", "prod-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, g.IsApproved(current))

	rec, err := g.Read(current)
	require.NoError(t, err)
	require.Equal(t, "20260101-010000", rec.RunID)
	require.Equal(t, "ops", rec.ApprovedBy)
	require.Equal(t, "carried over from run 20260101-000000: ship it", *rec.Note)
}

func TestCarryForwardIgnoresOtherProductsAndUnapprovedRuns(t *testing.T) {
	g := newTestGate()
	runs := t.TempDir()

	other := writeBlockedRun(t, runs, "20260101-000000", "prod-other")
	_, err := g.WriteApproval(other, "20260101-000000", "ops", nil)
	require.NoError(t, err)
	writeBlockedRun(t, runs, "20260101-000500", "prod-1")

	current, err := runstate.EnsureRunFolder("20260101-010000", runs)
	require.NoError(t, err)

	ok, err := g.CarryForward(runs, current, "20260101-010000", "prod-1")
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, g.IsApproved(current))

	ok, err = g.CarryForward(runs, current, "20260101-010000", "")
	require.NoError(t, err)
	require.False(t, ok)
}

func ptr(s string) *string { return &s }
