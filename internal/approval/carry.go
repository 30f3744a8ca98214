package approval

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/chr1sbest/pipegate/internal/runstate"
)

// CarryForward copies an approval granted to an earlier blocked run of the
// same product into runFolder. It returns true when runFolder ends up
// approved. Runs are only considered if they halted at the gate with
// selected_product_id equal to productID.
func (g *Gate) CarryForward(runsDir, runFolder, runID, productID string) (bool, error) {
	if g.IsApproved(runFolder) {
		return true, nil
	}
	if productID == "" {
		return false, nil
	}

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return false, fmt.Errorf("scan runs: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && e.Name() != runID {
			names = append(names, e.Name())
		}
	}
	// Run ids are time-derived, so reverse lexical order is newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	store := runstate.NewStore()
	for _, name := range names {
		if name >= runID {
			continue
		}
		prevFolder := filepath.Join(runsDir, name)
		prev, err := store.Load(runstate.StatePath(prevFolder))
		if err != nil {
			continue
		}
		if prev.ProductID() != productID || prev.StepStatus.DefineProduct != runstate.StatusBlocked {
			continue
		}
		rec, err := g.Read(prevFolder)
		if err != nil {
			continue
		}

		note := "carried over from run " + rec.RunID
		if rec.Note != nil && *rec.Note != "" {
			note += ": " + *rec.Note
		}
		carried := &Record{
			ApprovedAt: rec.ApprovedAt,
			ApprovedBy: rec.ApprovedBy,
			Note:       &note,
			RunID:      runID,
		}
		if err := g.write(runFolder, carried); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
