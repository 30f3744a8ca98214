// Package approval persists and checks the human sign-off that gates artifact
// generation. A schema-valid record in the run folder is the only thing that
// counts as approval; anything else is treated as not approved.
package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chr1sbest/pipegate/internal/atomicfile"
	"github.com/chr1sbest/pipegate/internal/runerr"
	"github.com/chr1sbest/pipegate/internal/schema"
)

// RecordFileName is the approval record inside a run folder.
const RecordFileName = "approval_record.json"

// Record is a human sign-off for one run.
type Record struct {
	ApprovedAt time.Time `json:"approved_at"`
	ApprovedBy string    `json:"approved_by"`
	Note       *string   `json:"note"`
	RunID      string    `json:"run_id"`
}

// Gate reads and writes approval records.
type Gate struct {
	clock func() time.Time
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

func NewGate(opts ...Option) *Gate {
	g := &Gate{clock: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RecordPath returns the approval record location for a run folder.
func (g *Gate) RecordPath(runFolder string) string {
	return filepath.Join(runFolder, RecordFileName)
}

// Read loads and validates the record in runFolder.
func (g *Gate) Read(runFolder string) (*Record, error) {
	b, err := os.ReadFile(g.RecordPath(runFolder))
	if err != nil {
		return nil, runerr.Validation("read approval", err)
	}
	if err := schema.Validate(schema.ApprovalRecord, b); err != nil {
		return nil, runerr.Validation("read approval", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, runerr.Validation("read approval", err)
	}
	return &rec, nil
}

// IsApproved reports whether runFolder holds a valid approval record. Any
// read or validation failure counts as not approved.
func (g *Gate) IsApproved(runFolder string) bool {
	_, err := g.Read(runFolder)
	return err == nil
}

// WriteApproval records a sign-off for runID in runFolder, stamped now.
func (g *Gate) WriteApproval(runFolder, runID, approvedBy string, note *string) (*Record, error) {
	runID = strings.TrimSpace(runID)
	approvedBy = strings.TrimSpace(approvedBy)
	if runID == "" {
		return nil, errors.New("run_id is required")
	}
	if approvedBy == "" {
		return nil, errors.New("approved_by is required")
	}
	if info, err := os.Stat(runFolder); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("run folder %s does not exist", runFolder)
	}
	rec := &Record{
		ApprovedAt: g.clock().UTC(),
		ApprovedBy: approvedBy,
		Note:       note,
		RunID:      runID,
	}
	if err := g.write(runFolder, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (g *Gate) write(runFolder string, rec *Record) error {
	data, err := atomicfile.MarshalJSON(rec)
	if err != nil {
		return err
	}
	if err := schema.Validate(schema.ApprovalRecord, data); err != nil {
		return runerr.Validation("write approval", err)
	}
	if err := atomicfile.WriteFile(g.RecordPath(runFolder), data, 0o644); err != nil {
		return fmt.Errorf("write approval: %w", err)
	}
	return nil
}

// RequireApproved returns an approval-required error unless runFolder is approved.
func (g *Gate) RequireApproved(runFolder string) error {
	if !g.IsApproved(runFolder) {
		return runerr.New(runerr.KindApprovalRequired, "approval gate",
			errors.New("run is blocked until explicitly approved"))
	}
	return nil
}
