package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/chr1sbest/pipegate/internal/atomicfile"
	"github.com/chr1sbest/pipegate/internal/runerr"
	"github.com/chr1sbest/pipegate/internal/schema"
)

// StateFileName is the run state file inside a run folder.
const StateFileName = "run_state.json"

// StatePath returns the run state file path for a run folder.
func StatePath(runFolder string) string {
	return filepath.Join(runFolder, StateFileName)
}

// Store loads and atomically saves run state files.
type Store struct {
	writer atomicfile.Writer
}

func NewStore() *Store {
	return &Store{}
}

// Load reads and schema-validates the state at path. An absent, unreadable or
// schema-mismatched file is a validation error.
func (s *Store) Load(path string) (*State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, runerr.Validation("load run state", fmt.Errorf("%s does not exist", path))
		}
		return nil, runerr.Validation("load run state", err)
	}
	if err := schema.Validate(schema.RunState, b); err != nil {
		return nil, runerr.Validation("load run state", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, runerr.Validation("load run state", err)
	}
	return &st, nil
}

// Save serializes st deterministically and atomically replaces path.
func (s *Store) Save(st *State, path string) error {
	if st == nil {
		return runerr.Validation("save run state", errors.New("state is nil"))
	}
	data, err := atomicfile.MarshalJSON(normalized(st))
	if err != nil {
		return runerr.Validation("save run state", err)
	}
	if err := schema.Validate(schema.RunState, data); err != nil {
		return runerr.Validation("save run state", err)
	}
	if err := s.writer.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save run state: %w", err)
	}
	return nil
}

// EnsureRunFolder creates base/runID if missing and returns its path.
func (s *Store) EnsureRunFolder(runID, base string) (string, error) {
	return EnsureRunFolder(runID, base)
}

// EnsureRunFolder creates base/runID if missing and returns its path.
func EnsureRunFolder(runID, base string) (string, error) {
	if runID == "" {
		return "", errors.New("run id is required")
	}
	dir := filepath.Join(base, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run folder: %w", err)
	}
	return dir, nil
}

// normalized returns a shallow copy whose nil collections encode as empty
// JSON values instead of null.
func normalized(st *State) *State {
	out := *st
	if out.Errors == nil {
		out.Errors = []string{}
	}
	if out.Paths == nil {
		out.Paths = map[string]string{}
	}
	return &out
}
