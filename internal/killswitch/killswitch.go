// Package killswitch implements the filesystem kill sentinel. The sentinel's
// existence, not its content, is the kill directive.
package killswitch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/chr1sbest/pipegate/internal/runerr"
)

// SentinelName is the kill file's name inside the runs directory.
const SentinelName = "KILL"

// Switch checks and toggles a kill sentinel file.
type Switch struct {
	path string
}

// New returns a Switch for the sentinel at path.
func New(path string) *Switch {
	return &Switch{path: path}
}

// ForRunsDir returns a Switch for <runsDir>/KILL.
func ForRunsDir(runsDir string) *Switch {
	return New(filepath.Join(runsDir, SentinelName))
}

// Path returns the sentinel location.
func (s *Switch) Path() string {
	return s.path
}

// IsKilled reports whether the sentinel exists.
func (s *Switch) IsKilled() bool {
	_, err := os.Lstat(s.path)
	return err == nil
}

// RequireAlive returns a kill error if the sentinel exists.
func (s *Switch) RequireAlive() error {
	if s.IsKilled() {
		return runerr.New(runerr.KindKillEngaged, "kill switch",
			fmt.Errorf("%s present, aborting run", s.path))
	}
	return nil
}

// Engage creates the sentinel. reason is written for humans only.
func (s *Switch) Engage(reason string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("engage kill switch: %w", err)
	}
	body := fmt.Sprintf("engaged_at=%s\n", time.Now().UTC().Format(time.RFC3339))
	if reason != "" {
		body += "reason=" + reason + "\n"
	}
	if err := os.WriteFile(s.path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("engage kill switch: %w", err)
	}
	return nil
}

// Disengage removes the sentinel. Removing an absent sentinel is not an error.
func (s *Switch) Disengage() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("disengage kill switch: %w", err)
	}
	return nil
}
