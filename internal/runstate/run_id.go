package runstate

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunIDFormat is the time layout of a run id.
const RunIDFormat = "20060102-150405"

// NewRunID derives a run id from now. If a folder with that id already exists
// under base, a short random suffix keeps the id unique.
func NewRunID(base string, now time.Time) string {
	id := now.UTC().Format(RunIDFormat)
	if _, err := os.Stat(filepath.Join(base, id)); os.IsNotExist(err) {
		return id
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return id + "-" + suffix
}
