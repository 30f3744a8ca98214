package main

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Set via -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func unset(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "none" || v == "unknown"
}

// buildMeta fills commit and build time from the module build info when
// ldflags did not set them.
func buildMeta() (rev, built string) {
	rev, built = strings.TrimSpace(commit), strings.TrimSpace(date)
	if !unset(rev) && !unset(built) {
		return rev, built
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return rev, built
	}
	for _, s := range bi.Settings {
		v := strings.TrimSpace(s.Value)
		switch {
		case s.Key == "vcs.revision" && unset(rev) && v != "":
			rev = v
		case s.Key == "vcs.time" && unset(built) && v != "":
			built = v
		}
	}
	return rev, built
}

func versionLine() string {
	if version != "dev" {
		return "pipegate version " + version
	}

	rev, built := buildMeta()
	if len(rev) > 7 {
		rev = rev[:7]
	}

	var meta []string
	if !unset(rev) {
		meta = append(meta, "commit "+rev)
	}
	if !unset(built) {
		meta = append(meta, "built "+built)
	}
	if len(meta) == 0 {
		return "pipegate version dev"
	}
	return fmt.Sprintf("pipegate version dev (%s)", strings.Join(meta, ", "))
}
