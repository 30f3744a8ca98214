// Package banner prints the startup summary shown before a run.
package banner

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/chr1sbest/pipegate/internal/config"
)

var (
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5F87FF"))
	labelStyle = lipgloss.NewStyle().Faint(true).Width(14)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFAF00"))
)

// Banner handles pretty startup output
type Banner struct {
	writer io.Writer
	width  int
}

// New creates a new Banner that writes to stdout
func New() *Banner {
	return &Banner{writer: os.Stdout, width: 60}
}

// NewWithWriter creates a Banner with a custom writer (for testing)
func NewWithWriter(w io.Writer) *Banner {
	return &Banner{writer: w, width: 60}
}

// Print shows where the run will write and what it reads from. killed adds a
// warning line so the operator knows the run will halt immediately.
func (b *Banner) Print(cfg *config.Config, killed bool) {
	rows := []string{
		titleStyle.Render("pipegate"),
		"",
		b.row("runs", cfg.RunsDir()),
		b.row("bundles", cfg.BundlesDir()),
		b.row("logs", cfg.LogsDir()),
	}
	for i, src := range enabledSources(cfg) {
		label := ""
		if i == 0 {
			label = "sources"
		}
		rows = append(rows, b.row(label, src))
	}
	rows = append(rows, b.row("approval", approvalMode(cfg)))
	if cfg.Publish.S3.Enabled {
		rows = append(rows, b.row("publish", fmt.Sprintf("s3://%s/%s", cfg.Publish.S3.Bucket, cfg.Publish.S3.Prefix)))
	}
	if killed {
		rows = append(rows, "", warnStyle.Render("Kill switch engaged, the run will stop before its first step"))
	}
	fmt.Fprintln(b.writer, boxStyle.Width(b.width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}

func (b *Banner) row(label, value string) string {
	return labelStyle.Render(label) + truncate(value, b.width-18)
}

func enabledSources(cfg *config.Config) []string {
	var out []string
	if hn := cfg.Sources.HN; hn.IsEnabled() {
		out = append(out, fmt.Sprintf("hn (%q, %d hit%s)", hn.Query, hn.HitsPerPage, pluralize(hn.HitsPerPage)))
	}
	if rd := cfg.Sources.Reddit; rd.Enabled {
		out = append(out, fmt.Sprintf("reddit (r/%s, %d post%s)", rd.Subreddit, rd.Limit, pluralize(rd.Limit)))
	}
	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}

func approvalMode(cfg *config.Config) string {
	if cfg.Approval.CarryForwardEnabled() {
		return "required, carried forward per product"
	}
	return "required on every run"
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func pluralize(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
