package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ANSI cursor control
const (
	clearLine  = "\033[2K"
	moveUp     = "\033[A"
	moveToCol0 = "\r"
)

// Progress bar characters
const (
	barFilled = "█"
	barEmpty  = "░"
	barWidth  = 20
)

var (
	filledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	boldStyle   = lipgloss.NewStyle().Bold(true)
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
)

// Writer handles in-place progress updates to the terminal
type Writer struct {
	w            io.Writer
	mu           sync.Mutex
	linesWritten int
}

// New creates a status writer that outputs to stdout
func New() *Writer {
	return &Writer{w: os.Stdout}
}

// NewWithWriter creates a status writer with a custom output
func NewWithWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Clear erases any previously written status lines
func (s *Writer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < s.linesWritten; i++ {
		fmt.Fprint(s.w, moveUp+clearLine)
	}
	fmt.Fprint(s.w, moveToCol0)
	s.linesWritten = 0
}

// Update clears previous status and writes new status
func (s *Writer) Update(lines ...string) {
	s.Clear()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range lines {
		fmt.Fprintln(s.w, line)
	}
	s.linesWritten = len(lines)
}

func progressBar(completed, total int) string {
	if total == 0 {
		return dimStyle.Render(strings.Repeat(barEmpty, barWidth))
	}
	filled := (completed * barWidth) / total
	if filled > barWidth {
		filled = barWidth
	}
	return filledStyle.Render(strings.Repeat(barFilled, filled)) +
		dimStyle.Render(strings.Repeat(barEmpty, barWidth-filled))
}

// Step shows that step number n (1-based) of total has started.
func (s *Writer) Step(n, total int, step string) {
	s.Update(fmt.Sprintf("%s %s %s", progressBar(n-1, total), dimStyle.Render(fmt.Sprintf("%d/%d", n, total)), boldStyle.Render(step)))
}

// Failed replaces the progress line with a failure notice that stays on screen.
func (s *Writer) Failed(step string, err error) {
	s.Clear()
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(s.w, failStyle.Render(fmt.Sprintf("✗ %s failed", step)))
	fmt.Fprintln(s.w, dimStyle.Render(err.Error()))
	s.linesWritten = 0
}
