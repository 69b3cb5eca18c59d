// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// markdown rendering) for dechat CLI commands.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/dechat/pkg/render"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	NameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	IDStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// scopeColors maps router scopes to badge colors. Unknown scopes use the
// dim style.
var scopeColors = map[string]lipgloss.Color{
	"sql":          lipgloss.Color("39"),
	"bigquery":     lipgloss.Color("33"),
	"dbt":          lipgloss.Color("208"),
	"airflow":      lipgloss.Color("45"),
	"meta":         lipgloss.Color("141"),
	"welcome":      lipgloss.Color("82"),
	"out_of_scope": lipgloss.Color("196"),
}

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// ScopeBadge renders a routing scope as a colored "[scope]" label.
// An empty scope renders as an empty string.
func ScopeBadge(scope string) string {
	if scope == "" {
		return ""
	}

	style := DimStyle
	if c, ok := scopeColors[scope]; ok {
		style = lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return style.Render("[" + scope + "]")
}

// RenderMarkdown renders markdown content for terminal display.
// On failure the content is returned unchanged along with the error.
func RenderMarkdown(content string) (string, error) {
	r, err := render.NewTerminal(0)
	if err != nil {
		return content, err
	}

	return r.Render(content)
}
