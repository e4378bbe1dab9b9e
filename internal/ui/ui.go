// Package ui prints the one-line, colored status messages an operator
// watches during a run. Colors are dropped automatically when the output
// is not a terminal.
package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	okColor     = lipgloss.Color("#10B981") // green
	stepColor   = lipgloss.Color("#F59E0B") // yellow
	dangerColor = lipgloss.Color("#EF4444") // red
	mutedColor  = lipgloss.Color("#6B7280") // gray
)

// Printer writes status lines to one writer.
type Printer struct {
	w io.Writer

	// actions emits GitHub Actions log group markers.
	actions bool

	okStyle    lipgloss.Style
	stepStyle  lipgloss.Style
	failStyle  lipgloss.Style
	mutedStyle lipgloss.Style
}

// New returns a Printer for w. When actions is true, Group and EndGroup
// emit the workflow-command markers that fold log sections.
func New(w io.Writer, actions bool) *Printer {
	renderer := lipgloss.NewRenderer(w)
	return &Printer{
		w:          w,
		actions:    actions,
		okStyle:    renderer.NewStyle().Foreground(okColor),
		stepStyle:  renderer.NewStyle().Foreground(stepColor),
		failStyle:  renderer.NewStyle().Foreground(dangerColor).Bold(true),
		mutedStyle: renderer.NewStyle().Foreground(mutedColor),
	}
}

// Group opens a folded section titled title.
func (p *Printer) Group(format string, args ...any) {
	title := p.stepStyle.Render(fmt.Sprintf(format, args...))
	if p.actions {
		fmt.Fprintf(p.w, "##[group]%s\n", title)
		return
	}
	fmt.Fprintf(p.w, "%s\n", title)
}

// EndGroup closes the section opened by Group.
func (p *Printer) EndGroup() {
	if p.actions {
		fmt.Fprintln(p.w, "##[endgroup]")
	}
}

// Step announces the start of a step.
func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.stepStyle.Render("→"), fmt.Sprintf(format, args...))
}

// OK reports a successful step.
func (p *Printer) OK(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.okStyle.Render("✓"), p.okStyle.Render(fmt.Sprintf(format, args...)))
}

// Warn reports something the operator should look at that did not fail
// the run.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.stepStyle.Render("!"), fmt.Sprintf(format, args...))
}

// Fail reports a failure, with err's detail when err is non-nil.
func (p *Printer) Fail(msg string, err error) {
	if err != nil {
		fmt.Fprintf(p.w, "%s %s\n", p.failStyle.Render("✗ "+msg+":"), err)
		return
	}
	fmt.Fprintf(p.w, "%s\n", p.failStyle.Render("✗ "+msg))
}

// Info prints a plain detail line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, "  %s\n", p.mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Timing prints "<label> time: 12.34 secs".
func (p *Printer) Timing(label string, elapsed time.Duration) {
	fmt.Fprintf(p.w, "%s time: %5.2f secs\n", label, elapsed.Seconds())
}
