// Package style renders failure reports and run summaries for terminals.
package style

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/cgast/chainexpect/pkg/expect"
)

var (
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
	Muted       = lipgloss.AdaptiveColor{Light: "#6a737d", Dark: "#8a94a6"}
)

// Theme holds the styles used for reports.
type Theme struct {
	Dim       lipgloss.Style
	Error     lipgloss.Style
	Reference lipgloss.Style
	Pass      lipgloss.Style
	Fail      lipgloss.Style
	Skip      lipgloss.Style
}

// DefaultTheme returns the colored theme.
func DefaultTheme() Theme {
	return Theme{
		Dim:       lipgloss.NewStyle().Foreground(Muted),
		Error:     lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Reference: lipgloss.NewStyle().Foreground(Info),
		Pass:      lipgloss.NewStyle().Foreground(Success).Bold(true),
		Fail:      lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Skip:      lipgloss.NewStyle().Foreground(Warning),
	}
}

// Formatter returns a failure formatter. With color disabled it is the
// plain formatter.
func Formatter(color bool) expect.Formatter {
	if !color {
		return expect.PlainFormatter()
	}
	theme := DefaultTheme()
	return expect.TextFormatter{
		Dim:       renderer(theme.Dim),
		Error:     renderer(theme.Error),
		Reference: renderer(theme.Reference),
	}
}

// renderer adapts a style to the single-string form TextFormatter takes.
func renderer(s lipgloss.Style) func(string) string {
	return func(text string) string { return s.Render(text) }
}

// Printer renders run output lines.
type Printer struct {
	color bool
	theme Theme
}

// NewPrinter creates a printer.
func NewPrinter(color bool) *Printer {
	return &Printer{color: color, theme: DefaultTheme()}
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Status renders a check status badge such as "PASS".
func (p *Printer) Status(status string) string {
	label := fmt.Sprintf("%-5s", statusLabel(status))
	switch status {
	case "pass":
		return p.render(p.theme.Pass, label)
	case "skipped":
		return p.render(p.theme.Skip, label)
	default:
		return p.render(p.theme.Fail, label)
	}
}

// Summary renders the final counts line.
func (p *Printer) Summary(passed, failed, skipped int) string {
	text := fmt.Sprintf("%d passed, %d failed, %d skipped", passed, failed, skipped)
	if failed > 0 {
		return p.render(p.theme.Fail, text)
	}
	return p.render(p.theme.Pass, text)
}

// Dim renders secondary text.
func (p *Printer) Dim(text string) string {
	return p.render(p.theme.Dim, text)
}

func statusLabel(status string) string {
	switch status {
	case "pass":
		return "PASS"
	case "fail":
		return "FAIL"
	case "skipped":
		return "SKIP"
	default:
		return "ERROR"
	}
}
