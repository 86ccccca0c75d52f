package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// printStyles holds the styles used in command output.
type printStyles struct {
	header lipgloss.Style
	good   lipgloss.Style
	fair   lipgloss.Style
	poor   lipgloss.Style
	dim    lipgloss.Style
	errs   lipgloss.Style
}

func newPrintStyles() printStyles {
	return printStyles{
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		good:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		fair:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		poor:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		errs:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

func plainStyles() printStyles {
	s := lipgloss.NewStyle()
	return printStyles{header: s, good: s, fair: s, poor: s, dim: s, errs: s}
}

// pct renders a percentage coloured by band: 80 and above good, below 50 poor.
func (s printStyles) pct(v float64) string {
	text := fmt.Sprintf("%6.2f%%", v)
	switch {
	case v >= 80:
		return s.good.Render(text)
	case v < 50:
		return s.poor.Render(text)
	default:
		return s.fair.Render(text)
	}
}

// bar renders v out of 100 as a fixed-width bar.
func bar(v float64, width int) string {
	n := int(v / 100 * float64(width))
	n = max(0, min(width, n))
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

func (s printStyles) title(w io.Writer, text string) {
	fmt.Fprintln(w, s.header.Render(text))
	fmt.Fprintln(w, s.dim.Render(strings.Repeat("─", lipgloss.Width(text))))
}
