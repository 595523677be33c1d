package ui

import "github.com/charmbracelet/lipgloss"

// Color palette - single amber accent over neutral grays.
const (
	ColorAmber    = "214" // Primary accent
	ColorWhite    = "255" // Headers
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Separators
	ColorRed      = "196" // Errors, critical findings
	ColorOrange   = "208" // High severity
	ColorYellow   = "220" // Medium severity, warnings
	ColorGreen    = "114" // Success, low severity
)

// Styles holds the terminal styles used for rendering.
type Styles struct {
	Header   lipgloss.Style
	Label    lipgloss.Style
	Dim      lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Stage    lipgloss.Style
	Progress lipgloss.Style

	Critical lipgloss.Style
	High     lipgloss.Style
	Medium   lipgloss.Style
	Low      lipgloss.Style
}

// DefaultStyles returns the styled palette for TTY output.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Stage:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAmber)),
		Progress: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAmber)),

		Critical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorRed)),
		High:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorOrange)),
		Medium:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Low:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
	}
}

// NoColorStyles returns an unstyled palette for pipes and CI.
func NoColorStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle(),
		Label:    lipgloss.NewStyle(),
		Dim:      lipgloss.NewStyle(),
		Success:  lipgloss.NewStyle(),
		Warning:  lipgloss.NewStyle(),
		Error:    lipgloss.NewStyle(),
		Stage:    lipgloss.NewStyle(),
		Progress: lipgloss.NewStyle(),
		Critical: lipgloss.NewStyle(),
		High:     lipgloss.NewStyle(),
		Medium:   lipgloss.NewStyle(),
		Low:      lipgloss.NewStyle(),
	}
}

// SeverityStyle maps a finding severity onto its display style.
func (s Styles) SeverityStyle(severity string) lipgloss.Style {
	switch severity {
	case "critical":
		return s.Critical
	case "high":
		return s.High
	case "medium":
		return s.Medium
	case "low", "info":
		return s.Low
	default:
		return s.Label
	}
}
