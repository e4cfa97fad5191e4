package ui

import "github.com/charmbracelet/lipgloss"

// Color palette: lime accent on a neutral gray scale.
const (
	ColorLime     = "154" // user messages, header, spinner
	ColorLimeDim  = "106" // prompt
	ColorWhite    = "255" // system messages
	ColorGray     = "245" // status line
	ColorDarkGray = "238" // borders, placeholder, hints
	ColorRed      = "196" // error banner
	ColorYellow   = "220" // empty-state notice
)

// Styles holds all UI styles for TUI rendering.
type Styles struct {
	Header      lipgloss.Style
	User        lipgloss.Style
	System      lipgloss.Style
	Error       lipgloss.Style
	Notice      lipgloss.Style
	Status      lipgloss.Style
	Prompt      lipgloss.Style
	Placeholder lipgloss.Style
	Dim         lipgloss.Style
	Spinner     lipgloss.Style
	Border      lipgloss.Style
}

// DefaultStyles returns styled components for TUI mode.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color(ColorDarkGray)),
		User:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		System:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Error:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorRed)),
		Notice:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Status:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Prompt:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Dim:         lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Spinner:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Border:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:      plain.Bold(true),
		User:        plain,
		System:      plain,
		Error:       plain,
		Notice:      plain,
		Status:      plain,
		Prompt:      plain,
		Placeholder: plain,
		Dim:         plain,
		Spinner:     plain,
		Border:      plain,
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
