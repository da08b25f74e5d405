// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

// Adaptive colors shared by every view.
var (
	TextPrimaryColor     = lipgloss.AdaptiveColor{Light: "#1a1a1a", Dark: "#dddddd"}
	TextDescriptionColor = lipgloss.AdaptiveColor{Light: "#4a4a4a", Dark: "#a0a0a0"}
	TextMutedColor       = lipgloss.AdaptiveColor{Light: "#8a8a8a", Dark: "#626262"}
	AccentColor          = lipgloss.AdaptiveColor{Light: "#5a56e0", Dark: "#7d79f6"}
	SuccessColor         = lipgloss.AdaptiveColor{Light: "#0a7b34", Dark: "#4eca69"}
	WarningColor         = lipgloss.AdaptiveColor{Light: "#a66c00", Dark: "#e5b454"}
	ErrorColor           = lipgloss.AdaptiveColor{Light: "#c41e3a", Dark: "#f25d78"}
	BorderColor          = lipgloss.AdaptiveColor{Light: "#d0d0d0", Dark: "#3a3a3a"}
)

var (
	// TabActive styles the selected tab label.
	TabActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(AccentColor).
			Padding(0, 2)

	// TabInactive styles unselected tab labels.
	TabInactive = lipgloss.NewStyle().
			Foreground(TextMutedColor).
			Padding(0, 2)

	// Header styles section headings inside a tab.
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimaryColor)

	// Selected styles the row under the cursor.
	Selected = lipgloss.NewStyle().
			Bold(true).
			Foreground(AccentColor)

	// Muted styles secondary row text.
	Muted = lipgloss.NewStyle().
		Foreground(TextMutedColor)

	// Notice styles the status line for git operations.
	Notice = lipgloss.NewStyle().
		Foreground(TextDescriptionColor).
		Italic(true)

	// NoticeError styles a failed-operation status line.
	NoticeError = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// Pane draws the outer panel border.
	Pane = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)
)

// ForLevel returns the style for a log level name.
func ForLevel(level string) lipgloss.Style {
	switch level {
	case "error":
		return lipgloss.NewStyle().Foreground(ErrorColor)
	case "warn":
		return lipgloss.NewStyle().Foreground(WarningColor)
	case "debug":
		return lipgloss.NewStyle().Foreground(TextMutedColor)
	default:
		return lipgloss.NewStyle().Foreground(TextDescriptionColor)
	}
}
