// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/charmbracelet/lipgloss"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#5E81F4")
	// SuccessColor indicates verified payments and successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4") // Teal
	// WarningColor marks payments waiting on a reviewer.
	WarningColor = lipgloss.Color("#FFE66D") // Yellow
	// ErrorColor marks rejected payments and failures.
	ErrorColor = lipgloss.Color("#FF6B6B") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3") // Light teal
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// TableHeaderStyle is used for table headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("#333"))

	// TableCellStyle formats table cells with appropriate padding.
	TableCellStyle = lipgloss.NewStyle().
			PaddingRight(2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	ReviewIcon  = "👀"
	ChartIcon   = "📊"
	BankIcon    = "🏦"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a section title.
func FormatTitle(title string) string {
	return TitleStyle.Render(title)
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	boxContent := lipgloss.JoinVertical(
		lipgloss.Left,
		boxTitle,
		content,
	)

	return BoxStyle.Render(boxContent)
}

// StatusStyle picks the color for a decision status.
func StatusStyle(status model.DecisionStatus) lipgloss.Style {
	switch status {
	case model.StatusAutoVerified:
		return SuccessStyle
	case model.StatusQueuedForReview:
		return WarningStyle
	case model.StatusRejected:
		return ErrorStyle
	default:
		return InfoStyle
	}
}

// StatusIcon picks the icon for a decision status.
func StatusIcon(status model.DecisionStatus) string {
	switch status {
	case model.StatusAutoVerified:
		return SuccessIcon
	case model.StatusQueuedForReview:
		return ReviewIcon
	case model.StatusRejected:
		return ErrorIcon
	default:
		return WarningIcon
	}
}

// PriorityStyle picks the color for a review priority.
func PriorityStyle(p model.ReviewPriority) lipgloss.Style {
	switch p {
	case model.PriorityHigh:
		return ErrorStyle
	case model.PriorityMedium:
		return WarningStyle
	default:
		return SubtleStyle
	}
}
