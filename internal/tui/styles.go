package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors
var (
	colorPrimary = lipgloss.Color("#0D6EFD")
	colorSuccess = lipgloss.Color("#198754")
	colorError   = lipgloss.Color("#DC3545")
	colorMuted   = lipgloss.Color("#6B7280")
	colorFg      = lipgloss.Color("#F9FAFB")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Bold(true)

	FocusedLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary)

	FieldErrorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			PaddingLeft(2)

	FailureStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorError).
			Padding(0, 1)

	ButtonStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorPrimary).
			Padding(0, 2)

	FocusedButtonStyle = ButtonStyle.
				Underline(true).
				Bold(true)

	DisabledButtonStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSuccess).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)
)
