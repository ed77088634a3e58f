package pickertui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)
	descriptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	createStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)
