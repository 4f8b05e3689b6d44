package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorBg        = lipgloss.Color("235")
	colorFg        = lipgloss.Color("252")
	colorFgDim     = lipgloss.Color("245")
	colorRed       = lipgloss.Color("203")
	colorGreen     = lipgloss.Color("114")
	colorYellow    = lipgloss.Color("221")
	colorBlue      = lipgloss.Color("111")
	colorSelection = lipgloss.Color("237")
)

var (
	styleHeaderTitle = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	styleHeaderValue = lipgloss.NewStyle().Foreground(colorFg).Bold(true)
	styleHeaderLabel = lipgloss.NewStyle().Foreground(colorFgDim)

	styleTableHeader = lipgloss.NewStyle().Foreground(colorFgDim).Bold(true)
	styleTableRow    = lipgloss.NewStyle().Foreground(colorFg)
	styleTableRowSel = lipgloss.NewStyle().Background(colorSelection).Foreground(colorFg).Bold(true)

	styleDetailLabel = lipgloss.NewStyle().Foreground(colorFgDim)

	styleFooter       = lipgloss.NewStyle().Foreground(colorFgDim)
	styleFooterKey    = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	styleSearchPrompt = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	stylePaused       = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)
