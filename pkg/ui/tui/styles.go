package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// The palette follows the rendered map: the dark tile background and the
// three marker colors.
var (
	battleRed    = lipgloss.Color("#fc3535")
	violencePink = lipgloss.Color("#b903bf")
	protestAmber = lipgloss.Color("#f79f25")
	borderTeal   = lipgloss.Color("#3fb8af")
	okGreen      = lipgloss.Color("#6cc24a")
	tileBlack    = lipgloss.Color("#0e1014")
	tilePanel    = lipgloss.Color("#1b1e24")
	labelWhite   = lipgloss.Color("#d8d8d8")
	muted        = lipgloss.Color("#6b6b6b")

	baseStyle = lipgloss.NewStyle().
			Background(tileBlack).
			Foreground(labelWhite)

	logoStyle = lipgloss.NewStyle().
			Foreground(borderTeal).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderTeal).
			Background(tilePanel).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(borderTeal).
			Foreground(tileBlack).
			Bold(true).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().Foreground(borderTeal).Bold(true)
	statsValueStyle = lipgloss.NewStyle().Foreground(labelWhite)
	speedStyle      = lipgloss.NewStyle().Foreground(protestAmber)

	successStyle = lipgloss.NewStyle().Foreground(okGreen).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(battleRed).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(protestAmber).Bold(true)

	// Frame list rows
	queueItemStyle       = lipgloss.NewStyle().PaddingLeft(2)
	queueItemActiveStyle = lipgloss.NewStyle().
				Foreground(protestAmber).
				Bold(true).
				PaddingLeft(2)
	queueItemCompletedStyle = lipgloss.NewStyle().
				Foreground(muted).
				PaddingLeft(2)

	// Bar of the pacing gauge past its fill
	progressEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2c2f36"))

	logTimestampStyle = lipgloss.NewStyle().Foreground(muted)
	logMessageStyle   = lipgloss.NewStyle().Foreground(labelWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(muted).
			Padding(1, 0, 0, 2)
)

// GetProgressBarStyle colors the frame counter by how far the run has got
func GetProgressBarStyle(percentage float64) lipgloss.Style {
	style := lipgloss.NewStyle().Background(tileBlack)
	switch {
	case percentage >= 100:
		return style.Foreground(okGreen)
	case percentage >= 50:
		return style.Foreground(protestAmber)
	default:
		return style.Foreground(violencePink)
	}
}

// GetPacingStyle colors the pacing gauge by how much of the capture window is used
func GetPacingStyle(usage float64) lipgloss.Style {
	switch {
	case usage >= 90:
		return lipgloss.NewStyle().Foreground(battleRed)
	case usage >= 70:
		return lipgloss.NewStyle().Foreground(protestAmber)
	default:
		return lipgloss.NewStyle().Foreground(okGreen)
	}
}

// circuitStyle renders a closed breaker as healthy and anything else as an error
func circuitStyle(state string) lipgloss.Style {
	switch state {
	case "closed", "":
		return successStyle
	case "half-open":
		return warningStyle
	default:
		return errorStyle
	}
}
