package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `
╔════════════════════════════════════════════════════╗
║   C O N F L I C T M A P                            ║
║   monthly conflict events, rendered frame by frame ║
╚════════════════════════════════════════════════════╝`

// View renders the entire TUI
func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, logoStyle.Width(m.width).Render(logo))
	sections = append(sections, m.renderOverall())

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftColumn(),
		"  ",
		m.renderRightColumn(),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderOverall renders the progress bar across all frames
func (m *Model) renderOverall() string {
	bar := m.overall
	bar.Width = m.width - 30
	if bar.Width < 10 {
		bar.Width = 10
	}
	done := m.completed + m.skipped + m.failed
	pct := m.progressLocked()
	status := GetProgressBarStyle(pct * 100).Render(fmt.Sprintf(" %d/%d frames", done, m.totalFrames))
	if m.done {
		status += successStyle.Render("  DONE")
	}
	return lipgloss.NewStyle().Padding(0, 2).Render(bar.ViewAs(pct) + status)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderActivePanel(width),
		m.renderQueuePanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderPacingPanel(width),
		m.renderLogsPanel(width),
	)
}

// renderStatsPanel renders the statistics panel
func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN STATS ")

	elapsed := time.Since(m.sessionStartTime)
	avg, eta := m.statsLocked()

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Session Time:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Frames Saved:"), statsValueStyle.Render(fmt.Sprintf("%d", m.completed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Frames Reused:"), statsValueStyle.Render(fmt.Sprintf("%d", m.skipped))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Total Size:"), statsValueStyle.Render(FormatBytes(m.totalSize))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Avg Capture:"), speedStyle.Render(formatDuration(avg))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("ETA:"), statsValueStyle.Render(formatDuration(eta))),
		fmt.Sprintf("%s %d", statsLabelStyle.Render("Workers:"), m.workers),
	}
	if m.failed > 0 {
		stats = append(stats, errorStyle.Render(fmt.Sprintf("✗ %d failed", m.failed)))
	}
	if m.isPaused {
		stats = append(stats, warningStyle.Render("⏸  PAUSED"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

// renderActivePanel renders the frames currently in the browser
func (m *Model) renderActivePanel(width int) string {
	title := titleStyle.Render(" CAPTURING ")

	active := m.framesIn(FrameCapturing)
	if len(active) == 0 {
		content := lipgloss.NewStyle().Foreground(muted).Render("Idle")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var rows []string
	for _, frame := range active {
		rows = append(rows, fmt.Sprintf("%s %s %s",
			m.spinner.View(),
			queueItemActiveStyle.Render(frame.Label),
			lipgloss.NewStyle().Foreground(muted).Render(
				fmt.Sprintf("%d events • %s", frame.Events, formatDuration(time.Since(frame.StartTime))),
			),
		))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

// renderQueuePanel renders the frame queue
func (m *Model) renderQueuePanel(width int) string {
	title := titleStyle.Render(" FRAME QUEUE ")

	pending := m.framesIn(FramePending)
	completed := m.framesIn(FrameCompleted)
	failed := m.framesIn(FrameFailed)

	var items []string
	if n := len(pending); n > 0 {
		items = append(items, warningStyle.Render(fmt.Sprintf("⏳ %d pending", n)))
		for i := 0; i < 3 && i < n; i++ {
			items = append(items, queueItemStyle.Render("• "+pending[i].Label))
		}
		if n > 3 {
			items = append(items, lipgloss.NewStyle().Foreground(muted).Render(fmt.Sprintf("  ... and %d more", n-3)))
		}
	}

	if n := len(completed); n > 0 {
		items = append(items, "", successStyle.Render(fmt.Sprintf("✓ %d completed", n)))
		start := n - 3
		if start < 0 {
			start = 0
		}
		for _, frame := range completed[start:] {
			items = append(items, queueItemCompletedStyle.Render("✓ "+frame.Label))
		}
	}

	for _, frame := range failed {
		items = append(items, errorStyle.Render("✗ "+frame.Label))
	}

	if len(items) == 0 {
		items = append(items, lipgloss.NewStyle().Foreground(muted).Render("Nothing queued"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

// renderPacingPanel renders the capture pacing and breaker status
func (m *Model) renderPacingPanel(width int) string {
	title := titleStyle.Render(" CAPTURE PACING ")

	usage := 0.0
	if m.paceMax > 0 {
		usage = float64(m.paceUsed) / float64(m.paceMax) * 100
	}
	if usage > 100 {
		usage = 100
	}

	barWidth := width - 8
	if barWidth < 1 {
		barWidth = 1
	}
	filled := int(usage * float64(barWidth) / 100)

	barStyle := GetPacingStyle(usage)
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", barWidth-filled))

	resetIn := time.Until(m.paceResetAt)
	if resetIn < 0 {
		resetIn = 0
	}

	circuit := circuitStyle(m.circuitState).Render(m.circuitState)

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Captures:"),
			barStyle.Render(fmt.Sprintf("%d/%d per min (%.0f%%)", m.paceUsed, m.paceMax, usage))),
		bar,
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Window resets in:"), statsValueStyle.Render(formatDuration(resetIn))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Circuit:"), circuit),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" RUN LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 25
	if maxMsgLen < 10 {
		maxMsgLen = 10
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		text := log.Message
		if len(text) > maxMsgLen {
			text = text[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(text)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(muted).Render("No logs yet...")
	}

	logsHeight := m.height - 35
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Navigation:
    q/Q      - Quit the application
    p/P      - Pause/Resume the frame queue
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Status Indicators:
    ` + successStyle.Render("Green") + `    - Captured/Healthy
    ` + warningStyle.Render("Orange") + `   - Pending/Paced
    ` + errorStyle.Render("Red") + `      - Failed/Circuit open

  Icons:
    ⏳       - Pending frame
    ✓        - Saved frame
    ✗        - Failed frame
    ⏸        - Paused
`
	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
