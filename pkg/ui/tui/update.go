package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the TUI

// FrameQueuedMsg is sent when a month is queued for rendering
type FrameQueuedMsg struct {
	Label  string
	Events int
}

// FrameStartMsg is sent when a worker starts capturing a month
type FrameStartMsg struct {
	Label string
}

// FrameCompleteMsg is sent when a frame is saved
type FrameCompleteMsg struct {
	Label string
	Size  int64
}

// FrameSkippedMsg is sent when a frame is reused from a previous run
type FrameSkippedMsg struct {
	Label string
}

// FrameErrorMsg is sent when a frame fails
type FrameErrorMsg struct {
	Label string
	Error error
}

// PacingUpdateMsg is sent to update capture pacing status
type PacingUpdateMsg struct {
	Used    int
	Max     int
	ResetAt time.Time
}

// CircuitStateMsg is sent when the capture breaker changes state
type CircuitStateMsg struct {
	State string
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// DoneMsg marks the end of the run; the UI stays up until the user quits
type DoneMsg struct{}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case FrameQueuedMsg:
		m.AddFrame(msg.Label, msg.Events)
		return m, nil

	case FrameStartMsg:
		m.StartFrame(msg.Label)
		m.AddLogMessage("INFO", "Capturing "+msg.Label)
		return m, nil

	case FrameCompleteMsg:
		m.CompleteFrame(msg.Label, msg.Size)
		m.AddLogMessage("SUCCESS", "Saved "+msg.Label)
		return m, nil

	case FrameSkippedMsg:
		m.SkipFrame(msg.Label)
		return m, nil

	case FrameErrorMsg:
		m.FailFrame(msg.Label, msg.Error)
		text := "Failed " + msg.Label
		if msg.Error != nil {
			text += " - " + msg.Error.Error()
		}
		m.AddLogMessage("ERROR", text)
		return m, nil

	case PacingUpdateMsg:
		m.UpdatePacing(msg.Used, msg.Max, msg.ResetAt)
		return m, nil

	case CircuitStateMsg:
		m.SetCircuitState(msg.State)
		m.AddLogMessage("WARN", "Capture circuit "+msg.State)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case DoneMsg:
		m.mu.Lock()
		m.done = true
		m.addLogLocked("SUCCESS", "Run finished, press q to exit")
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "p", "P":
		m.mu.Lock()
		m.isPaused = !m.isPaused
		if m.isPaused {
			m.addLogLocked("WARN", "Frame queue paused by user")
		} else {
			m.addLogLocked("INFO", "Frame queue resumed by user")
		}
		m.mu.Unlock()
		return m, nil

	case "?":
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// Commands

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
