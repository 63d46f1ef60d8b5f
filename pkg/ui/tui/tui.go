package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"conflictmap/pkg/ui"
)

var _ ui.TUI = (*TUI)(nil)

// TUI represents the terminal user interface
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a new TUI instance
func NewTUI(workers, totalFrames int) *TUI {
	model := NewModel(workers, totalFrames)
	return &TUI{
		program: tea.NewProgram(model, tea.WithAltScreen()),
		model:   model,
	}
}

// Start runs the TUI until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Model exposes the state the TUI renders
func (t *TUI) Model() *Model {
	return t.model
}

// QueueFrame adds a month to the frame queue
func (t *TUI) QueueFrame(label string, events int) {
	t.Send(FrameQueuedMsg{Label: label, Events: events})
}

// StartFrame notifies the TUI that a capture has started
func (t *TUI) StartFrame(label string) {
	t.Send(FrameStartMsg{Label: label})
}

// CompleteFrame notifies the TUI that a frame was saved
func (t *TUI) CompleteFrame(label string, size int64) {
	t.Send(FrameCompleteMsg{Label: label, Size: size})
}

// SkipFrame notifies the TUI that a frame was reused
func (t *TUI) SkipFrame(label string) {
	t.Send(FrameSkippedMsg{Label: label})
}

// FailFrame notifies the TUI that a frame failed
func (t *TUI) FailFrame(label string, err error) {
	t.Send(FrameErrorMsg{Label: label, Error: err})
}

// Complete marks the run as finished
func (t *TUI) Complete() {
	t.Send(DoneMsg{})
}

// UpdatePacing updates the capture pacing status
func (t *TUI) UpdatePacing(used, max int, resetAt time.Time) {
	t.Send(PacingUpdateMsg{Used: used, Max: max, ResetAt: resetAt})
}

// CircuitChanged reports a capture breaker transition
func (t *TUI) CircuitChanged(state string) {
	t.Send(CircuitStateMsg{State: state})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogSuccess logs a success message
func (t *TUI) LogSuccess(format string, args ...interface{}) {
	t.Log("SUCCESS", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}

// IsPaused returns whether the frame queue is paused
func (t *TUI) IsPaused() bool {
	t.model.mu.RLock()
	defer t.model.mu.RUnlock()
	return t.model.isPaused
}
