package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FrameState represents the state of a month frame
type FrameState int

const (
	FramePending FrameState = iota
	FrameCapturing
	FrameCompleted
	FrameSkipped
	FrameFailed
)

// FrameItem represents a single month frame
type FrameItem struct {
	Label     string
	Events    int
	Size      int64
	State     FrameState
	StartTime time.Time
	Duration  time.Duration
	Error     error
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner spinner.Model
	overall progress.Model

	// Frame state
	frames       map[string]*FrameItem
	frameOrder   []string
	activeFrames int
	workers      int
	totalFrames  int

	// Stats
	completed        int
	skipped          int
	failed           int
	totalSize        int64
	captureTime      time.Duration
	sessionStartTime time.Time

	// Capture pacing
	paceMax      int
	paceUsed     int
	paceResetAt  time.Time
	circuitState string

	// UI state
	width          int
	height         int
	showHelp       bool
	isPaused       bool
	done           bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model for totalFrames months rendered by workers
func NewModel(workers, totalFrames int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(borderTeal)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:          s,
		overall:          p,
		frames:           make(map[string]*FrameItem),
		workers:          workers,
		totalFrames:      totalFrames,
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
		paceMax:          30,
		circuitState:     "closed",
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// AddFrame queues a month frame
func (m *Model) AddFrame(label string, events int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.frames[label]; exists {
		return
	}
	m.frames[label] = &FrameItem{Label: label, Events: events, State: FramePending}
	m.frameOrder = append(m.frameOrder, label)
}

// StartFrame marks a frame as being captured
func (m *Model) StartFrame(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame, ok := m.frames[label]; ok && frame.State == FramePending {
		frame.State = FrameCapturing
		frame.StartTime = time.Now()
		m.activeFrames++
	}
}

// CompleteFrame marks a frame as saved
func (m *Model) CompleteFrame(label string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame, ok := m.frames[label]
	if !ok || frame.State == FrameCompleted {
		return
	}
	if frame.State == FrameCapturing {
		m.activeFrames--
		frame.Duration = time.Since(frame.StartTime)
		m.captureTime += frame.Duration
	}
	frame.State = FrameCompleted
	frame.Size = size
	m.completed++
	m.totalSize += size
}

// SkipFrame marks a frame as reused from an earlier run
func (m *Model) SkipFrame(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame, ok := m.frames[label]; ok && frame.State == FramePending {
		frame.State = FrameSkipped
		m.skipped++
	}
}

// FailFrame marks a frame as failed
func (m *Model) FailFrame(label string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame, ok := m.frames[label]
	if !ok || frame.State == FrameFailed {
		return
	}
	if frame.State == FrameCapturing {
		m.activeFrames--
	}
	frame.State = FrameFailed
	frame.Error = err
	m.failed++
}

// UpdatePacing updates the capture pacing status
func (m *Model) UpdatePacing(used, max int, resetAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paceUsed = used
	m.paceMax = max
	m.paceResetAt = resetAt
}

// SetCircuitState records the capture breaker state
func (m *Model) SetCircuitState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitState = state
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLogLocked(level, message)
}

func (m *Model) addLogLocked(level, message string) {
	color := labelWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = protestAmber
	case "SUCCESS":
		color = okGreen
	case "INFO":
		color = borderTeal
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

func (m *Model) framesIn(state FrameState) []*FrameItem {
	var out []*FrameItem
	for _, label := range m.frameOrder {
		if frame := m.frames[label]; frame != nil && frame.State == state {
			out = append(out, frame)
		}
	}
	return out
}

// GetActiveFrames returns the frames being captured
func (m *Model) GetActiveFrames() []*FrameItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.framesIn(FrameCapturing)
}

// GetPendingFrames returns the frames still queued
func (m *Model) GetPendingFrames() []*FrameItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.framesIn(FramePending)
}

// GetCompletedFrames returns the frames saved this session
func (m *Model) GetCompletedFrames() []*FrameItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.framesIn(FrameCompleted)
}

// Progress returns the finished fraction of all frames
func (m *Model) Progress() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progressLocked()
}

func (m *Model) progressLocked() float64 {
	if m.totalFrames <= 0 {
		return 0
	}
	done := float64(m.completed+m.skipped+m.failed) / float64(m.totalFrames)
	if done > 1 {
		done = 1
	}
	return done
}

// GetFrameStats returns the average capture time and the remaining estimate
func (m *Model) GetFrameStats() (avg time.Duration, eta time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked()
}

func (m *Model) statsLocked() (avg time.Duration, eta time.Duration) {
	captured := 0
	for _, frame := range m.frames {
		if frame.State == FrameCompleted && frame.Duration > 0 {
			captured++
		}
	}
	if captured == 0 {
		return 0, 0
	}
	avg = m.captureTime / time.Duration(captured)

	remaining := m.totalFrames - m.completed - m.skipped - m.failed
	if remaining > 0 {
		workers := m.workers
		if workers < 1 {
			workers = 1
		}
		eta = avg * time.Duration(remaining) / time.Duration(workers)
	}
	return avg, eta
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
