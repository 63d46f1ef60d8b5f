package ui

import "time"

// Reporter receives per-frame progress from the pipeline
type Reporter interface {
	QueueFrame(label string, events int)
	StartFrame(label string)
	CompleteFrame(label string, size int64)
	SkipFrame(label string)
	FailFrame(label string, err error)
	Complete()
}

// TUI is an interface for terminal user interfaces
type TUI interface {
	Reporter
	UpdatePacing(used, max int, resetAt time.Time)
	CircuitChanged(state string)
	LogInfo(format string, args ...interface{})
	LogSuccess(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
	IsPaused() bool
}

// NopReporter discards all progress
type NopReporter struct{}

func (NopReporter) QueueFrame(string, int)      {}
func (NopReporter) StartFrame(string)           {}
func (NopReporter) CompleteFrame(string, int64) {}
func (NopReporter) SkipFrame(string)            {}
func (NopReporter) FailFrame(string, error)     {}
func (NopReporter) Complete()                   {}
