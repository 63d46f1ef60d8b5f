// Package logger provides structured logging for the conflict map pipeline.
//
// It wraps zerolog behind a small Logger interface so pipeline stages can carry
// fields (stage, month, worker) without depending on zerolog directly. Console
// output is colored and human readable; when a log file is configured the same
// events are also appended to it as JSON lines.
//
// Basic usage:
//
//	logger.Initialize(&cfg.Logging)
//	logger.Info("Pipeline starting")
//	logger.WithField("month", "Jan 2015").Info("Frame captured")
//
// Components usually take a Logger in their constructor and fall back to
// GetLogger when given nil. Tests use NewNopLogger or NewTestLogger, the
// latter capturing every entry with its merged fields for assertions.
package logger
