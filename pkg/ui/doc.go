// Package ui holds the terminal output of a build: colored print helpers,
// a one-line frame progress display and run notifications.
//
// Reporter is the surface the pipeline reports frame progress through. The
// bubbletea dashboard in the tui subpackage implements the richer TUI
// interface on top of it.
package ui
