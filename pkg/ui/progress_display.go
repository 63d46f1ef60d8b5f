package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay is a single-line frame progress display
type ProgressDisplay struct {
	mu           sync.Mutex
	out          io.Writer
	country      string
	totalFrames  int
	completed    int
	skipped      int
	failed       int
	currentFrame string
	startTime    time.Time
	bytesSaved   int64
	isDebug      bool
}

// NewProgressDisplay creates a progress display for totalFrames months
func NewProgressDisplay(country string, totalFrames int, debug bool) *ProgressDisplay {
	return NewProgressDisplayTo(os.Stdout, country, totalFrames, debug)
}

// NewProgressDisplayTo creates a progress display writing to out
func NewProgressDisplayTo(out io.Writer, country string, totalFrames int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:         out,
		country:     country,
		totalFrames: totalFrames,
		startTime:   time.Now(),
		isDebug:     debug,
	}
}

// QueueFrame is a no-op; the total is fixed up front
func (p *ProgressDisplay) QueueFrame(label string, events int) {}

// StartFrame marks the start of a capture
func (p *ProgressDisplay) StartFrame(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentFrame = label
	if !p.isDebug {
		p.printProgress()
	}
}

// CompleteFrame marks a frame as saved
func (p *ProgressDisplay) CompleteFrame(label string, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	p.bytesSaved += size
	if p.currentFrame == label {
		p.currentFrame = ""
	}

	if !p.isDebug {
		p.printProgress()
	} else {
		fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), label, formatBytes(size))
	}
}

// SkipFrame marks a frame as reused from a previous run
func (p *ProgressDisplay) SkipFrame(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++
	if p.isDebug {
		fmt.Fprintf(p.out, "%s %s reused\n", Dim("•"), label)
	}
}

// FailFrame marks a frame as failed
func (p *ProgressDisplay) FailFrame(label string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++
	if p.currentFrame == label {
		p.currentFrame = ""
	}

	if !p.isDebug {
		p.printProgress()
	} else {
		fmt.Fprintf(p.out, "%s Failed: %s - %v\n", Red("✗"), label, err)
	}
}

// printProgress prints the progress line
func (p *ProgressDisplay) printProgress() {
	done := p.completed + p.skipped + p.failed

	progress := 0.0
	if p.totalFrames > 0 {
		progress = float64(done) / float64(p.totalFrames)
	}
	if progress > 1 {
		progress = 1
	}
	barWidth := 20
	filled := int(progress * float64(barWidth))
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %s • %s",
		Cyan(p.country),
		bar,
		done,
		p.totalFrames,
		formatBytes(p.bytesSaved),
		p.calculateETA(),
	)

	if p.currentFrame != "" {
		line += fmt.Sprintf(" • %s", p.currentFrame)
	}
	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.failed)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the final tally
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Fprintf(p.out, "\n\n%s Rendered %d frames for %s\n",
		Green("✓"),
		p.completed,
		p.country,
	)
	fmt.Fprintf(p.out, "  %s %s in %s\n",
		Dim("•"),
		formatBytes(p.bytesSaved),
		formatDuration(elapsed),
	)
	if p.skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d frames reused\n", Dim("•"), p.skipped)
	}
	if p.failed > 0 {
		fmt.Fprintf(p.out, "  %s %d frames failed\n", Dim("•"), p.failed)
	}
}

// calculateETA estimates time remaining from the frames captured so far
func (p *ProgressDisplay) calculateETA() string {
	if p.completed == 0 {
		return "calculating..."
	}

	remaining := p.totalFrames - p.completed - p.skipped - p.failed
	if remaining <= 0 {
		return formatDuration(0)
	}
	perFrame := time.Since(p.startTime) / time.Duration(p.completed)
	return formatDuration(perFrame * time.Duration(remaining))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
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
