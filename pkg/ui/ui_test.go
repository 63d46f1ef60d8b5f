package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"conflictmap/pkg/config"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	fails bool
}

func (r *recordingSender) Send(title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, title+"|"+message)
	if r.fails {
		return errors.New("no notification daemon")
	}
	return nil
}

func TestNotifier(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.NotificationConfig
		wantPrinted bool
		wantSent    int
	}{
		{
			name:        "desktop sends and prints",
			cfg:         config.NotificationConfig{Enabled: true, OnComplete: true, OnError: true, NotificationType: "desktop"},
			wantPrinted: true,
			wantSent:    2,
		},
		{
			name:        "disabled is silent",
			cfg:         config.NotificationConfig{Enabled: false, OnComplete: true, OnError: true, NotificationType: "desktop"},
			wantPrinted: false,
			wantSent:    0,
		},
		{
			name:        "none is silent",
			cfg:         config.NotificationConfig{Enabled: true, OnComplete: true, OnError: true, NotificationType: "none"},
			wantPrinted: false,
			wantSent:    0,
		},
		{
			name:        "on_complete off drops success",
			cfg:         config.NotificationConfig{Enabled: true, OnComplete: false, OnError: true, NotificationType: "desktop"},
			wantPrinted: true,
			wantSent:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			sender := &recordingSender{fails: true}
			n := NewNotifierWithSender(tt.cfg, sender, &out)

			n.SendSuccess("BUILD COMPLETE", "49 frames")
			n.SendError("BUILD FAILED", "browser crashed")

			assert.Equal(t, tt.wantPrinted, out.Len() > 0)
			assert.Len(t, sender.sent, tt.wantSent)
		})
	}
}

func TestTerminalNotifierHasNoSender(t *testing.T) {
	n := NewNotifier(config.NotificationConfig{Enabled: true, NotificationType: "terminal"})
	assert.Nil(t, n.sender)
}

func TestXMLEscape(t *testing.T) {
	assert.Equal(t, "a &amp; b &lt;c&gt; &quot;d&quot;", xmlEscape(`a & b <c> "d"`))
}

func TestProgressDisplay(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressDisplayTo(&out, "Ethiopia", 3, false)

	p.QueueFrame("Jan 2015", 4)
	p.StartFrame("Jan 2015")
	p.CompleteFrame("Jan 2015", 2048)
	p.SkipFrame("Feb 2015")
	p.StartFrame("Mar 2015")
	p.FailFrame("Mar 2015", errors.New("timeout"))
	p.Complete()

	text := out.String()
	assert.Contains(t, text, "3/3")
	assert.Contains(t, text, "1 failed")
	assert.Contains(t, text, "Rendered 1 frames for Ethiopia")
	assert.Contains(t, text, "1 frames reused")
	assert.Contains(t, text, "2.0 KB")
}

func TestProgressDisplayDebug(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressDisplayTo(&out, "Ethiopia", 2, true)

	p.StartFrame("Jan 2015")
	p.CompleteFrame("Jan 2015", 10)
	p.FailFrame("Feb 2015", errors.New("timeout"))

	text := out.String()
	assert.Contains(t, text, "Jan 2015 • 10 B")
	assert.Contains(t, text, "Failed: Feb 2015 - timeout")
	assert.False(t, strings.Contains(text, "\r"))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h30m", formatDuration(90*time.Minute))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
}

func TestPrintHelpers(t *testing.T) {
	var out bytes.Buffer
	saved := Output
	Output = &out
	defer func() { Output = saved }()

	PrintInfo("Country", "Ethiopia")
	PrintError("Failed", errors.New("boom"))
	PrintSuccess("done")
	PrintLogo()

	text := out.String()
	assert.Contains(t, text, "Ethiopia")
	assert.Contains(t, text, "Failed: boom")
	assert.Contains(t, text, "C O N F L I C T M A P")
}

func TestNopReporterSatisfiesReporter(t *testing.T) {
	var r Reporter = NopReporter{}
	r.QueueFrame("Jan 2015", 1)
	r.Complete()

	var _ Reporter = (*ProgressDisplay)(nil)
}
