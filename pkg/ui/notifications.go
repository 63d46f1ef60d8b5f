package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"conflictmap/pkg/config"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, strconv.Quote(message), strconv.Quote(title))
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("conflictmap").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}

// platformSender picks the desktop notifier for the current OS
func platformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier prints run notifications and optionally raises desktop ones
type Notifier struct {
	sender NotificationSender
	out    io.Writer
	cfg    config.NotificationConfig
}

// NewNotifier creates a Notifier from the notifications config section.
// Type "terminal" only prints, "desktop" also raises a desktop notification
// and "none" stays silent.
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender
	if strings.EqualFold(cfg.NotificationType, "desktop") {
		sender = platformSender()
	}
	return NewNotifierWithSender(cfg, sender, os.Stdout)
}

// NewNotifierWithSender creates a Notifier with an explicit sender and output
func NewNotifierWithSender(cfg config.NotificationConfig, sender NotificationSender, out io.Writer) *Notifier {
	if out == nil {
		out = io.Discard
	}
	return &Notifier{sender: sender, out: out, cfg: cfg}
}

func (n *Notifier) silent() bool {
	return !n.cfg.Enabled || strings.EqualFold(n.cfg.NotificationType, "none")
}

func (n *Notifier) deliver(title, message string) {
	if n.sender != nil {
		// Desktop notifications are best effort
		_ = n.sender.Send(title, message)
	}
}

// SendNotification prints an informational notification
func (n *Notifier) SendNotification(title, message string) {
	if n.silent() {
		return
	}
	fmt.Fprintf(n.out, "\n%s: %s\n", Cyan(title), Yellow(message))
	n.deliver(title, message)
}

// SendError reports a failed run when on_error is set
func (n *Notifier) SendError(title, message string) {
	if n.silent() || !n.cfg.OnError {
		return
	}
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(title), Red(message))
	n.deliver(title, message)
}

// SendSuccess reports a finished run when on_complete is set
func (n *Notifier) SendSuccess(title, message string) {
	if n.silent() || !n.cfg.OnComplete {
		return
	}
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(title), Green(message))
	n.deliver(title, message)
}
