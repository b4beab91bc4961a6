// Package notify provides desktop notification support.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Notifier delivers a user-visible alert for a task. Implementations are
// best-effort; callers treat failures as non-fatal.
type Notifier interface {
	Notify(taskID, title, message string) error
}

// Desktop sends native desktop notifications: osascript on macOS,
// notify-send on Linux.
type Desktop struct {
	appName string
}

func NewDesktop(appName string) *Desktop {
	return &Desktop{appName: appName}
}

func (d *Desktop) Notify(taskID, title, message string) error {
	switch runtime.GOOS {
	case "darwin":
		return sendOSAScript(title, message)
	case "linux":
		return sendNotifySend(d.appName, title, message)
	default:
		return fmt.Errorf("desktop notifications unsupported on %s", runtime.GOOS)
	}
}

func sendOSAScript(title, message string) error {
	title = escapeAppleScript(title)
	message = escapeAppleScript(message)

	script := fmt.Sprintf(
		`display notification %q with title %q sound name "default"`,
		message, title,
	)

	cmd := exec.Command("osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func sendNotifySend(appName, title, message string) error {
	cmd := exec.Command("notify-send", "--app-name", appName, title, message)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
