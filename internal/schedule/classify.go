// Package schedule determines what state a tracked task is in at a given
// instant. Everything here is a pure function of the task record and the
// clock; side effects (activity writes, notification delivery) belong to the
// engine.
package schedule

import (
	"fmt"
	"time"

	"dailyd/internal/model"
)

// Assessment is the classifier output for one task at one instant.
type Assessment struct {
	Status    model.TaskStatus
	Deadline  time.Time
	Remaining time.Duration
}

// Classify returns the task's display status, its current deadline, and the
// time remaining until that deadline. isRunning comes from the activity
// detector and takes precedence over both completion states; deadline and
// remaining are still computed for display.
//
// Sleep-window correction deliberately does not appear here: it shifts when a
// warning fires, never what state the task is in.
func Classify(task model.Task, isRunning bool, now time.Time) Assessment {
	deadline := Deadline(task, now)
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	a := Assessment{Deadline: deadline, Remaining: remaining}
	switch {
	case isRunning:
		a.Status = model.StatusRunning
	case task.LastActivityAt == nil:
		a.Status = model.StatusIncomplete
	case missedMandatorySlot(task, now):
		a.Status = model.StatusIncomplete
	case !now.Before(deadline):
		a.Status = model.StatusIncomplete
	default:
		a.Status = model.StatusCompleted
	}
	return a
}

// FormatRemaining renders a remaining duration for display: days and hours
// above a day, whole hours above an hour, minutes otherwise.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour:
		days := int(d / (24 * time.Hour))
		hours := int(d % (24 * time.Hour) / time.Hour)
		return fmt.Sprintf("%dd %dh", days, hours)
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
}
