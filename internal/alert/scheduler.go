// Package alert decides when an advance-warning notification fires for a
// task and remembers which deadlines were already warned about.
package alert

import (
	"time"

	"dailyd/internal/model"
	"dailyd/internal/schedule"
)

// Scheduler holds the per-task notification watermark: the deadline instant
// for which a warning was already delivered. A watermark is superseded as
// soon as the task's computed deadline moves, so every new cycle gets a fresh
// chance to warn.
//
// Not safe for concurrent use; the engine serializes ticks.
type Scheduler struct {
	watermarks map[string]time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{watermarks: make(map[string]time.Time)}
}

// ShouldFire reports whether an advance warning must fire now for the task.
// A warning fires inside [deadline-lead, deadline): never while the task is
// running, never after the deadline has passed (that is overdue, not a
// warning), and never twice for the same (task, deadline) pair.
//
// The lead is the sleep-correction advance when the deadline lands inside the
// sleep window, the regular cycle advance otherwise.
func (s *Scheduler) ShouldFire(task model.Task, a schedule.Assessment, settings model.GlobalSettings, now time.Time) bool {
	if a.Status == model.StatusRunning {
		return false
	}
	lead := settings.CycleLead()
	if settings.SleepWindow().Contains(a.Deadline) {
		lead = settings.SleepLead()
	}
	warningAt := a.Deadline.Add(-lead)
	if now.Before(warningAt) || !now.Before(a.Deadline) {
		return false
	}
	if wm, ok := s.watermarks[task.ID]; ok && wm.Equal(a.Deadline) {
		return false
	}
	return true
}

// MarkFired records that a warning for this deadline was dispatched. Called
// even when delivery fails: at most one attempt per (task, deadline).
func (s *Scheduler) MarkFired(taskID string, deadline time.Time) {
	s.watermarks[taskID] = deadline
}

// Watermark returns the warned deadline for a task, if any.
func (s *Scheduler) Watermark(taskID string) (time.Time, bool) {
	wm, ok := s.watermarks[taskID]
	return wm, ok
}

// Prune drops watermarks for tasks no longer tracked.
func (s *Scheduler) Prune(live map[string]bool) {
	for id := range s.watermarks {
		if !live[id] {
			delete(s.watermarks, id)
		}
	}
}
