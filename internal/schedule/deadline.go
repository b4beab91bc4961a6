package schedule

import (
	"time"

	"dailyd/internal/model"
)

// Deadline computes the instant by which the task must run again to stay
// completed. A task with no recorded activity is overdue immediately, so its
// deadline is now.
func Deadline(task model.Task, now time.Time) time.Time {
	last := task.LastActivityAt
	if last == nil {
		return now
	}
	if task.DailyReset != nil {
		// Next occurrence of the reset time strictly after the last activity.
		d := task.DailyReset.At(*last)
		if !d.After(*last) {
			d = d.AddDate(0, 0, 1)
		}
		return d
	}
	return last.Add(task.EffectiveCycle())
}

// missedMandatorySlot reports whether any enabled mandatory slot has elapsed
// since the last activity. Slots are checked per calendar day from the day of
// the last activity through today; a slot counts when it falls strictly after
// the last activity and at or before now.
func missedMandatorySlot(task model.Task, now time.Time) bool {
	if !task.MandatorySlotsEnabled || len(task.MandatorySlots) == 0 || task.LastActivityAt == nil {
		return false
	}
	last := *task.LastActivityAt
	day := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, last.Location())
	for !day.After(now) {
		for _, slot := range task.MandatorySlots {
			t := slot.At(day)
			if t.After(last) && !t.After(now) {
				return true
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return false
}
