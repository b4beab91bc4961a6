// Package model defines the data structures for dailyd's tasks, settings, and
// engine configuration.
package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultCycleHours applies when a task has neither a daily reset time nor an
// explicit cycle length.
const DefaultCycleHours = 24

// Task is a recurring obligation tied to an external process. The engine
// never mutates a Task directly; LastActivityAt is written through the store.
type Task struct {
	ID                  string     `yaml:"id"`
	Name                string     `yaml:"name"`
	MonitoringSignature string     `yaml:"monitoring_signature"`
	LaunchSignature     string     `yaml:"launch_signature,omitempty"`
	DailyReset          *TimeOfDay `yaml:"daily_reset,omitempty"`
	CycleHours          int        `yaml:"cycle_hours,omitempty"`
	MandatorySlots      []TimeOfDay `yaml:"mandatory_slots,omitempty"`
	MandatorySlotsEnabled bool      `yaml:"mandatory_slots_enabled,omitempty"`
	LastActivityAt      *time.Time `yaml:"last_activity_at,omitempty"`
}

// NewTask creates a task with a fresh id and normalized fields.
func NewTask(name, monitoringSignature string) Task {
	t := Task{
		ID:                  uuid.NewString(),
		Name:                name,
		MonitoringSignature: monitoringSignature,
	}
	t.Normalize()
	return t
}

// EffectiveCycle is the rolling cycle length used when no daily reset is set.
func (t Task) EffectiveCycle() time.Duration {
	hours := t.CycleHours
	if hours <= 0 {
		hours = DefaultCycleHours
	}
	return time.Duration(hours) * time.Hour
}

// Normalize sorts and deduplicates mandatory slots.
func (t *Task) Normalize() {
	if len(t.MandatorySlots) == 0 {
		return
	}
	sort.Slice(t.MandatorySlots, func(i, j int) bool {
		return t.MandatorySlots[i].Minutes() < t.MandatorySlots[j].Minutes()
	})
	out := t.MandatorySlots[:1]
	for _, s := range t.MandatorySlots[1:] {
		if s.Minutes() != out[len(out)-1].Minutes() {
			out = append(out, s)
		}
	}
	t.MandatorySlots = out
}

// Validate checks the invariants a stored task must satisfy.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task has no id")
	}
	if t.MonitoringSignature == "" {
		return fmt.Errorf("task %s: empty monitoring_signature", t.ID)
	}
	if t.CycleHours < 0 {
		return fmt.Errorf("task %s: cycle_hours must be positive, got %d", t.ID, t.CycleHours)
	}
	if t.DailyReset != nil && !t.DailyReset.Valid() {
		return fmt.Errorf("task %s: invalid daily_reset %s", t.ID, t.DailyReset)
	}
	for _, s := range t.MandatorySlots {
		if !s.Valid() {
			return fmt.Errorf("task %s: invalid mandatory slot %s", t.ID, s)
		}
	}
	return nil
}

// RecordActivity sets the last-activity timestamp, clamped so it never lands
// in the future relative to now.
func (t *Task) RecordActivity(instant, now time.Time) {
	if instant.After(now) {
		instant = now
	}
	t.LastActivityAt = &instant
}
