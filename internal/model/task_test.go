package model

import (
	"testing"
	"time"
)

func TestNewTask(t *testing.T) {
	a := NewTask("Daily Quest", "/usr/bin/game")
	b := NewTask("Daily Quest", "/usr/bin/game")

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected non-empty ids")
	}
	if a.ID == b.ID {
		t.Errorf("expected unique ids, both %q", a.ID)
	}
	if a.Name != "Daily Quest" || a.MonitoringSignature != "/usr/bin/game" {
		t.Errorf("unexpected task fields: %+v", a)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("new task should validate: %v", err)
	}
}

func TestEffectiveCycle(t *testing.T) {
	tests := []struct {
		cycleHours int
		want       time.Duration
	}{
		{0, 24 * time.Hour},
		{24, 24 * time.Hour},
		{6, 6 * time.Hour},
		{48, 48 * time.Hour},
	}
	for _, tt := range tests {
		task := Task{CycleHours: tt.cycleHours}
		if got := task.EffectiveCycle(); got != tt.want {
			t.Errorf("EffectiveCycle(cycle_hours=%d) = %v, want %v", tt.cycleHours, got, tt.want)
		}
	}
}

func TestNormalize_SortsAndDedupesSlots(t *testing.T) {
	task := Task{
		MandatorySlots: []TimeOfDay{
			{18, 0}, {12, 0}, {18, 0}, {6, 30},
		},
	}
	task.Normalize()

	want := []TimeOfDay{{6, 30}, {12, 0}, {18, 0}}
	if len(task.MandatorySlots) != len(want) {
		t.Fatalf("got %d slots, want %d: %v", len(task.MandatorySlots), len(want), task.MandatorySlots)
	}
	for i, s := range want {
		if task.MandatorySlots[i] != s {
			t.Errorf("slot[%d] = %v, want %v", i, task.MandatorySlots[i], s)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := Task{ID: "t1", MonitoringSignature: "/bin/game"}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid, got: %v", err)
	}

	tests := []struct {
		name string
		task Task
	}{
		{"missing_id", Task{MonitoringSignature: "/bin/game"}},
		{"missing_signature", Task{ID: "t1"}},
		{"negative_cycle", Task{ID: "t1", MonitoringSignature: "/bin/game", CycleHours: -1}},
		{"invalid_reset", Task{ID: "t1", MonitoringSignature: "/bin/game", DailyReset: &TimeOfDay{25, 0}}},
		{"invalid_slot", Task{ID: "t1", MonitoringSignature: "/bin/game", MandatorySlots: []TimeOfDay{{12, 61}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.task.Validate(); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestRecordActivity_ClampsFutureInstant(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	var task Task
	task.RecordActivity(now.Add(-time.Hour), now)
	if !task.LastActivityAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("past instant should be kept, got %v", task.LastActivityAt)
	}

	task.RecordActivity(now.Add(time.Hour), now)
	if !task.LastActivityAt.Equal(now) {
		t.Errorf("future instant should clamp to now, got %v", task.LastActivityAt)
	}
}
