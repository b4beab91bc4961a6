package alert

import (
	"testing"
	"time"

	"dailyd/internal/model"
	"dailyd/internal/schedule"
)

func testSettings() model.GlobalSettings {
	return model.GlobalSettings{
		SleepStart:                  model.TimeOfDay{Hour: 0, Minute: 0},
		SleepEnd:                    model.TimeOfDay{Hour: 8, Minute: 0},
		SleepCorrectionAdvanceHours: 1,
		CycleDeadlineAdvanceHours:   2,
	}
}

func assessment(status model.TaskStatus, deadline, now time.Time) schedule.Assessment {
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return schedule.Assessment{Status: status, Deadline: deadline, Remaining: remaining}
}

func TestShouldFire_Window(t *testing.T) {
	task := model.Task{ID: "t1", MonitoringSignature: "/bin/game"}
	deadline := time.Date(2026, 4, 10, 20, 0, 0, 0, time.UTC) // daytime: 2h lead

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"too_early", deadline.Add(-3 * time.Hour), false},
		{"at_warning_instant", deadline.Add(-2 * time.Hour), true},
		{"inside_window", deadline.Add(-30 * time.Minute), true},
		{"at_deadline", deadline, false},
		{"past_deadline", deadline.Add(time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler()
			a := assessment(model.StatusCompleted, deadline, tt.now)
			if got := s.ShouldFire(task, a, testSettings(), tt.now); got != tt.want {
				t.Errorf("ShouldFire(now=%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestShouldFire_SleepWindowLead(t *testing.T) {
	task := model.Task{ID: "t1", MonitoringSignature: "/bin/game"}
	// 05:00 deadline falls inside the 00:00–08:00 sleep window: 1h lead, not 2h.
	deadline := time.Date(2026, 4, 10, 5, 0, 0, 0, time.UTC)
	s := NewScheduler()

	early := deadline.Add(-90 * time.Minute)
	if s.ShouldFire(task, assessment(model.StatusCompleted, deadline, early), testSettings(), early) {
		t.Error("90m before a sleep-window deadline is outside the 1h lead")
	}

	inLead := deadline.Add(-45 * time.Minute)
	if !s.ShouldFire(task, assessment(model.StatusCompleted, deadline, inLead), testSettings(), inLead) {
		t.Error("45m before a sleep-window deadline should fire")
	}
}

func TestShouldFire_NeverWhileRunning(t *testing.T) {
	task := model.Task{ID: "t1", MonitoringSignature: "/bin/game"}
	deadline := time.Date(2026, 4, 10, 20, 0, 0, 0, time.UTC)
	now := deadline.Add(-time.Hour)

	s := NewScheduler()
	if s.ShouldFire(task, assessment(model.StatusRunning, deadline, now), testSettings(), now) {
		t.Error("a running task must not warn")
	}
}

func TestShouldFire_AtMostOncePerDeadline(t *testing.T) {
	task := model.Task{ID: "t1", MonitoringSignature: "/bin/game"}
	deadline := time.Date(2026, 4, 10, 20, 0, 0, 0, time.UTC)
	s := NewScheduler()

	fired := 0
	// Simulate ticks every 10 minutes across the whole warning window.
	for now := deadline.Add(-2 * time.Hour); now.Before(deadline); now = now.Add(10 * time.Minute) {
		a := assessment(model.StatusCompleted, deadline, now)
		if s.ShouldFire(task, a, testSettings(), now) {
			s.MarkFired(task.ID, a.Deadline)
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("fired %d times for one deadline, want exactly 1", fired)
	}
}

func TestShouldFire_NewDeadlineRearms(t *testing.T) {
	task := model.Task{ID: "t1", MonitoringSignature: "/bin/game"}
	s := NewScheduler()

	first := time.Date(2026, 4, 10, 20, 0, 0, 0, time.UTC)
	now := first.Add(-time.Hour)
	if !s.ShouldFire(task, assessment(model.StatusCompleted, first, now), testSettings(), now) {
		t.Fatal("first deadline should fire")
	}
	s.MarkFired(task.ID, first)

	// The deadline rolled over to the next cycle: a fresh warning is due.
	second := first.Add(24 * time.Hour)
	now = second.Add(-time.Hour)
	if !s.ShouldFire(task, assessment(model.StatusCompleted, second, now), testSettings(), now) {
		t.Error("rolled-over deadline should re-arm the warning")
	}
}

func TestPrune(t *testing.T) {
	s := NewScheduler()
	s.MarkFired("gone", time.Now())
	s.MarkFired("kept", time.Now())

	s.Prune(map[string]bool{"kept": true})

	if _, ok := s.Watermark("gone"); ok {
		t.Error("removed task's watermark should be pruned")
	}
	if _, ok := s.Watermark("kept"); !ok {
		t.Error("live task's watermark should survive pruning")
	}
}
