package model

import (
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.SleepStart != (TimeOfDay{0, 0}) || s.SleepEnd != (TimeOfDay{8, 0}) {
		t.Errorf("unexpected sleep window: %v – %v", s.SleepStart, s.SleepEnd)
	}
	if s.SleepLead() != time.Hour {
		t.Errorf("SleepLead = %v, want 1h", s.SleepLead())
	}
	if s.CycleLead() != 2*time.Hour {
		t.Errorf("CycleLead = %v, want 2h", s.CycleLead())
	}
}

func TestLeadsClampNegative(t *testing.T) {
	s := GlobalSettings{SleepCorrectionAdvanceHours: -3, CycleDeadlineAdvanceHours: -1}
	if s.SleepLead() != 0 {
		t.Errorf("negative sleep lead should clamp to 0, got %v", s.SleepLead())
	}
	if s.CycleLead() != 0 {
		t.Errorf("negative cycle lead should clamp to 0, got %v", s.CycleLead())
	}
}

func TestFractionalLead(t *testing.T) {
	s := GlobalSettings{CycleDeadlineAdvanceHours: 1.5}
	if s.CycleLead() != 90*time.Minute {
		t.Errorf("CycleLead(1.5) = %v, want 90m", s.CycleLead())
	}
}
