package model

import "time"

// GlobalSettings is the user-wide configuration shared by the classifier and
// the alert scheduler. The engine reads an immutable snapshot per tick;
// mutation goes through the settings store only.
type GlobalSettings struct {
	SleepStart                  TimeOfDay `yaml:"sleep_start"`
	SleepEnd                    TimeOfDay `yaml:"sleep_end"`
	SleepCorrectionAdvanceHours float64   `yaml:"sleep_correction_advance_hours"`
	CycleDeadlineAdvanceHours   float64   `yaml:"cycle_deadline_advance_hours"`
}

func DefaultSettings() GlobalSettings {
	return GlobalSettings{
		SleepStart:                  TimeOfDay{Hour: 0, Minute: 0},
		SleepEnd:                    TimeOfDay{Hour: 8, Minute: 0},
		SleepCorrectionAdvanceHours: 1.0,
		CycleDeadlineAdvanceHours:   2.0,
	}
}

func (s GlobalSettings) SleepWindow() Window {
	return Window{Start: s.SleepStart, End: s.SleepEnd}
}

// SleepLead is the warning lead applied when a deadline falls inside the
// sleep window.
func (s GlobalSettings) SleepLead() time.Duration {
	return hoursToDuration(s.SleepCorrectionAdvanceHours)
}

// CycleLead is the default advance-notice lead.
func (s GlobalSettings) CycleLead() time.Duration {
	return hoursToDuration(s.CycleDeadlineAdvanceHours)
}

func hoursToDuration(h float64) time.Duration {
	if h < 0 {
		return 0
	}
	return time.Duration(h * float64(time.Hour))
}
