package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dailyd/internal/engine"
	"dailyd/internal/model"
	"dailyd/internal/schedule"
	"dailyd/internal/store"
	"dailyd/internal/uds"
)

// TaskStatusEntry is the wire form of one task's state in a status response.
type TaskStatusEntry struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	Deadline         string `json:"deadline"`
	RemainingSec     int64  `json:"remaining_sec"`
	RemainingDisplay string `json:"remaining_display"`
	LastActivityAt   string `json:"last_activity_at,omitempty"`
}

// StatusData is the payload of a "status" response.
type StatusData struct {
	Tasks []TaskStatusEntry `json:"tasks"`
}

// DoneParams marks a task as done, optionally at a given instant.
type DoneParams struct {
	TaskID string `json:"task_id"`
	At     string `json:"at,omitempty"` // RFC3339; defaults to now
}

// SettingsData is the wire form of GlobalSettings.
type SettingsData struct {
	SleepStart                  string  `json:"sleep_start"`
	SleepEnd                    string  `json:"sleep_end"`
	SleepCorrectionAdvanceHours float64 `json:"sleep_correction_advance_hours"`
	CycleDeadlineAdvanceHours   float64 `json:"cycle_deadline_advance_hours"`
}

// SettingsSetParams carries a partial settings update; nil fields are left
// unchanged.
type SettingsSetParams struct {
	SleepStart                  *string  `json:"sleep_start,omitempty"`
	SleepEnd                    *string  `json:"sleep_end,omitempty"`
	SleepCorrectionAdvanceHours *float64 `json:"sleep_correction_advance_hours,omitempty"`
	CycleDeadlineAdvanceHours   *float64 `json:"cycle_deadline_advance_hours,omitempty"`
}

func SettingsToData(gs model.GlobalSettings) SettingsData {
	return SettingsData{
		SleepStart:                  gs.SleepStart.String(),
		SleepEnd:                    gs.SleepEnd.String(),
		SleepCorrectionAdvanceHours: gs.SleepCorrectionAdvanceHours,
		CycleDeadlineAdvanceHours:   gs.CycleDeadlineAdvanceHours,
	}
}

func (d *Daemon) registerHandlers() {
	d.server.Handle("ping", func(req *uds.Request) *uds.Response {
		return uds.SuccessResponse(map[string]string{"status": "ok"})
	})

	d.server.Handle("scan", func(req *uds.Request) *uds.Response {
		d.eng.OnTick()
		return uds.SuccessResponse(map[string]string{"status": "scanned"})
	})

	d.server.Handle("shutdown", func(req *uds.Request) *uds.Response {
		d.log(engine.LogLevelInfo, "shutdown requested via UDS")
		go d.Shutdown()
		return uds.SuccessResponse(map[string]string{"status": "shutdown_accepted"})
	})

	d.server.Handle("status", d.handleStatus)
	d.server.Handle("done", d.handleDone)
	d.server.Handle("settings_get", d.handleSettingsGet)
	d.server.Handle("settings_set", d.handleSettingsSet)
}

// handleStatus runs a fresh tick so the response reflects this instant, then
// returns the snapshot joined with task names.
func (d *Daemon) handleStatus(req *uds.Request) *uds.Response {
	d.eng.OnTick()

	tasks, err := d.tasks.ListTasks()
	if err != nil {
		return uds.ErrorResponse(uds.ErrCodeInternal, fmt.Sprintf("list tasks: %v", err))
	}
	states := d.eng.CurrentStatuses()

	data := StatusData{Tasks: make([]TaskStatusEntry, 0, len(tasks))}
	for _, t := range tasks {
		st, ok := states[t.ID]
		if !ok {
			continue
		}
		entry := TaskStatusEntry{
			ID:               t.ID,
			Name:             t.Name,
			Status:           string(st.Status),
			Deadline:         st.Deadline.Format(time.RFC3339),
			RemainingSec:     int64(st.Remaining.Seconds()),
			RemainingDisplay: schedule.FormatRemaining(st.Remaining),
		}
		if t.LastActivityAt != nil {
			entry.LastActivityAt = t.LastActivityAt.Format(time.RFC3339)
		}
		data.Tasks = append(data.Tasks, entry)
	}
	return uds.SuccessResponse(data)
}

func (d *Daemon) handleDone(req *uds.Request) *uds.Response {
	var params DoneParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse params: %v", err))
	}
	if params.TaskID == "" {
		return uds.ErrorResponse(uds.ErrCodeValidation, "task_id is required")
	}

	at := time.Now()
	if params.At != "" {
		parsed, err := time.Parse(time.RFC3339, params.At)
		if err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse at: %v", err))
		}
		at = parsed
	}

	if err := d.eng.ForceActivity(params.TaskID, at); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uds.ErrorResponse(uds.ErrCodeNotFound, err.Error())
		}
		return uds.ErrorResponse(uds.ErrCodeInternal, err.Error())
	}

	d.eng.OnTick()
	return uds.SuccessResponse(map[string]string{"status": "done", "task_id": params.TaskID})
}

func (d *Daemon) handleSettingsGet(req *uds.Request) *uds.Response {
	return uds.SuccessResponse(SettingsToData(d.settings.Get()))
}

func (d *Daemon) handleSettingsSet(req *uds.Request) *uds.Response {
	var params SettingsSetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse params: %v", err))
	}

	// Validate everything before mutating: a bad field rejects the whole
	// update rather than applying it partially.
	var sleepStart, sleepEnd *model.TimeOfDay
	if params.SleepStart != nil {
		t, err := model.ParseTimeOfDay(*params.SleepStart)
		if err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		sleepStart = &t
	}
	if params.SleepEnd != nil {
		t, err := model.ParseTimeOfDay(*params.SleepEnd)
		if err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		sleepEnd = &t
	}

	err := d.settings.Update(func(gs *model.GlobalSettings) {
		if sleepStart != nil {
			gs.SleepStart = *sleepStart
		}
		if sleepEnd != nil {
			gs.SleepEnd = *sleepEnd
		}
		if params.SleepCorrectionAdvanceHours != nil {
			gs.SleepCorrectionAdvanceHours = *params.SleepCorrectionAdvanceHours
		}
		if params.CycleDeadlineAdvanceHours != nil {
			gs.CycleDeadlineAdvanceHours = *params.CycleDeadlineAdvanceHours
		}
	})
	if err != nil {
		return uds.ErrorResponse(uds.ErrCodeInternal, fmt.Sprintf("persist settings: %v", err))
	}

	d.eng.OnTick()
	return uds.SuccessResponse(SettingsToData(d.settings.Get()))
}
