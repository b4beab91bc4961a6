package model

import "fmt"

// TaskStatus is the display state of a tracked task at an instant.
// running takes precedence over both completion states.
type TaskStatus string

const (
	StatusRunning    TaskStatus = "running"
	StatusCompleted  TaskStatus = "completed"
	StatusIncomplete TaskStatus = "incomplete"
)

var validTaskStatuses = map[TaskStatus]bool{
	StatusRunning:    true,
	StatusCompleted:  true,
	StatusIncomplete: true,
}

func ValidTaskStatus(s TaskStatus) bool {
	return validTaskStatuses[s]
}

func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(s)
	if !ValidTaskStatus(st) {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return st, nil
}
