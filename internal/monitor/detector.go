// Package monitor observes which tracked tasks have a running external
// process and detects the running→stopped edge that records activity.
package monitor

import (
	"runtime"
	"strings"

	"dailyd/internal/model"
)

// Observation is the per-task result of one detector pass.
type Observation struct {
	IsRunning bool
	// JustStarted is true on the rising edge: not running on the previous
	// tick, running now.
	JustStarted bool
	// JustStopped is true when the task was running on the previous tick and
	// is not running now. It is the only trigger for an activity write.
	JustStopped bool
}

// Signatures is a set of observed running-process signatures with optional
// case folding for platforms with case-insensitive paths.
type Signatures struct {
	caseInsensitive bool
	set             map[string]struct{}
}

func NewSignatures(caseInsensitive bool, sigs []string) Signatures {
	s := Signatures{caseInsensitive: caseInsensitive, set: make(map[string]struct{}, len(sigs))}
	for _, sig := range sigs {
		s.set[s.fold(sig)] = struct{}{}
	}
	return s
}

func (s Signatures) Contains(sig string) bool {
	_, ok := s.set[s.fold(sig)]
	return ok
}

func (s Signatures) fold(sig string) string {
	if s.caseInsensitive {
		return strings.ToLower(sig)
	}
	return sig
}

// DefaultCaseInsensitive reports whether signature matching should fold case
// on this platform.
func DefaultCaseInsensitive() bool {
	switch runtime.GOOS {
	case "windows", "darwin":
		return true
	default:
		return false
	}
}

// Detector retains each task's previous-tick running flag so the falling edge
// can be detected. A task that starts and exits entirely between two ticks is
// never observed and leaves no activity record; this is a known limitation of
// poll-based detection.
//
// Not safe for concurrent use; the engine serializes ticks.
type Detector struct {
	prev map[string]bool
}

func NewDetector() *Detector {
	return &Detector{prev: make(map[string]bool)}
}

// Update advances the detector state for one task against this tick's
// observed signatures.
func (d *Detector) Update(task model.Task, observed Signatures) Observation {
	isRunning := observed.Contains(task.MonitoringSignature)
	wasRunning := d.prev[task.ID]
	d.prev[task.ID] = isRunning
	return Observation{
		IsRunning:   isRunning,
		JustStarted: isRunning && !wasRunning,
		JustStopped: wasRunning && !isRunning,
	}
}

// Prune drops state for tasks no longer tracked.
func (d *Detector) Prune(live map[string]bool) {
	for id := range d.prev {
		if !live[id] {
			delete(d.prev, id)
		}
	}
}
