package monitor

import (
	"fmt"
	"os/exec"
	"strings"
)

// ProcessObserver lists the signatures of currently running processes,
// comparable to Task.MonitoringSignature.
type ProcessObserver interface {
	ListRunningSignatures() ([]string, error)
}

// PSObserver enumerates processes via ps(1). The comm column carries the
// executable path as launched, which is what users configure as a
// monitoring signature.
type PSObserver struct {
	runner func() ([]byte, error)
}

func NewPSObserver() *PSObserver {
	return &PSObserver{
		runner: func() ([]byte, error) {
			return exec.Command("ps", "-axo", "comm=").Output()
		},
	}
}

func (o *PSObserver) ListRunningSignatures() ([]string, error) {
	out, err := o.runner()
	if err != nil {
		return nil, fmt.Errorf("ps: %w", err)
	}
	var sigs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			sigs = append(sigs, line)
		}
	}
	return sigs, nil
}
