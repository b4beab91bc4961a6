package engine

import "time"

// Clock supplies the current local time. The engine never calls time.Now
// directly so tests can drive the timeline.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }
