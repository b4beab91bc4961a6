// Package engine drives the periodic tick that keeps task statuses current:
// activity detection, classification, and advance-warning alerts, in that
// order, with a snapshot of the results exposed to consumers.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dailyd/internal/alert"
	"dailyd/internal/events"
	"dailyd/internal/model"
	"dailyd/internal/monitor"
	"dailyd/internal/schedule"
)

// TaskStore is the persistence collaborator for task records. The engine
// writes only LastActivityAt, through UpdateTask.
type TaskStore interface {
	ListTasks() ([]model.Task, error)
	GetTask(id string) (model.Task, error)
	UpdateTask(model.Task) error
}

// SettingsSource yields the settings snapshot read once per tick.
type SettingsSource interface {
	Get() model.GlobalSettings
}

// Notifier delivers an advance-warning alert. Delivery is best-effort; the
// engine never retries a (task, deadline) pair.
type Notifier interface {
	Notify(taskID, title, message string) error
}

// TaskState is the per-task entry of the status snapshot.
type TaskState struct {
	Status    model.TaskStatus
	Deadline  time.Time
	Remaining time.Duration
}

// Options wires the engine's collaborators.
type Options struct {
	Tasks    TaskStore
	Settings SettingsSource
	Observer monitor.ProcessObserver
	Notifier Notifier
	Clock    Clock       // nil → system clock
	Bus      *events.Bus // optional
	Logger   *log.Logger
	LogLevel LogLevel
	// CaseInsensitive overrides the platform default for signature matching.
	CaseInsensitive *bool
	// NotifyTimeout bounds one delivery attempt. Zero → 10s.
	NotifyTimeout time.Duration
}

// Engine owns the detector state, the notification watermarks, and the
// status snapshot. Ticks never overlap: OnTick returns immediately when the
// previous tick is still in flight.
type Engine struct {
	tasks    TaskStore
	settings SettingsSource
	observer monitor.ProcessObserver
	notifier Notifier
	clock    Clock
	bus      *events.Bus
	logger   *log.Logger
	logLevel LogLevel

	detector        *monitor.Detector
	alerts          *alert.Scheduler
	caseInsensitive bool
	notifyTimeout   time.Duration

	mu       sync.RWMutex
	statuses map[string]TaskState

	tickActive atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func New(opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	caseInsensitive := monitor.DefaultCaseInsensitive()
	if opts.CaseInsensitive != nil {
		caseInsensitive = *opts.CaseInsensitive
	}
	notifyTimeout := opts.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		tasks:           opts.Tasks,
		settings:        opts.Settings,
		observer:        opts.Observer,
		notifier:        opts.Notifier,
		clock:           clock,
		bus:             opts.Bus,
		logger:          opts.Logger,
		logLevel:        opts.LogLevel,
		detector:        monitor.NewDetector(),
		alerts:          alert.NewScheduler(),
		caseInsensitive: caseInsensitive,
		notifyTimeout:   notifyTimeout,
		statuses:        make(map[string]TaskState),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// OnTick runs one full engine pass: activity detection, then classification,
// then alert evaluation. The classification phase fans out across tasks and
// completes before any alert decision is made.
func (e *Engine) OnTick() {
	if !e.tickActive.CompareAndSwap(false, true) {
		e.log(LogLevelWarn, "tick skipped: previous tick still running")
		return
	}
	defer e.tickActive.Store(false)

	now := e.clock.Now()
	settings := e.settings.Get()

	tasks, err := e.tasks.ListTasks()
	if err != nil {
		e.log(LogLevelError, "list tasks: %v", err)
		return
	}

	// Phase 1: activity detection. Observer failure degrades to "nothing is
	// running this tick" and is retried on the next tick.
	sigs, err := e.observer.ListRunningSignatures()
	if err != nil {
		e.log(LogLevelWarn, "process enumeration failed, assuming nothing is running: %v", err)
		sigs = nil
	}
	observed := monitor.NewSignatures(e.caseInsensitive, sigs)

	live := make(map[string]bool, len(tasks))
	running := make(map[string]bool, len(tasks))
	for i := range tasks {
		task := &tasks[i]
		live[task.ID] = true

		obs := e.detector.Update(*task, observed)
		running[task.ID] = obs.IsRunning

		if obs.JustStarted {
			e.publish(events.EventTaskStarted, task.ID, nil)
		}
		if obs.JustStopped {
			task.RecordActivity(now, now)
			if err := e.tasks.UpdateTask(*task); err != nil {
				// Isolated per task: the rest of the tick proceeds.
				e.log(LogLevelError, "record activity task=%s: %v", task.ID, err)
				continue
			}
			e.log(LogLevelInfo, "activity recorded task=%s name=%q", task.ID, task.Name)
			e.publish(events.EventActivityRecorded, task.ID, map[string]interface{}{"at": now.Format(time.RFC3339)})
		}
	}
	e.detector.Prune(live)

	// Phase 2: classification. Tasks are independent; the Wait is the
	// barrier before the alert phase.
	assessments := make([]schedule.Assessment, len(tasks))
	g := new(errgroup.Group)
	for i := range tasks {
		i := i
		g.Go(func() error {
			assessments[i] = schedule.Classify(tasks[i], running[tasks[i].ID], now)
			return nil
		})
	}
	_ = g.Wait()

	// Phase 3: alerts.
	for i := range tasks {
		task := tasks[i]
		a := assessments[i]
		if !e.alerts.ShouldFire(task, a, settings, now) {
			continue
		}
		// At most once per (task, deadline), even when delivery fails.
		e.alerts.MarkFired(task.ID, a.Deadline)
		e.dispatchNotification(task, a)
		e.publish(events.EventAlertFired, task.ID, map[string]interface{}{
			"deadline": a.Deadline.Format(time.RFC3339),
		})
	}
	e.alerts.Prune(live)

	states := make(map[string]TaskState, len(tasks))
	for i := range tasks {
		states[tasks[i].ID] = TaskState{
			Status:    assessments[i].Status,
			Deadline:  assessments[i].Deadline,
			Remaining: assessments[i].Remaining,
		}
	}
	e.mu.Lock()
	e.statuses = states
	e.mu.Unlock()
}

// dispatchNotification requests delivery without blocking the tick. A hung
// notifier is abandoned after the configured timeout.
func (e *Engine) dispatchNotification(task model.Task, a schedule.Assessment) {
	title := fmt.Sprintf("%s due soon", task.Name)
	message := fmt.Sprintf("%s is due by %s (%s left)",
		task.Name, a.Deadline.Format("15:04"), schedule.FormatRemaining(a.Remaining))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		done := make(chan error, 1)
		go func() {
			done <- e.notifier.Notify(task.ID, title, message)
		}()
		select {
		case err := <-done:
			if err != nil {
				e.log(LogLevelWarn, "notify task=%s: %v", task.ID, err)
			} else {
				e.log(LogLevelInfo, "alert fired task=%s deadline=%s", task.ID, a.Deadline.Format(time.RFC3339))
			}
		case <-time.After(e.notifyTimeout):
			e.log(LogLevelWarn, "notify task=%s: timed out after %s", task.ID, e.notifyTimeout)
		case <-e.ctx.Done():
		}
	}()
}

// CurrentStatuses returns a copy of the latest per-task snapshot.
func (e *Engine) CurrentStatuses() map[string]TaskState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]TaskState, len(e.statuses))
	for id, st := range e.statuses {
		out[id] = st
	}
	return out
}

// ForceActivity marks a task as done at the given instant, with the same
// effect as a detected running→stopped transition. The instant is clamped so
// it never lands in the future.
func (e *Engine) ForceActivity(taskID string, instant time.Time) error {
	now := e.clock.Now()
	task, err := e.tasks.GetTask(taskID)
	if err != nil {
		return err
	}
	task.RecordActivity(instant, now)
	if err := e.tasks.UpdateTask(task); err != nil {
		return fmt.Errorf("force activity task=%s: %w", taskID, err)
	}
	e.publish(events.EventActivityRecorded, taskID, map[string]interface{}{
		"at":     task.LastActivityAt.Format(time.RFC3339),
		"manual": true,
	})
	return nil
}

// Stop abandons in-flight notification dispatches and waits for their
// goroutines to unwind. Watermark and activity state are never left half
// written: both are updated before dispatch starts.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) publish(t events.EventType, taskID string, extra map[string]interface{}) {
	if e.bus == nil {
		return
	}
	data := map[string]interface{}{"task_id": taskID}
	for k, v := range extra {
		data[k] = v
	}
	e.bus.Publish(t, data)
}

func (e *Engine) log(level LogLevel, format string, args ...any) {
	logAt(e.logger, e.logLevel, level, "engine", format, args...)
}
