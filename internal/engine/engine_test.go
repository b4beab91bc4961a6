package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyd/internal/model"
)

type fakeStore struct {
	mu        sync.Mutex
	tasks     []model.Task
	updateErr map[string]error
}

func (s *fakeStore) ListTasks() ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *fakeStore) GetTask(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, fmt.Errorf("task %s not found", id)
}

func (s *fakeStore) UpdateTask(task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErr[task.ID]; err != nil {
		return err
	}
	for i, t := range s.tasks {
		if t.ID == task.ID {
			s.tasks[i] = task
			return nil
		}
	}
	return fmt.Errorf("task %s not found", task.ID)
}

type fakeSettings struct {
	settings model.GlobalSettings
}

func (s *fakeSettings) Get() model.GlobalSettings { return s.settings }

type fakeObserver struct {
	mu   sync.Mutex
	sigs []string
	err  error
}

func (o *fakeObserver) ListRunningSignatures() ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sigs, o.err
}

func (o *fakeObserver) set(sigs []string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sigs = sigs
	o.err = err
}

type fakeNotifier struct {
	calls chan string
	err   error
}

func (n *fakeNotifier) Notify(taskID, title, message string) error {
	n.calls <- taskID
	return n.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store    *fakeStore
	observer *fakeObserver
	notifier *fakeNotifier
	clock    *fakeClock
	eng      *Engine
}

func newHarness(t *testing.T, tasks ...model.Task) *harness {
	t.Helper()
	caseSensitive := false
	h := &harness{
		store:    &fakeStore{tasks: tasks, updateErr: map[string]error{}},
		observer: &fakeObserver{},
		notifier: &fakeNotifier{calls: make(chan string, 16)},
		clock:    &fakeClock{now: time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)},
	}
	h.eng = New(Options{
		Tasks:           h.store,
		Settings:        &fakeSettings{settings: model.DefaultSettings()},
		Observer:        h.observer,
		Notifier:        h.notifier,
		Clock:           h.clock,
		CaseInsensitive: &caseSensitive,
	})
	t.Cleanup(h.eng.Stop)
	return h
}

func (h *harness) waitNotify(t *testing.T) string {
	t.Helper()
	select {
	case id := <-h.notifier.calls:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return ""
	}
}

func TestOnTick_StopRecordsActivityVisibleSameTick(t *testing.T) {
	task := model.NewTask("Daily Quest", "/bin/game")
	h := newHarness(t, task)

	// Tick 1: running.
	h.observer.set([]string{"/bin/game"}, nil)
	h.eng.OnTick()
	st := h.eng.CurrentStatuses()[task.ID]
	assert.Equal(t, model.StatusRunning, st.Status)

	// Tick 2: stopped. The activity write must land before classification, so
	// this very tick already reports completed.
	h.clock.advance(time.Minute)
	h.observer.set(nil, nil)
	h.eng.OnTick()

	st = h.eng.CurrentStatuses()[task.ID]
	assert.Equal(t, model.StatusCompleted, st.Status)

	stored, err := h.store.GetTask(task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastActivityAt)
	assert.True(t, stored.LastActivityAt.Equal(h.clock.Now()))
}

func TestOnTick_NeverPlayedIsIncomplete(t *testing.T) {
	task := model.NewTask("Daily Quest", "/bin/game")
	h := newHarness(t, task)

	h.eng.OnTick()
	st := h.eng.CurrentStatuses()[task.ID]
	assert.Equal(t, model.StatusIncomplete, st.Status)
}

func TestOnTick_NotifiesOncePerDeadline(t *testing.T) {
	task := model.NewTask("Daily Quest", "/bin/game")
	last := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC).Add(-23 * time.Hour)
	task.LastActivityAt = &last // deadline in 1h, inside the 2h cycle lead
	h := newHarness(t, task)

	h.eng.OnTick()
	assert.Equal(t, task.ID, h.waitNotify(t))

	// Further ticks before the deadline must not warn again.
	h.clock.advance(10 * time.Minute)
	h.eng.OnTick()
	h.clock.advance(10 * time.Minute)
	h.eng.OnTick()
	h.eng.Stop()

	select {
	case id := <-h.notifier.calls:
		t.Fatalf("unexpected second notification for %s", id)
	default:
	}
}

func TestOnTick_FailedDeliveryIsNotRetried(t *testing.T) {
	task := model.NewTask("Daily Quest", "/bin/game")
	last := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC).Add(-23 * time.Hour)
	task.LastActivityAt = &last
	h := newHarness(t, task)
	h.notifier.err = errors.New("notification center unavailable")

	h.eng.OnTick()
	h.waitNotify(t)

	h.clock.advance(10 * time.Minute)
	h.eng.OnTick()
	h.eng.Stop()

	select {
	case <-h.notifier.calls:
		t.Fatal("failed delivery must not be retried for the same deadline")
	default:
	}
}

func TestOnTick_ObserverFailureDegrades(t *testing.T) {
	task := model.NewTask("Daily Quest", "/bin/game")
	last := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC).Add(-time.Hour)
	task.LastActivityAt = &last
	h := newHarness(t, task)
	h.observer.set(nil, errors.New("ps unavailable"))

	// The tick still completes and classifies with nothing running.
	h.eng.OnTick()
	st, ok := h.eng.CurrentStatuses()[task.ID]
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, st.Status)
}

func TestOnTick_UpdateFailureIsolatedPerTask(t *testing.T) {
	broken := model.NewTask("Broken", "/bin/broken")
	healthy := model.NewTask("Healthy", "/bin/healthy")
	h := newHarness(t, broken, healthy)
	h.store.updateErr[broken.ID] = errors.New("disk full")

	// Both running, then both stop: the failing write must not stop the
	// healthy task's activity from landing.
	h.observer.set([]string{"/bin/broken", "/bin/healthy"}, nil)
	h.eng.OnTick()
	h.clock.advance(time.Minute)
	h.observer.set(nil, nil)
	h.eng.OnTick()

	storedHealthy, err := h.store.GetTask(healthy.ID)
	require.NoError(t, err)
	assert.NotNil(t, storedHealthy.LastActivityAt)

	storedBroken, err := h.store.GetTask(broken.ID)
	require.NoError(t, err)
	assert.Nil(t, storedBroken.LastActivityAt)

	// Both tasks still appear in the snapshot.
	statuses := h.eng.CurrentStatuses()
	assert.Len(t, statuses, 2)
}

func TestForceActivity(t *testing.T) {
	task := model.NewTask("Daily Quest", "/bin/game")
	h := newHarness(t, task)

	at := h.clock.Now().Add(-time.Hour)
	require.NoError(t, h.eng.ForceActivity(task.ID, at))

	stored, err := h.store.GetTask(task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastActivityAt)
	assert.True(t, stored.LastActivityAt.Equal(at))

	h.eng.OnTick()
	assert.Equal(t, model.StatusCompleted, h.eng.CurrentStatuses()[task.ID].Status)
}

func TestForceActivity_ClampsFutureInstant(t *testing.T) {
	task := model.NewTask("Daily Quest", "/bin/game")
	h := newHarness(t, task)

	require.NoError(t, h.eng.ForceActivity(task.ID, h.clock.Now().Add(time.Hour)))

	stored, err := h.store.GetTask(task.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastActivityAt.Equal(h.clock.Now()))
}

func TestForceActivity_UnknownTask(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.eng.ForceActivity("missing", h.clock.Now()))
}

func TestCurrentStatuses_ReturnsCopy(t *testing.T) {
	task := model.NewTask("Daily Quest", "/bin/game")
	h := newHarness(t, task)
	h.eng.OnTick()

	snap := h.eng.CurrentStatuses()
	snap[task.ID] = TaskState{Status: model.StatusRunning}

	assert.Equal(t, model.StatusIncomplete, h.eng.CurrentStatuses()[task.ID].Status,
		"mutating a returned snapshot must not affect the engine")
}

func TestOnTick_RemovedTaskDroppedFromSnapshot(t *testing.T) {
	task := model.NewTask("Daily Quest", "/bin/game")
	h := newHarness(t, task)
	h.eng.OnTick()
	require.Contains(t, h.eng.CurrentStatuses(), task.ID)

	h.store.mu.Lock()
	h.store.tasks = nil
	h.store.mu.Unlock()

	h.eng.OnTick()
	assert.NotContains(t, h.eng.CurrentStatuses(), task.ID)
}
