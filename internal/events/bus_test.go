package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	received := make(chan Event, 1)
	bus.Subscribe(EventActivityRecorded, func(ev Event) {
		received <- ev
	})

	bus.Publish(EventActivityRecorded, map[string]interface{}{"task_id": "t1"})

	select {
	case ev := <-received:
		if ev.Type != EventActivityRecorded {
			t.Errorf("type: got %q", ev.Type)
		}
		if ev.Data["task_id"] != "t1" {
			t.Errorf("data: got %v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	received := make(chan Event, 1)
	bus.Subscribe(EventAlertFired, func(ev Event) {
		received <- ev
	})

	bus.Publish(EventTaskStarted, map[string]interface{}{"task_id": "t1"})

	select {
	case ev := <-received:
		t.Fatalf("subscriber got an event of another type: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	unsub := bus.Subscribe(EventTaskStarted, func(ev Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(EventTaskStarted, nil)
	time.Sleep(100 * time.Millisecond)
	unsub()
	bus.Publish(EventTaskStarted, nil)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("got %d deliveries, want 1", count)
	}
}

func TestBus_PanickingSubscriberSurvives(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	received := make(chan struct{}, 2)
	bus.Subscribe(EventAlertFired, func(ev Event) {
		received <- struct{}{}
		panic("subscriber exploded")
	})

	bus.Publish(EventAlertFired, nil)
	bus.Publish(EventAlertFired, nil)

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("delivery %d never arrived after earlier panic", i+1)
		}
	}
}
