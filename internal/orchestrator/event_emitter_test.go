package orchestrator

import "testing"

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1)
	e.Emit(Event{Type: EventTaskStarted})
	e.Emit(Event{Type: EventTaskCompleted})

	if got := e.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}
	ev := <-e.Events()
	if ev.Type != EventTaskStarted {
		t.Errorf("first event = %s, want %s", ev.Type, EventTaskStarted)
	}
}

func TestEventEmitter_CloseAndNil(t *testing.T) {
	e := NewEventEmitter(4)
	e.Close()
	e.Close()
	e.Emit(Event{Type: EventRunDone})
	if _, ok := <-e.Events(); ok {
		t.Error("closed emitter delivered an event")
	}

	var none *EventEmitter
	none.Emit(Event{Type: EventRunDone})
	if none.DroppedCount() != 0 {
		t.Error("nil emitter should count nothing")
	}
}
