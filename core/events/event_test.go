package events

import (
	"testing"

	"sharepool/core/types"
)

type testEvent struct{ evt *types.Event }

func (e testEvent) EventType() string   { return e.evt.Type }
func (e testEvent) Event() *types.Event { return e.evt }

func TestBufferFlushesInOrder(t *testing.T) {
	buf := NewBuffer()
	buf.Emit(testEvent{&types.Event{Type: "a"}})
	buf.Emit(testEvent{&types.Event{Type: "b"}})
	buf.Emit(nil)

	var seen []string
	flushed := buf.Flush(EmitterFunc(func(evt Event) { seen = append(seen, evt.EventType()) }))
	if len(flushed) != 2 {
		t.Fatalf("expected 2 flushed events, got %d", len(flushed))
	}
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("unexpected order: %v", seen)
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("buffer not emptied after flush")
	}
}

func TestBufferResetDropsEvents(t *testing.T) {
	buf := NewBuffer()
	buf.Emit(testEvent{&types.Event{Type: "a"}})
	buf.Reset()
	count := 0
	buf.Flush(EmitterFunc(func(Event) { count++ }))
	if count != 0 {
		t.Fatalf("expected no events after reset, got %d", count)
	}
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	var first, second int
	f := NewFanout(EmitterFunc(func(Event) { first++ }), nil)
	f.Add(EmitterFunc(func(Event) { second++ }))
	f.Emit(testEvent{&types.Event{Type: "x"}})
	if first != 1 || second != 1 {
		t.Fatalf("unexpected deliveries: %d %d", first, second)
	}
}
