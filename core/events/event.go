package events

import (
	"sync"

	"sharepool/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that carry a generic attribute map. Sinks that
// persist or stream events (indexer, websocket hub) rely on it.
type Payload interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(evt Event) { f(evt) }

// Buffer holds events produced during a unit of work. Nothing reaches the
// downstream emitter until Flush, so a discarded transition publishes nothing.
type Buffer struct {
	mu      sync.Mutex
	pending []Event
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Emit records the event.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, evt)
	b.mu.Unlock()
}

// Events returns a copy of the buffered events in emission order.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.pending))
	copy(out, b.pending)
	return out
}

// Reset drops the buffered events.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.pending = nil
	b.mu.Unlock()
}

// Flush forwards buffered events to dst in order and empties the buffer.
func (b *Buffer) Flush(dst Emitter) []Event {
	b.mu.Lock()
	flushed := b.pending
	b.pending = nil
	b.mu.Unlock()
	if dst != nil {
		for _, evt := range flushed {
			dst.Emit(evt)
		}
	}
	return flushed
}

// Fanout delivers every event to each registered emitter.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Emitter
}

// NewFanout builds a fanout over the supplied emitters, skipping nils.
func NewFanout(sinks ...Emitter) *Fanout {
	f := &Fanout{}
	for _, sink := range sinks {
		f.Add(sink)
	}
	return f
}

// Add registers another emitter.
func (f *Fanout) Add(sink Emitter) {
	if sink == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
}

func (f *Fanout) Emit(evt Event) {
	f.mu.RLock()
	sinks := append([]Emitter(nil), f.sinks...)
	f.mu.RUnlock()
	for _, sink := range sinks {
		sink.Emit(evt)
	}
}
