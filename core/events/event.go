package events

// Event represents a structured state change emitted by a native module.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, journal).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects emitted events so the caller can release them only once the
// surrounding state transition commits.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Drain returns the buffered events and resets the buffer.
func (b *Buffer) Drain() []Event {
	if b == nil {
		return nil
	}
	out := b.events
	b.events = nil
	return out
}

// Reset drops buffered events without returning them.
func (b *Buffer) Reset() {
	if b != nil {
		b.events = nil
	}
}

