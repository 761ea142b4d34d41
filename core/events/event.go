package events

// Event is a structured state change emitted by an engine transition.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers such as the RPC layer
// or the stake indexer.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding everything. Engines default
// to it so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer queues events raised during a state transition so they can be
// forwarded only once the transition's writes have committed. A transition
// that fails drops its buffer and subscribers never hear about it.
type Buffer struct {
	events []Event
}

// NewBuffer creates an empty event buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Emit implements the Emitter interface by queueing the event.
func (b *Buffer) Emit(evt Event) {
	b.events = append(b.events, evt)
}

// FlushTo forwards the queued events to the sink in emission order and empties
// the buffer.
func (b *Buffer) FlushTo(sink Emitter) {
	if sink != nil {
		for _, evt := range b.events {
			sink.Emit(evt)
		}
	}
	b.events = nil
}
