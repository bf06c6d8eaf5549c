package store

// EventEmitter broadcasts change events without the store knowing about SSE.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter discards events.
type NoopEmitter struct{}

// Emit implements EventEmitter.
func (NoopEmitter) Emit(any) {}
