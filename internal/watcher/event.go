package watcher

import "time"

// EventType is the kind of change observed on a watched file.
type EventType int

const (
	// EventChanged is emitted once a watched file was written or created and has stopped changing.
	EventChanged EventType = iota
	// EventRemoved is emitted when a watched file is deleted or renamed away.
	EventRemoved
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventChanged:
		return "changed"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a settled change on a watched file.
type Event struct {
	Type    EventType
	Path    string
	Size    int64
	ModTime time.Time
}
