package xcqrs

import (
	"time"
)

// EventType enumerates internal lifecycle events for the Observer pattern.
type EventType string

const (
	DispatchStart   EventType = "dispatch_start"
	DispatchDone    EventType = "dispatch_done"
	CommandEnqueued EventType = "command_enqueued"
	EventPublished  EventType = "event_published"
	Error           EventType = "error"
)

// BusEvent carries telemetry for observers.
type BusEvent struct {
	Type        EventType
	MessageID   string
	MessageName string
	MessageKind Kind
	EventName   string // set for event_published
	Duration    time.Duration
	Err         error

	// Internal: attached for async dispatch
	observers []Observer
}

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped      uint64 // Events dropped due to full buffer
	Processed    uint64 // Events successfully processed
	ActiveEvents int    // Current queue depth
	Workers      int    // Number of dispatch goroutines
	BufferSize   int    // Channel capacity
}

// Metrics defines observable telemetry for the bus.
type Metrics struct {
	Commands          uint64
	Queries           uint64
	EventsPublished   uint64
	CommandsEnqueued  uint64
	Errors            uint64
	EventsDropped     uint64
	AvgDispatchTimeMs float64
}
