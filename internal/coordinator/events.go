package coordinator

// Event is a coordinator lifecycle event. Minimal and stable: name + task id
// and optional fields via key/values.
type Event struct {
	Name   string
	TaskID string
	Fields map[string]any
}

// EventPublisher receives lifecycle events from the coordinator.
// Implementations should be lightweight and non-blocking; Publish must not
// panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
