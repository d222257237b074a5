package scheduler

import (
	"sync"

	"gauntlet/internal/harness"
	"gauntlet/pkg/logging"
)

// EventType classifies scheduler events.
type EventType string

const (
	// EventTaskStarted fires when a task's first attempt begins.
	EventTaskStarted EventType = "task-started"
	// EventTaskRetried fires when a task is about to get another attempt.
	EventTaskRetried EventType = "task-retried"
	// EventTaskFinished fires once per task with its final state.
	EventTaskFinished EventType = "task-finished"
)

// Event is a progress notification for reporters and the agent.
type Event struct {
	Type    EventType
	Key     harness.TaskKey
	State   harness.TaskState
	Attempt int
	Message string
}

// subscriberBuffer is each subscriber channel's capacity. Publishing never
// blocks; slow subscribers lose events instead of stalling the run.
const subscriberBuffer = 100

// Events fans scheduler events out to subscribers.
type Events struct {
	mu          sync.RWMutex
	subscribers []chan Event
	closed      bool
}

// NewEvents creates an event fan-out.
func NewEvents() *Events {
	return &Events{}
}

// Subscribe registers a new subscriber. Channels are closed by Close.
func (e *Events) Subscribe() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if e.closed {
		close(ch)
		return ch
	}
	e.subscribers = append(e.subscribers, ch)
	return ch
}

// Publish delivers an event to all subscribers without blocking.
func (e *Events) Publish(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return
	}
	for _, ch := range e.subscribers {
		select {
		case ch <- event:
		default:
			logging.Debug("scheduler", "Dropping %s event for %s: subscriber full", event.Type, event.Key)
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (e *Events) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for _, ch := range e.subscribers {
		close(ch)
	}
	e.subscribers = nil
}
