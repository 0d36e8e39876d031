package driven

import (
	"time"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

// TaskEvent is one entry in the run/task status feed consumed by the
// presentation layer. Exactly one terminal event is emitted per task.
type TaskEvent struct {
	RunID    string
	TaskID   string
	Platform string
	Status   domain.TaskStatus
	// Records is the number of records produced so far.
	Records int
	// Error is the human-readable failure message, empty on success.
	Error string
	// At is when the event was emitted.
	At time.Time
}

// Terminal reports whether this event closes out its task.
func (e TaskEvent) Terminal() bool {
	return e.Status.Terminal()
}

// StatusFeed broadcasts task events to subscribers.
type StatusFeed interface {
	// Publish emits an event to all current subscribers. Publish never
	// blocks on a slow subscriber.
	Publish(event TaskEvent)

	// Subscribe returns a channel of events and a cancel function.
	// The channel is closed after cancel is called.
	Subscribe() (<-chan TaskEvent, func())
}
