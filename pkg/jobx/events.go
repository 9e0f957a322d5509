package jobx

import "time"

// EventType identifies a queue lifecycle event.
type EventType string

const (
	// EventCompleted fires when an entry finishes successfully.
	EventCompleted EventType = "completed"
	// EventRetrying fires when a failed entry is scheduled for another attempt.
	EventRetrying EventType = "retrying"
	// EventFailed fires when an entry fails terminally (attempts exhausted
	// or no handler).
	EventFailed EventType = "failed"
	// EventStalled fires when a lease-expired entry is recovered back to
	// the ready queue.
	EventStalled EventType = "stalled"
	// EventError fires on backend errors outside any one entry's lifecycle.
	EventError EventType = "error"
)

// Event is a one-way notification of a queue lifecycle transition.
// Subscribers must never mutate queue state in response.
type Event struct {
	Type     EventType `json:"type"`
	Queue    string    `json:"queue"`
	JobID    string    `json:"job_id,omitempty"`
	JobType  string    `json:"job_type,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Subscribe registers a lifecycle event channel with the given buffer.
// Events are dropped for subscribers whose buffer is full; observation must
// never block processing.
func (c *Client) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()

	return ch
}

func (c *Client) publish(event Event) {
	event.At = time.Now().UTC()

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
