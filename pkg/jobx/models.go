package jobx

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a queue entry.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusFailed    JobStatus = "failed"
	JobStatusStalled   JobStatus = "stalled"
)

// Job is a unit of work to enqueue.
type Job struct {
	// ID is optional. When empty the backend assigns one; callers may set
	// it to establish traceable relationships between entries (e.g. a
	// retry entry derived from an original).
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Queue   string          `json:"queue"`
	Payload json.RawMessage `json:"payload"`

	// MaxAttempts bounds processing attempts. 1 means a single attempt
	// with no retry. Defaults to 1.
	MaxAttempts int `json:"max_attempts"`
}

// JobInfo is the full stored representation of a queue entry.
type JobInfo struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	MaxAttempts int             `json:"max_attempts"`
	Attempts    int             `json:"attempts"`

	// Recoveries counts lease-expiry recoveries of a stalled entry,
	// bounded separately from Attempts.
	Recoveries int `json:"recoveries"`

	// LeaseUntil is the processing lease deadline while the entry is
	// active. An active entry past this deadline with no heartbeat is
	// considered stalled.
	LeaseUntil time.Time `json:"lease_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueueCounts is a live view of one queue's depth.
type QueueCounts struct {
	Waiting int64 `json:"waiting"`
	Delayed int64 `json:"delayed"`
	Active  int64 `json:"active"`
}
