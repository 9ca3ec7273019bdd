package queue

import (
	"encoding/json"
	"time"
)

// Status enumerates the lifecycle states of a tracked job. The values mirror
// the authoritative story statuses in Postgres.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// IsTerminal reports whether no further automatic transition can occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Job is one tracked story-generation request. The manager owns the in-memory
// representation; everything else reads copies.
type Job struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	OwnerID    string          `json:"owner_id"`
	Status     Status          `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	Error      string          `json:"error,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Input describes a job submission. ID is optional; the manager generates one
// when absent.
type Input struct {
	ID         string
	Title      string
	OwnerID    string
	Payload    json.RawMessage
	MaxRetries int
}
