package domain

import "time"

// StoryStatus enumerates the lifecycle states of a story record. The
// authoritative copy lives in Postgres; the queue package mirrors the same
// states for its locally tracked jobs.
type StoryStatus string

const (
	StoryStatusPending    StoryStatus = "pending"
	StoryStatusProcessing StoryStatus = "processing"
	StoryStatusCompleted  StoryStatus = "completed"
	StoryStatusError      StoryStatus = "error"
)

// IsTerminal reports whether no further automatic transition can occur.
func (s StoryStatus) IsTerminal() bool {
	return s == StoryStatusCompleted || s == StoryStatusError
}

// Story is one requested bedtime story and its generated result.
type Story struct {
	ID           string
	UserID       string
	Title        string
	Content      string
	Objective    string
	ChildIDs     []string
	Language     string
	AudioKey     string
	Status       StoryStatus
	ErrorMessage string
	WorkflowID   string
	Prompt       []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StoryEvent is the payload carried on the story_events push channel after an
// insert or update of a story row.
type StoryEvent struct {
	ID     string      `json:"id"`
	UserID string      `json:"user_id"`
	Status StoryStatus `json:"status"`
	Title  string      `json:"title"`
	Error  string      `json:"error,omitempty"`
}
