package domain

import "context"

// UserRepository defines access methods for users.
type UserRepository interface {
	UpsertBySupabaseID(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetDailyUsage(ctx context.Context, userID string) (int, error)
}

// StoryRepository defines persistence for story entities.
type StoryRepository interface {
	Create(ctx context.Context, story *Story) error
	UpdateStatus(ctx context.Context, storyID string, status StoryStatus, errMsg *string) error
	SetWorkflowID(ctx context.Context, storyID, workflowID string) error
	GetByID(ctx context.Context, storyID string) (*Story, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Story, error)
	CountTerminalByUser(ctx context.Context, userID string) (int, error)
	ListRecentTerminal(ctx context.Context, userID string, limit int) ([]Story, error)
}

// ChildRepository handles persistence for child profiles.
type ChildRepository interface {
	Create(ctx context.Context, child *Child) error
	Update(ctx context.Context, child *Child) error
	Delete(ctx context.Context, childID, userID string) error
	GetByID(ctx context.Context, childID string) (*Child, error)
	ListByUser(ctx context.Context, userID string) ([]Child, error)
}
