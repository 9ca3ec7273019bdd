package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calmiverse/internal/domain"
)

// StoryRepositoryPG implements domain.StoryRepository.
type StoryRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewStoryRepository creates a new story repository backed by PostgreSQL.
func NewStoryRepository(pool *pgxpool.Pool) *StoryRepositoryPG {
	return &StoryRepositoryPG{pool: pool}
}

const storyColumns = `id, user_id, title, content, objective, child_ids, language, audio_key, status, error_message, workflow_id, prompt_json, created_at, updated_at`

// Create inserts a new story record in its initial status.
func (r *StoryRepositoryPG) Create(ctx context.Context, story *domain.Story) error {
	query := `
INSERT INTO stories (id, user_id, title, content, objective, child_ids, language, audio_key, status, error_message, workflow_id, prompt_json)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
	_, err := r.pool.Exec(ctx, query,
		story.ID,
		story.UserID,
		story.Title,
		story.Content,
		story.Objective,
		story.ChildIDs,
		story.Language,
		story.AudioKey,
		story.Status,
		story.ErrorMessage,
		story.WorkflowID,
		story.Prompt,
	)
	return err
}

// UpdateStatus updates story status and optionally the error message.
// Terminal rows are never overwritten: a late writer racing a finished story
// loses quietly, mirroring the local queue's transition rule.
func (r *StoryRepositoryPG) UpdateStatus(ctx context.Context, storyID string, status domain.StoryStatus, errMsg *string) error {
	query := `
UPDATE stories
SET status = $2,
    updated_at = NOW(),
    error_message = COALESCE($3, error_message)
WHERE id = $1
  AND status NOT IN ('completed', 'error');
`
	tag, err := r.pool.Exec(ctx, query, storyID, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Already terminal (or gone); the stale write is dropped.
		return domain.ErrDuplicateOperation
	}
	return nil
}

// SetWorkflowID records the pipeline workflow driving this story.
func (r *StoryRepositoryPG) SetWorkflowID(ctx context.Context, storyID, workflowID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE stories SET workflow_id = $2, updated_at = NOW() WHERE id = $1`, storyID, workflowID)
	return err
}

// GetByID fetches a story by its identifier.
func (r *StoryRepositoryPG) GetByID(ctx context.Context, storyID string) (*domain.Story, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = $1`, storyID)
	return scanStory(row)
}

// ListByUser returns the user's stories, newest first.
func (r *StoryRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Story, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+storyColumns+` FROM stories WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, *s)
	}
	return stories, rows.Err()
}

// CountTerminalByUser counts completed and errored stories for the poll
// reconciliation baseline. An empty userID counts across all users.
func (r *StoryRepositoryPG) CountTerminalByUser(ctx context.Context, userID string) (int, error) {
	row := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stories WHERE ($1 = '' OR user_id = $1) AND status IN ('completed', 'error')`, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListRecentTerminal returns the most recently finished stories.
func (r *StoryRepositoryPG) ListRecentTerminal(ctx context.Context, userID string, limit int) ([]domain.Story, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT `+storyColumns+` FROM stories WHERE ($1 = '' OR user_id = $1) AND status IN ('completed', 'error') ORDER BY updated_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, *s)
	}
	return stories, rows.Err()
}

func scanStory(row pgx.Row) (*domain.Story, error) {
	var s domain.Story
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&s.Content,
		&s.Objective,
		&s.ChildIDs,
		&s.Language,
		&s.AudioKey,
		&s.Status,
		&s.ErrorMessage,
		&s.WorkflowID,
		&s.Prompt,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

var _ domain.StoryRepository = (*StoryRepositoryPG)(nil)
