package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calmiverse/internal/domain"
)

// ChildRepositoryPG implements domain.ChildRepository.
type ChildRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewChildRepository creates a new child repository backed by PostgreSQL.
func NewChildRepository(pool *pgxpool.Pool) *ChildRepositoryPG {
	return &ChildRepositoryPG{pool: pool}
}

const childColumns = `id, user_id, name, birth_date, gender, interests, teddy_name, created_at, updated_at`

// Create inserts a new child profile.
func (r *ChildRepositoryPG) Create(ctx context.Context, child *domain.Child) error {
	query := `
INSERT INTO children (id, user_id, name, birth_date, gender, interests, teddy_name)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query,
		child.ID,
		child.UserID,
		child.Name,
		child.BirthDate,
		child.Gender,
		child.Interests,
		child.TeddyName,
	)
	return err
}

// Update rewrites the mutable fields of a child profile. The user scope is
// part of the predicate so one parent cannot edit another's child.
func (r *ChildRepositoryPG) Update(ctx context.Context, child *domain.Child) error {
	query := `
UPDATE children
SET name = $3,
    birth_date = $4,
    gender = $5,
    interests = $6,
    teddy_name = $7,
    updated_at = NOW()
WHERE id = $1 AND user_id = $2;
`
	tag, err := r.pool.Exec(ctx, query,
		child.ID,
		child.UserID,
		child.Name,
		child.BirthDate,
		child.Gender,
		child.Interests,
		child.TeddyName,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a child profile owned by the given user.
func (r *ChildRepositoryPG) Delete(ctx context.Context, childID, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM children WHERE id = $1 AND user_id = $2`, childID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches a child profile.
func (r *ChildRepositoryPG) GetByID(ctx context.Context, childID string) (*domain.Child, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+childColumns+` FROM children WHERE id = $1`, childID)
	return scanChild(row)
}

// ListByUser returns a parent's child profiles.
func (r *ChildRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.Child, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+childColumns+` FROM children WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var children []domain.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

func scanChild(row pgx.Row) (*domain.Child, error) {
	var c domain.Child
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.BirthDate,
		&c.Gender,
		&c.Interests,
		&c.TeddyName,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

var _ domain.ChildRepository = (*ChildRepositoryPG)(nil)
