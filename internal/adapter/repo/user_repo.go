package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calmiverse/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// UpsertBySupabaseID inserts or updates a user keyed on the managed-auth
// identity.
func (r *UserRepositoryPG) UpsertBySupabaseID(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
INSERT INTO users (id, supabase_id, email, name, locale, plan, quota_daily)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (supabase_id) DO UPDATE
SET email = EXCLUDED.email,
    name = EXCLUDED.name,
    locale = EXCLUDED.locale,
    updated_at = NOW()
RETURNING id, supabase_id, email, name, locale, plan, quota_daily, created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, query,
		user.ID,
		user.SupabaseID,
		user.Email,
		user.Name,
		user.Locale,
		user.Plan,
		user.QuotaDaily,
	)
	return scanUser(row)
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, supabase_id, email, name, locale, plan, quota_daily, created_at, updated_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetDailyUsage counts the stories the user generated since midnight UTC.
func (r *UserRepositoryPG) GetDailyUsage(ctx context.Context, userID string) (int, error) {
	row := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stories WHERE user_id = $1 AND created_at >= date_trunc('day', NOW())`, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.SupabaseID,
		&u.Email,
		&u.Name,
		&u.Locale,
		&u.Plan,
		&u.QuotaDaily,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
