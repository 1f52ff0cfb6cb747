package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindKeyByPrefix fetches a key record by its clear prefix.
func (r *PGRepository) FindKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, label, prefix, key_hash, is_active, created_at, last_used_at
		FROM api_keys
		WHERE prefix = $1`, prefix)
	return scanKey(row)
}

// FindUser fetches a user account by id.
func (r *PGRepository) FindUser(ctx context.Context, id int64) (*User, error) {
	var (
		u                    User
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, is_active, created_at, updated_at
		FROM users
		WHERE id = $1`, id).Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}

// InsertKey persists a freshly issued key and fills in its id.
func (r *PGRepository) InsertKey(ctx context.Context, key *APIKey) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO api_keys (user_id, label, prefix, key_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`,
		key.UserID, key.Label, key.Prefix, key.Hash, key.IsActive,
	).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// RevokeKey deactivates a key. The user_id guard keeps one manager from
// revoking another's keys.
func (r *PGRepository) RevokeKey(ctx context.Context, userID, keyID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE api_keys SET is_active = FALSE
		WHERE id = $1 AND user_id = $2`, keyID, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListKeys returns all keys of a user, newest first.
func (r *PGRepository) ListKeys(ctx context.Context, userID int64) ([]APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, label, prefix, key_hash, is_active, created_at, last_used_at
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

// TouchKey records the last successful use.
func (r *PGRepository) TouchKey(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

func scanKey(row pgx.Row) (*APIKey, error) {
	var (
		key       APIKey
		createdAt pgtype.Timestamptz
		lastUsed  pgtype.Timestamptz
	)
	err := row.Scan(&key.ID, &key.UserID, &key.Label, &key.Prefix, &key.Hash, &key.IsActive, &createdAt, &lastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	key.CreatedAt = createdAt.Time
	if lastUsed.Valid {
		t := lastUsed.Time
		key.LastUsedAt = &t
	}
	return &key, nil
}

var _ Repository = (*PGRepository)(nil)
