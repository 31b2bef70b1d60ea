package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/roomcast/internal/models"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Create(ctx context.Context, email, displayName, avatarURL, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (email, display_name, avatar_url, password_hash, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, now())
		RETURNING id, email, display_name, COALESCE(avatar_url, ''), password_hash, created_at`

	var u models.User
	err := s.pool.QueryRow(ctx, query, email, displayName, avatarURL, passwordHash).Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.getBy(ctx, "id = $1", userID)
}

// GetByEmail looks a user up for login.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getBy(ctx, "email = $1", email)
}

func (s *UserStore) getBy(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `
		SELECT id, email, display_name, COALESCE(avatar_url, ''), password_hash, created_at
		FROM users
		WHERE ` + where

	var u models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
