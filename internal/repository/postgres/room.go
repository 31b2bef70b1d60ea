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

type RoomStore struct {
	pool *pgxpool.Pool
}

func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{pool: pool}
}

func (s *RoomStore) Create(ctx context.Context, name string) (*models.ChatRoom, error) {
	query := `
		INSERT INTO chat_rooms (id, name, created_at)
		VALUES (uuid_generate_v4(), $1, now())
		RETURNING id, name, created_at`

	var room models.ChatRoom
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&room.ID,
		&room.Name,
		&room.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat room: %w", err)
	}
	return &room, nil
}

func (s *RoomStore) GetByID(ctx context.Context, roomID uuid.UUID) (*models.ChatRoom, error) {
	query := `
		SELECT id, name, created_at
		FROM chat_rooms
		WHERE id = $1`

	var room models.ChatRoom
	err := s.pool.QueryRow(ctx, query, roomID).Scan(
		&room.ID,
		&room.Name,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat room: %w", err)
	}
	return &room, nil
}

func (s *RoomStore) List(ctx context.Context) ([]models.ChatRoom, error) {
	query := `
		SELECT id, name, created_at
		FROM chat_rooms
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list chat rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]models.ChatRoom, 0)
	for rows.Next() {
		var room models.ChatRoom
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rooms: %w", err)
	}

	return rooms, nil
}
