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

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// messageColumns is the SELECT list shared by every query here: the row
// plus the sender fields joined from users. Positional args line up with
// scanMessage.
const messageColumns = `
	m.id, m.chat_room_id, m.sender_id, u.email, u.display_name,
	COALESCE(u.avatar_url, ''), COALESCE(m.content, ''),
	COALESCE(m.image_url, ''), m.created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	err := row.Scan(
		&msg.ID,
		&msg.ChatRoomID,
		&msg.SenderID,
		&msg.SenderEmail,
		&msg.SenderName,
		&msg.SenderAvatarURL,
		&msg.Content,
		&msg.ImageURL,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageStore) CreateText(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.Message, error) {
	return s.create(ctx, roomID, senderID, &content, nil)
}

func (s *MessageStore) CreateImage(ctx context.Context, roomID, senderID uuid.UUID, imageURL string) (*models.Message, error) {
	return s.create(ctx, roomID, senderID, nil, &imageURL)
}

// create inserts the row then re-reads it through the sender join. The
// database CHECK constraint mirrors the model invariant: exactly one of
// content / image_url is non-null.
func (s *MessageStore) create(ctx context.Context, roomID, senderID uuid.UUID, content, imageURL *string) (*models.Message, error) {
	query := `
		INSERT INTO messages (chat_room_id, sender_id, content, image_url, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query, roomID, senderID, content, imageURL).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return s.GetByID(ctx, roomID, id)
}

func (s *MessageStore) GetByID(ctx context.Context, roomID uuid.UUID, messageID int64) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1 AND m.chat_room_id = $2`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, messageID, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	// Ascending (created_at, id): created_at is the primary display key,
	// the monotonic id breaks ties within a timestamp tick. Same order the
	// client view maintains, so snapshot and live deltas agree.
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_room_id = $1
		ORDER BY m.created_at ASC, m.id ASC`

	rows, err := s.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func (s *MessageStore) UpdateContent(ctx context.Context, roomID uuid.UUID, messageID int64, content string) (*models.Message, error) {
	// content IS NOT NULL keeps image messages immutable even if a caller
	// skips the handler-level check.
	query := `
		UPDATE messages
		SET content = $1
		WHERE id = $2 AND chat_room_id = $3 AND content IS NOT NULL
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query, content, messageID, roomID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update message: %w", err)
	}
	return s.GetByID(ctx, roomID, id)
}

func (s *MessageStore) Delete(ctx context.Context, roomID uuid.UUID, messageID int64) error {
	// DELETE of an absent row removes zero rows — naturally idempotent.
	query := `
		DELETE FROM messages
		WHERE id = $1 AND chat_room_id = $2`

	_, err := s.pool.Exec(ctx, query, messageID, roomID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
