package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/roomcast/internal/models"
)

// Every method takes a context.Context: these all hit the network, and a
// cancelled HTTP request should cancel its query.
//
// "Not found" is modelled as (nil, nil) rather than an error — the handler
// decides whether absence is a 404 or a silent no-op.

// RoomRepository handles chat-room records. The broker never touches this;
// rooms exist only in the store and routing state is allocated lazily from
// room IDs alone.
type RoomRepository interface {
	Create(ctx context.Context, name string) (*models.ChatRoom, error)

	// GetByID returns nil, nil when the room does not exist.
	GetByID(ctx context.Context, roomID uuid.UUID) (*models.ChatRoom, error)

	// List returns all rooms, newest first. Empty slice, never nil.
	List(ctx context.Context) ([]models.ChatRoom, error)
}

// MessageRepository is the durable side of the Message Store. Sender
// identity fields come back denormalized on every message (joined from
// users) because that is the wire shape.
type MessageRepository interface {
	// CreateText persists a text message.
	CreateText(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.Message, error)

	// CreateImage persists an image message pointing at an already-stored blob.
	CreateImage(ctx context.Context, roomID, senderID uuid.UUID, imageURL string) (*models.Message, error)

	// GetByID returns nil, nil when absent. Used by the mutation path to
	// run the authorization policy before touching the row.
	GetByID(ctx context.Context, roomID uuid.UUID, messageID int64) (*models.Message, error)

	// ListByRoom returns the room snapshot ordered by (created_at, id)
	// ascending — the display order every client view must converge to.
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Message, error)

	// UpdateContent replaces the text of a message and returns the updated
	// record. nil, nil when the message has vanished meanwhile.
	UpdateContent(ctx context.Context, roomID uuid.UUID, messageID int64, content string) (*models.Message, error)

	// Delete removes a message. Deleting an absent message is a no-op.
	Delete(ctx context.Context, roomID uuid.UUID, messageID int64) error
}

// UserRepository handles registered members.
type UserRepository interface {
	Create(ctx context.Context, email, displayName, avatarURL, passwordHash string) (*models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
