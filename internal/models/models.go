package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered member. The identity the rest of the system cares
// about is the email plus display fields — that's what gets denormalized
// onto every message so clients can render a sender without a second fetch.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChatRoom is a named scope for messages and live subscriptions. The broker
// never creates rooms — it only ever sees room IDs and lazily allocates
// routing state for them; rooms themselves live and die in the store.
type ChatRoom struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one entry in a room.
//
// The body is exactly one of Content or ImageURL — never both, never
// neither. Only Content is mutable after creation; an image message cannot
// be edited in place. ChatRoomID, the sender fields, and CreatedAt are
// immutable.
//
// IDs are bigserial: monotonically assigned by Postgres, so ordering by
// (created_at, id) gives clients a stable display order even when two
// messages land in the same timestamp tick.
//
// Sender identity is denormalized (email, name, avatar) rather than exposed
// as a bare sender_id — this is the wire shape clients key their edit/delete
// affordances on.
type Message struct {
	ID              int64     `json:"id"`
	ChatRoomID      uuid.UUID `json:"chat_room_id"`
	SenderID        uuid.UUID `json:"-"`
	SenderEmail     string    `json:"sender_email"`
	SenderName      string    `json:"sender_name"`
	SenderAvatarURL string    `json:"sender_avatar_url,omitempty"`
	Content         string    `json:"content,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsImage reports whether this is an image message (and therefore not
// editable in place).
func (m *Message) IsImage() bool {
	return m.ImageURL != ""
}
