// Package client is the Go SDK for a roomcast server. It wraps the REST
// surface, the per-room live channel, and a reconciling room view that
// merges the two into one consistent, ordered message list.
package client

import (
	"time"

	"github.com/google/uuid"
)

// Room is a chat room as the server serializes it.
type Room struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message mirrors the server's wire shape. Sender identity arrives
// denormalized; compare SenderEmail against the logged-in user's email to
// decide whether to offer edit/delete affordances (the server enforces the
// real rule regardless).
type Message struct {
	ID              int64     `json:"id"`
	ChatRoomID      uuid.UUID `json:"chat_room_id"`
	SenderEmail     string    `json:"sender_email"`
	SenderName      string    `json:"sender_name"`
	SenderAvatarURL string    `json:"sender_avatar_url,omitempty"`
	Content         string    `json:"content,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsImage reports whether the message body is an image rather than text.
func (m Message) IsImage() bool {
	return m.ImageURL != ""
}

// before reports whether m sorts ahead of other in display order:
// (created_at, id) ascending.
func (m Message) before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// EventType enumerates the live-channel event kinds.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is one state change pushed over the live channel. Created and
// updated events carry the full record; deleted events carry only the ID.
type Event struct {
	Type      EventType `json:"type"`
	RoomID    uuid.UUID `json:"chat_room_id"`
	MessageID int64     `json:"message_id"`
	Message   *Message  `json:"message,omitempty"`
}
