package broker

import (
	"github.com/google/uuid"
	"github.com/lalith-99/roomcast/internal/models"
)

// EventType enumerates the three message state changes a room can emit.
type EventType string

const (
	MessageCreated EventType = "created"
	MessageUpdated EventType = "updated"
	MessageDeleted EventType = "deleted"
)

// Event is the unit of fan-out: one state change in one room. Created and
// updated events carry the full current record; deleted events carry only
// the identifier. This struct is also the wire shape pushed over the live
// channel, so clients decode exactly what the broker routed.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    uuid.UUID       `json:"chat_room_id"`
	MessageID int64           `json:"message_id"`
	Message   *models.Message `json:"message,omitempty"`
}

// Created builds a creation event from a stored message.
func Created(msg *models.Message) Event {
	return Event{Type: MessageCreated, RoomID: msg.ChatRoomID, MessageID: msg.ID, Message: msg}
}

// Updated builds an update event carrying the full current record.
func Updated(msg *models.Message) Event {
	return Event{Type: MessageUpdated, RoomID: msg.ChatRoomID, MessageID: msg.ID, Message: msg}
}

// Deleted builds a deletion event; only the identifier survives.
func Deleted(roomID uuid.UUID, messageID int64) Event {
	return Event{Type: MessageDeleted, RoomID: roomID, MessageID: messageID}
}
