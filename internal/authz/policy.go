// Package authz holds the single authorization rule for message mutation:
// only the sender may edit or delete their message.
//
// The same policy value is consumed in two places with very different
// weight: the store's mutation path (authoritative — a request that fails
// here is rejected) and any UI layer deciding whether to show edit/delete
// affordances (advisory — purely a UX hint). Keeping one implementation
// stops the two from drifting apart.
package authz

import (
	"github.com/google/uuid"
	"github.com/lalith-99/roomcast/internal/models"
)

// Policy decides whether an acting identity may mutate a message.
type Policy interface {
	CanModify(actorID uuid.UUID, msg *models.Message) bool
}

// SenderOnly is the production policy: actor must be the message's sender.
type SenderOnly struct{}

func (SenderOnly) CanModify(actorID uuid.UUID, msg *models.Message) bool {
	if msg == nil || actorID == uuid.Nil {
		return false
	}
	return msg.SenderID == actorID
}
