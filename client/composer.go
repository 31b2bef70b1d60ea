package client

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Composer holds the draft for one room: either a new message being
// written or an edit of an existing one, never both. Submit dispatches to
// the right endpoint for whichever mode is active.
//
// New-message submits clear the draft optimistically before the request
// goes out, so the input box empties immediately; on failure the draft is
// restored so nothing the user typed is lost. Edit submits keep the draft
// until the server confirms, since the original text is still on screen.
type Composer struct {
	client *Client
	roomID uuid.UUID

	mu        sync.Mutex
	text      string
	imageName string
	imageData []byte
	editing   *Message // nil when composing a new message
}

// NewComposer returns an empty composer bound to one room.
func (c *Client) NewComposer(roomID uuid.UUID) *Composer {
	return &Composer{client: c, roomID: roomID}
}

// SetText replaces the draft text.
func (p *Composer) SetText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
}

// DraftText returns the current draft text.
func (p *Composer) DraftText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text
}

// AttachImage stages an image for the next submit, replacing any previous
// attachment. Attaching clears edit mode: an edit can only change text.
func (p *Composer) AttachImage(filename string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imageName = filename
	p.imageData = append([]byte(nil), data...)
	p.editing = nil
}

// ClearAttachment drops the staged image.
func (p *Composer) ClearAttachment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imageName = ""
	p.imageData = nil
}

// BeginEdit switches the composer to edit mode, seeding the draft with the
// message's current content. Any in-progress new-message draft is
// discarded; there is only ever one draft. Image messages cannot be
// edited.
func (p *Composer) BeginEdit(msg Message) error {
	if msg.IsImage() {
		return ErrNotEditable
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	m := msg
	p.editing = &m
	p.text = msg.Content
	p.imageName = ""
	p.imageData = nil
	return nil
}

// CancelEdit leaves edit mode and empties the draft.
func (p *Composer) CancelEdit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.editing = nil
	p.text = ""
}

// Editing returns the message under edit, or nil.
func (p *Composer) Editing() *Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.editing == nil {
		return nil
	}
	m := *p.editing
	return &m
}

// SubmitEdit sends the edit draft for messageID. The open draft must
// belong to that message; otherwise ErrDraftMismatch. The draft is cleared
// only on success — on failure it stays intact so the user can retry or
// cancel.
func (p *Composer) SubmitEdit(ctx context.Context, messageID int64) (*Message, error) {
	p.mu.Lock()
	if p.editing == nil || p.editing.ID != messageID {
		p.mu.Unlock()
		return nil, ErrDraftMismatch
	}
	content := strings.TrimSpace(p.text)
	p.mu.Unlock()

	if content == "" {
		return nil, ErrEmptyDraft
	}
	msg, err := p.client.UpdateMessage(ctx, p.roomID, messageID, content)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.editing != nil && p.editing.ID == messageID {
		p.editing = nil
		p.text = ""
	}
	p.mu.Unlock()
	return msg, nil
}

// Submit sends the draft. With an edit open it delegates to SubmitEdit for
// that message. Otherwise it posts a new message (image if one is
// attached, text otherwise), clearing the draft up front and restoring it
// if the request fails.
func (p *Composer) Submit(ctx context.Context) (*Message, error) {
	if e := p.Editing(); e != nil {
		return p.SubmitEdit(ctx, e.ID)
	}

	p.mu.Lock()

	// A staged image wins over typed text, and the text survives the image
	// submit untouched; a message body is one or the other, never both.
	if p.imageData != nil {
		imageName, imageData := p.imageName, p.imageData
		p.imageName = ""
		p.imageData = nil
		p.mu.Unlock()

		msg, err := p.client.SendImage(ctx, p.roomID, imageName, bytes.NewReader(imageData))
		if err != nil {
			p.mu.Lock()
			if p.imageData == nil {
				p.imageName = imageName
				p.imageData = imageData
			}
			p.mu.Unlock()
			return nil, err
		}
		return msg, nil
	}

	content := strings.TrimSpace(p.text)
	if content == "" {
		p.mu.Unlock()
		return nil, ErrEmptyDraft
	}

	// Optimistic clear.
	p.text = ""
	p.mu.Unlock()

	msg, err := p.client.SendText(ctx, p.roomID, content)
	if err != nil {
		p.restore(content)
		return nil, err
	}
	return msg, nil
}

// restore puts a failed draft back, but never clobbers text the user has
// typed since the optimistic clear.
func (p *Composer) restore(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.text == "" && p.editing == nil {
		p.text = content
	}
}
