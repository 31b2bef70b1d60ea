package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes callers branch on. Check with
// errors.Is; the wrapped error carries the server's message.
var (
	// ErrNetwork marks a request that never completed: dial failure,
	// timeout, connection reset. The operation is retryable and no local
	// state was lost (drafts survive, see Composer).
	ErrNetwork = errors.New("network failure")

	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	// ErrEmptyDraft is returned by Composer.Submit when there is nothing
	// to send.
	ErrEmptyDraft = errors.New("empty draft")

	// ErrNotEditable is returned by Composer.BeginEdit for image messages.
	ErrNotEditable = errors.New("message is not editable")

	// ErrDraftMismatch is returned by Composer.SubmitEdit when the open
	// draft does not belong to the given message.
	ErrDraftMismatch = errors.New("draft does not match message")
)

// apiError maps a server status code onto the matching sentinel so callers
// can errors.Is without parsing strings.
func apiError(status int, message string) error {
	var sentinel error
	switch status {
	case 400, 422:
		sentinel = ErrBadRequest
	case 401:
		sentinel = ErrUnauthorized
	case 403:
		sentinel = ErrForbidden
	case 404:
		sentinel = ErrNotFound
	case 409:
		sentinel = ErrConflict
	default:
		return fmt.Errorf("server returned status %d: %s", status, message)
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}
