package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by collaborator directories when a lookup
	// matches nothing.
	ErrNotFound = errors.New("conversation: not found")
	// ErrConflict is returned by collaborator directories when a create
	// collides with an existing record.
	ErrConflict = errors.New("conversation: already exists")
)

// DuplicateTokenError reports a second registration of the same token.
type DuplicateTokenError struct {
	Token string
}

func (e *DuplicateTokenError) Error() string {
	return fmt.Sprintf("conversation: command token already registered: %s", e.Token)
}

// Code identifies the error class in handler summaries.
func (e *DuplicateTokenError) Code() string { return "DUPLICATE_TOKEN" }

// CollaboratorError wraps an expected failure of an external service call
// made by an acting state. Reply is shown to the principal as-is; Err is
// kept for logs only and must never reach the chat.
type CollaboratorError struct {
	Op    string
	Reply string
	Err   error
}

func (e *CollaboratorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversation: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("conversation: %s failed", e.Op)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Code identifies the error class in handler summaries.
func (e *CollaboratorError) Code() string { return "COLLABORATOR_FAILURE" }

// Collab builds a CollaboratorError for an acting state. The reply should
// tell the principal what went wrong in plain words.
func Collab(op, reply string, err error) *CollaboratorError {
	return &CollaboratorError{Op: op, Reply: reply, Err: err}
}
