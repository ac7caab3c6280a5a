package records

import "errors"

var (
	// ErrValidation marks a missing required field on create.
	ErrValidation = errors.New("validation failed")

	ErrProjectNotFound = errors.New("project not found")
	ErrClientNotFound  = errors.New("client not found")

	// ErrProjectHasFiles rejects deleting a project that still owns
	// attachments.
	ErrProjectHasFiles = errors.New("project still has attachments")
)
