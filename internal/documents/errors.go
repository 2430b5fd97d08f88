package documents

import "errors"

var (
	// ErrNotFound means no visible document matched.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidInput flags a rejected request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict means the document is not in a state that allows the change.
	ErrConflict = errors.New("document state conflict")
)
