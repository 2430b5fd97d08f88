package pipeline

import (
	"errors"
	"fmt"
)

// ErrRunInProgress means another run holds the run lock.
var ErrRunInProgress = errors.New("filing run already in progress")

// PersistenceError reports a database write that failed while recording a
// document's outcome.
type PersistenceError struct {
	Op         string
	DocumentID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s for document %s: %v", e.Op, e.DocumentID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const (
	reasonNoFolder     = "No matching folder found"
	reasonNoRoot       = "No root folder for account"
	reasonNoResourceID = "Upload returned no resource id"
	reasonAbandoned    = "attempt abandoned"
	reasonUnknown      = "unknown error"
)
