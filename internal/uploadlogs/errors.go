package uploadlogs

import "errors"

// ErrNotFound means no log row matched.
var ErrNotFound = errors.New("upload log not found")
