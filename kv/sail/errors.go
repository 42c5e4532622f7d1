package sail

import (
	"fmt"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap/errors"
)

// ErrConflict is returned by Prepare or Flush of a serializable sink when a pattern it observed was changed by a
// sink flushed after the observation. The transaction should be closed and may be retried.
type ErrConflict struct {
	Observed rdf.Pattern
	Changed  rdf.Quad
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("write conflict: observed state has changed, pattern: %v, changed: %v", e.Observed, e.Changed)
}

// IsConflict reports whether err, or the error it wraps, is a write conflict.
func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ErrConflict)
	return ok
}

// ErrClosed is returned when a closed source is used.
var ErrClosed = errors.New("sail: source is closed")
