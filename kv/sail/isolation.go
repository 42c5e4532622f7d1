package sail

import (
	"strings"

	"github.com/pingcap/errors"
)

// IsolationLevel is the consistency a session asks for. Levels are totally ordered from None to Serializable.
type IsolationLevel int

const (
	// None gives no guarantees, writes may be seen partially and in any order.
	None IsolationLevel = iota
	// ReadUncommitted may see changes of write sessions that have not been flushed.
	ReadUncommitted
	// ReadCommitted only sees flushed changes, but repeated reads may differ.
	ReadCommitted
	// SnapshotRead keeps each result consistent while it is being read.
	SnapshotRead
	// Snapshot sees one point in time of the backing source for the whole session.
	Snapshot
	// Serializable additionally fails sessions whose observed state was changed by a concurrent commit.
	Serializable
)

var isolationNames = [...]string{
	None:            "NONE",
	ReadUncommitted: "READ_UNCOMMITTED",
	ReadCommitted:   "READ_COMMITTED",
	SnapshotRead:    "SNAPSHOT_READ",
	Snapshot:        "SNAPSHOT",
	Serializable:    "SERIALIZABLE",
}

func (l IsolationLevel) String() string {
	if l < None || l > Serializable {
		return "UNKNOWN"
	}
	return isolationNames[l]
}

// IsCompatibleWith reports whether l gives at least the guarantees of other.
func (l IsolationLevel) IsCompatibleWith(other IsolationLevel) bool {
	return l >= other
}

// IsolationLevels lists every level from weakest to strongest.
func IsolationLevels() []IsolationLevel {
	return []IsolationLevel{None, ReadUncommitted, ReadCommitted, SnapshotRead, Snapshot, Serializable}
}

// ParseIsolationLevel accepts the names printed by String, case-insensitively, with '-' or ' ' for '_'.
func ParseIsolationLevel(name string) (IsolationLevel, error) {
	normalized := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(name)))
	for _, l := range IsolationLevels() {
		if l.String() == normalized {
			return l, nil
		}
	}
	return None, errors.Errorf("unknown isolation level %q", name)
}
