package sail

import (
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
)

// Source is anything that can hand out write sessions and read snapshots: a storage engine, or a branch layered on
// another Source.
type Source interface {
	Sink(level IsolationLevel) (Sink, error)
	Dataset(level IsolationLevel) (Dataset, error)
}

// Sink is a write session. Changes made through it become visible to Datasets opened after Flush returns.
// Approve/Deprecate/Clear/namespace edits and Observe may be called from one goroutine while Datasets are read
// from others; Prepare, Flush and Close must not race with the mutating calls of the same Sink.
type Sink interface {
	Isolation() IsolationLevel

	// Approve adds q.
	Approve(q rdf.Quad) error
	// Deprecate removes q.
	Deprecate(q rdf.Quad) error
	// Clear removes every quad of the given contexts, or of the whole source when no context is given.
	// rdf.DefaultGraph selects the default graph.
	Clear(contexts ...rdf.Value) error

	SetNamespace(prefix, name string) error
	RemoveNamespace(prefix string) error
	ClearNamespaces() error

	// Observe records that quads matching p were read and must not change until this sink is flushed. Only
	// sinks opened at Serializable accept observations.
	Observe(p rdf.Pattern) error

	// Prepare checks the sink against its isolation level, a *ErrConflict means a conflicting sink has already
	// been flushed and this one must be closed.
	Prepare() error
	// Flush makes the changes visible. A sink can only be flushed once.
	Flush() error
	// Close releases the sink, discarding anything that was not flushed. It is safe to call more than once.
	Close() error
}

// Dataset is a read snapshot.
type Dataset interface {
	Namespaces() ([]rdf.Namespace, error)
	// Namespace returns the name bound to prefix, or "" when the prefix is unbound.
	Namespace(prefix string) (string, error)
	// ContextIDs returns the named graphs that hold at least one quad.
	ContextIDs() ([]rdf.Value, error)
	Statements(p rdf.Pattern) (QuadIterator, error)
	Close() error
}
