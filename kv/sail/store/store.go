// Package store keeps quads and namespaces in a storage.Storage and exposes them as a sail.Source.
package store

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/kv/storage"
	"github.com/pingcap-incubator/tinyrdf/kv/util/engine_util"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
)

// Store is the leaf sail.Source. Every dataset reads one storage snapshot, so all levels up to Snapshot are met;
// sinks are applied one at a time, so Serializable needs no observation tracking here.
type Store struct {
	storage storage.Storage
	// Serializes flushes, which read the storage to resolve clears.
	mu sync.Mutex
}

func NewStore(s storage.Storage) *Store {
	return &Store{storage: s}
}

func (s *Store) Sink(level sail.IsolationLevel) (sail.Sink, error) {
	return &sink{store: s, level: level}, nil
}

func (s *Store) Dataset(level sail.IsolationLevel) (sail.Dataset, error) {
	reader, err := s.storage.Reader()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &dataset{reader: reader}, nil
}

// Size counts the stored quads.
func (s *Store) Size() (int, error) {
	reader, err := s.storage.Reader()
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer reader.Close()
	iter := reader.IterCF(engine_util.CfSPOC)
	defer iter.Close()
	n := 0
	for iter.Seek(nil); iter.Valid(); iter.Next() {
		n++
	}
	return n, nil
}

// Close stops the underlying storage.
func (s *Store) Close() error {
	return errors.Trace(s.storage.Stop())
}

func (s *Store) apply(ops []op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reader, err := s.storage.Reader()
	if err != nil {
		return errors.Trace(err)
	}
	defer reader.Close()
	w := &batchWriter{
		reader:     reader,
		quads:      make(map[rdf.Quad]bool),
		namespaces: make(map[string]*string),
	}
	for _, o := range ops {
		if err := w.apply(o); err != nil {
			return err
		}
	}
	batch := w.modifies()
	if len(batch) == 0 {
		return nil
	}
	log.Debugf("store: writing %d modifies for %d operations", len(batch), len(ops))
	return errors.Trace(s.storage.Write(batch))
}

type opKind int

const (
	opApprove opKind = iota
	opDeprecate
	opClear
	opSetNamespace
	opRemoveNamespace
	opClearNamespaces
)

type op struct {
	kind     opKind
	quad     rdf.Quad
	contexts []rdf.Value
	prefix   string
	name     string
}

// sink records its operations and applies them in order, in one storage write, on Flush.
type sink struct {
	store   *Store
	level   sail.IsolationLevel
	ops     []op
	flushed bool
	closed  bool
}

func (s *sink) Isolation() sail.IsolationLevel {
	return s.level
}

func (s *sink) record(o op) error {
	if s.flushed || s.closed {
		panic("store sink used after it was flushed or closed")
	}
	s.ops = append(s.ops, o)
	return nil
}

func (s *sink) Approve(q rdf.Quad) error {
	return s.record(op{kind: opApprove, quad: q})
}

func (s *sink) Deprecate(q rdf.Quad) error {
	return s.record(op{kind: opDeprecate, quad: q})
}

func (s *sink) Clear(contexts ...rdf.Value) error {
	return s.record(op{kind: opClear, contexts: contexts})
}

func (s *sink) SetNamespace(prefix, name string) error {
	return s.record(op{kind: opSetNamespace, prefix: prefix, name: name})
}

func (s *sink) RemoveNamespace(prefix string) error {
	return s.record(op{kind: opRemoveNamespace, prefix: prefix})
}

func (s *sink) ClearNamespaces() error {
	return s.record(op{kind: opClearNamespaces})
}

// Observe is a no-op, the storage applies sinks one after another.
func (s *sink) Observe(p rdf.Pattern) error {
	return nil
}

func (s *sink) Prepare() error {
	return nil
}

func (s *sink) Flush() error {
	if s.flushed || s.closed {
		panic("store sink flushed twice or after close")
	}
	if err := s.store.apply(s.ops); err != nil {
		return err
	}
	s.ops = nil
	s.flushed = true
	return nil
}

func (s *sink) Close() error {
	s.ops = nil
	s.closed = true
	return nil
}

func (s *sink) String() string {
	return fmt.Sprintf("%v store sink with %d operations", s.level, len(s.ops))
}

// batchWriter folds a sequence of operations into the final state of every key they touch.
type batchWriter struct {
	reader storage.StorageReader
	// true for quads to write, false for quads to delete.
	quads map[rdf.Quad]bool
	// nil for prefixes to delete.
	namespaces map[string]*string
}

func (w *batchWriter) apply(o op) error {
	switch o.kind {
	case opApprove:
		w.quads[o.quad] = true
	case opDeprecate:
		w.quads[o.quad] = false
	case opClear:
		return w.clear(o.contexts)
	case opSetNamespace:
		name := o.name
		w.namespaces[o.prefix] = &name
	case opRemoveNamespace:
		w.namespaces[o.prefix] = nil
	case opClearNamespaces:
		return w.clearNamespaces()
	}
	return nil
}

func (w *batchWriter) clear(contexts []rdf.Value) error {
	pattern := rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any, contexts...)
	for q, put := range w.quads {
		if put && pattern.Matches(q) {
			w.quads[q] = false
		}
	}
	if len(contexts) == 0 {
		return w.deleteAll(engine_util.CfSPOC, nil, decodeSPOC)
	}
	for _, ctx := range contexts {
		if err := w.deleteAll(engine_util.CfCSPO, contextPrefix(ctx), decodeCSPO); err != nil {
			return err
		}
	}
	return nil
}

// deleteAll marks every stored quad under prefix for deletion.
func (w *batchWriter) deleteAll(cf string, prefix []byte, decode func([]byte) (rdf.Quad, error)) error {
	iter := w.reader.IterCF(cf)
	defer iter.Close()
	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		q, err := decode(key)
		if err != nil {
			return err
		}
		w.quads[q] = false
	}
	return nil
}

func (w *batchWriter) clearNamespaces() error {
	for prefix := range w.namespaces {
		w.namespaces[prefix] = nil
	}
	iter := w.reader.IterCF(engine_util.CfNamespace)
	defer iter.Close()
	for iter.Seek(nil); iter.Valid(); iter.Next() {
		value, err := iter.Item().Value()
		if err != nil {
			return errors.Trace(err)
		}
		ns, err := decodeNamespace(iter.Item().Key(), value)
		if err != nil {
			return err
		}
		w.namespaces[ns.Prefix] = nil
	}
	return nil
}

func (w *batchWriter) modifies() []storage.Modify {
	quads := make([]rdf.Quad, 0, len(w.quads))
	for q := range w.quads {
		quads = append(quads, q)
	}
	sort.Slice(quads, func(i, j int) bool { return quads[i].Less(quads[j]) })
	prefixes := make([]string, 0, len(w.namespaces))
	for prefix := range w.namespaces {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	batch := make([]storage.Modify, 0, 2*len(quads)+len(prefixes))
	for _, q := range quads {
		if w.quads[q] {
			batch = append(batch,
				storage.Modify{Data: storage.Put{Cf: engine_util.CfSPOC, Key: spocKey(q), Value: present}},
				storage.Modify{Data: storage.Put{Cf: engine_util.CfCSPO, Key: cspoKey(q), Value: present}})
		} else {
			batch = append(batch,
				storage.Modify{Data: storage.Delete{Cf: engine_util.CfSPOC, Key: spocKey(q)}},
				storage.Modify{Data: storage.Delete{Cf: engine_util.CfCSPO, Key: cspoKey(q)}})
		}
	}
	for _, prefix := range prefixes {
		key := namespaceKey(prefix)
		if name := w.namespaces[prefix]; name != nil {
			batch = append(batch, storage.Modify{Data: storage.Put{Cf: engine_util.CfNamespace, Key: key, Value: namespaceValue(*name)}})
		} else {
			batch = append(batch, storage.Modify{Data: storage.Delete{Cf: engine_util.CfNamespace, Key: key}})
		}
	}
	return batch
}
