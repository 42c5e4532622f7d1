package base

import (
	"sort"
	"sync"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

// deltaDataset shows delegate with the changes of one merged delta applied on top.
type deltaDataset struct {
	delegate sail.Dataset
	delta    *delta
	closed   bool
}

func newDeltaDataset(delegate sail.Dataset, d *delta) *deltaDataset {
	d.refs.Inc()
	return &deltaDataset{delegate: delegate, delta: d}
}

func (ds *deltaDataset) Namespace(prefix string) (string, error) {
	d := ds.delta
	d.mu.RLock()
	name, added := d.addedNamespaces[prefix]
	_, removed := d.removedPrefixes[prefix]
	cleared := d.namespaceCleared
	d.mu.RUnlock()
	if added {
		return name, nil
	}
	if removed || cleared {
		return "", nil
	}
	return ds.delegate.Namespace(prefix)
}

func (ds *deltaDataset) Namespaces() ([]rdf.Namespace, error) {
	d := ds.delta
	d.mu.RLock()
	cleared := d.namespaceCleared
	hidden := make(map[string]struct{}, len(d.removedPrefixes)+len(d.addedNamespaces))
	for prefix := range d.removedPrefixes {
		hidden[prefix] = struct{}{}
	}
	added := make([]rdf.Namespace, 0, len(d.addedNamespaces))
	for prefix, name := range d.addedNamespaces {
		hidden[prefix] = struct{}{}
		added = append(added, rdf.Namespace{Prefix: prefix, Name: name})
	}
	d.mu.RUnlock()

	var result []rdf.Namespace
	if !cleared {
		namespaces, err := ds.delegate.Namespaces()
		if err != nil {
			return nil, err
		}
		for _, ns := range namespaces {
			if _, ok := hidden[ns.Prefix]; !ok {
				result = append(result, ns)
			}
		}
	}
	result = append(result, added...)
	sort.Slice(result, func(i, j int) bool { return result[i].Prefix < result[j].Prefix })
	return result, nil
}

func (ds *deltaDataset) ContextIDs() ([]rdf.Value, error) {
	d := ds.delta
	d.mu.RLock()
	cleared := d.statementCleared
	deprecatedContexts := copyContexts(d.deprecatedContexts)
	var approved []rdf.Value
	if d.approved != nil {
		approved = d.approved.Contexts()
	}
	d.mu.RUnlock()

	seen := make(map[rdf.Value]struct{})
	var result []rdf.Value
	if !cleared {
		contexts, err := ds.delegate.ContextIDs()
		if err != nil {
			return nil, err
		}
		for _, ctx := range contexts {
			if _, ok := deprecatedContexts[ctx]; ok {
				continue
			}
			// A context whose quads were all deprecated here is gone from this view.
			if ds.deprecatesInContext(ctx) {
				it, err := ds.Statements(rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any, ctx))
				if err != nil {
					return nil, err
				}
				empty := !it.Valid()
				it.Close()
				if empty {
					continue
				}
			}
			seen[ctx] = struct{}{}
			result = append(result, ctx)
		}
	}
	for _, ctx := range approved {
		if _, ok := seen[ctx]; !ok {
			seen[ctx] = struct{}{}
			result = append(result, ctx)
		}
	}
	return result, nil
}

func (ds *deltaDataset) deprecatesInContext(ctx rdf.Value) bool {
	d := ds.delta
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.deprecated != nil && d.deprecated.HasContext(ctx)
}

func (ds *deltaDataset) Statements(p rdf.Pattern) (sail.QuadIterator, error) {
	d := ds.delta
	d.mu.RLock()
	cleared := d.statementCleared
	deprecatedContexts := copyContexts(d.deprecatedContexts)
	var approved []rdf.Quad
	if d.approved != nil {
		approved = d.approved.Match(p)
	}
	d.mu.RUnlock()

	added := make(map[rdf.Quad]struct{}, len(approved))
	for _, q := range approved {
		added[q] = struct{}{}
	}
	approvedIter := sail.NewSliceIterator(approved)
	if cleared {
		return approvedIter, nil
	}

	inner := p
	if len(deprecatedContexts) > 0 && !p.AnyContext() {
		inner.Contexts = nil
		for _, ctx := range p.Contexts {
			if _, ok := deprecatedContexts[ctx]; !ok {
				inner.Contexts = append(inner.Contexts, ctx)
			}
		}
		if len(inner.Contexts) == 0 {
			return approvedIter, nil
		}
	}
	base, err := ds.delegate.Statements(inner)
	if err != nil {
		approvedIter.Close()
		return nil, err
	}
	base = sail.NewFilterIterator(base, func(q rdf.Quad) bool {
		if _, ok := deprecatedContexts[q.Context]; ok {
			return false
		}
		if _, ok := added[q]; ok {
			return false
		}
		return !d.isDeprecated(q)
	})
	return sail.NewConcatIterator(base, approvedIter), nil
}

func (ds *deltaDataset) Close() error {
	if ds.closed {
		return nil
	}
	ds.closed = true
	ds.delta.refs.Dec()
	return ds.delegate.Close()
}

func copyContexts(contexts map[rdf.Value]struct{}) map[rdf.Value]struct{} {
	if len(contexts) == 0 {
		return nil
	}
	c := make(map[rdf.Value]struct{}, len(contexts))
	for ctx := range contexts {
		c[ctx] = struct{}{}
	}
	return c
}

// sharedDataset is a backing snapshot shared by every dataset a Branch opens until its next flush. It is closed
// once the Branch and every dataset built on it have released it.
type sharedDataset struct {
	sail.Dataset
	refs atomic.Int32
}

func newSharedDataset(ds sail.Dataset) *sharedDataset {
	s := &sharedDataset{Dataset: ds}
	s.refs.Store(1)
	return s
}

// retain returns a handle whose Close releases one reference.
func (s *sharedDataset) retain() sail.Dataset {
	s.refs.Inc()
	return &sharedRef{sharedDataset: s}
}

func (s *sharedDataset) release() error {
	if s.refs.Dec() == 0 {
		return s.Dataset.Close()
	}
	return nil
}

type sharedRef struct {
	*sharedDataset
	once sync.Once
}

func (r *sharedRef) Close() error {
	var err error
	r.once.Do(func() {
		err = r.sharedDataset.release()
	})
	return err
}

// observingDataset records every lookup of a serializable session into observer, which is flushed into the Branch
// when the dataset is closed.
type observingDataset struct {
	sail.Dataset
	observer sail.Sink
	closed   bool
}

func (ds *observingDataset) ContextIDs() ([]rdf.Value, error) {
	if err := ds.observer.Observe(rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any)); err != nil {
		return nil, err
	}
	return ds.Dataset.ContextIDs()
}

func (ds *observingDataset) Statements(p rdf.Pattern) (sail.QuadIterator, error) {
	if err := ds.observer.Observe(p); err != nil {
		return nil, err
	}
	return ds.Dataset.Statements(p)
}

func (ds *observingDataset) Close() error {
	if ds.closed {
		return nil
	}
	ds.closed = true
	err := ds.Dataset.Close()
	if flushErr := ds.observer.Flush(); err == nil {
		err = flushErr
	}
	if closeErr := ds.observer.Close(); err == nil {
		err = closeErr
	}
	return errors.Trace(err)
}

// branchDataset is what Branch.Dataset hands out. Closing it unregisters it from the Branch, which may then
// compact and auto-flush.
type branchDataset struct {
	sail.Dataset
	branch *Branch
	closed bool
}

func (ds *branchDataset) Close() error {
	if ds.closed {
		return nil
	}
	ds.closed = true
	err := ds.Dataset.Close()
	if releaseErr := ds.branch.releaseDataset(ds); err == nil {
		err = releaseErr
	}
	return err
}
