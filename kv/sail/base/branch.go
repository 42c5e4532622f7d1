// Package base layers uncommitted changes over a sail.Source.
//
// A Branch collects the deltas of flushed sinks in a chain and shows them to its datasets on top of a snapshot of
// the backing source. Branch.Flush replays the chain into one sink of the backing source. Branches stack, so a
// transaction is a Branch over the store-level Branch, which is itself a Branch over the storage engine.
package base

import (
	"fmt"
	"sync"
	"time"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

var branchIDs atomic.Uint64

// Option configures a Branch.
type Option func(*Branch)

// WithModelFactory sets the model used to buffer approved and deprecated quads.
func WithModelFactory(factory rdf.ModelFactory) Option {
	return func(b *Branch) {
		b.factory = factory
	}
}

// WithAutoFlush makes the Branch flush into its backing source whenever it is idle: no dataset is open and no
// serializable session is running.
func WithAutoFlush(autoFlush bool) Option {
	return func(b *Branch) {
		b.autoFlush = autoFlush
	}
}

// Branch is a sail.Source holding changes that have not reached its backing source yet. It is safe for
// concurrent use.
type Branch struct {
	id        uint64
	backing   sail.Source
	factory   rdf.ModelFactory
	autoFlush bool

	mu sync.Mutex
	// Merged deltas, oldest first.
	changes []*delta
	// Deltas of open sinks.
	pending map[*delta]struct{}
	// Open datasets.
	observers map[*branchDataset]struct{}
	// Backing snapshot shared by datasets at Snapshot or above until the next flush.
	snapshot *sharedDataset
	// Backing sink of the running serializable session, if any.
	serializable sail.Sink
	// Backing sink the chain is replayed into between Prepare and Flush.
	prepared sail.Sink
	// Sink between a successful Prepare and its Flush or Close. Other sinks wait for it before checking
	// conflicts, so they see its delta once it is merged.
	gate     *branchSink
	gateFree *sync.Cond
	closed   bool
}

func NewBranch(backing sail.Source, opts ...Option) *Branch {
	b := &Branch{
		id:        branchIDs.Inc(),
		backing:   backing,
		factory:   rdf.TreeModelFactory{},
		pending:   make(map[*delta]struct{}),
		observers: make(map[*branchDataset]struct{}),
	}
	b.gateFree = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fork returns a new Branch backed by b, sharing its model factory.
func (b *Branch) Fork() *Branch {
	return NewBranch(b, WithModelFactory(b.factory))
}

func (b *Branch) Sink(level sail.IsolationLevel) (sail.Sink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.Trace(sail.ErrClosed)
	}
	return b.newSinkLocked(level), nil
}

func (b *Branch) newSinkLocked(level sail.IsolationLevel) *branchSink {
	d := newDelta(b.factory)
	b.pending[d] = struct{}{}
	return &branchSink{branch: b, delta: d, level: level}
}

func (b *Branch) Dataset(level sail.IsolationLevel) (sail.Dataset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.Trace(sail.ErrClosed)
	}
	derived, err := b.derivedFromSerializableLocked(level)
	if err != nil {
		return nil, err
	}
	ds := &branchDataset{Dataset: derived, branch: b}
	b.observers[ds] = struct{}{}
	openDatasetGauge.Inc()
	return ds, nil
}

// derivedFromSerializableLocked opens the serializable session on the first serializable read, and from then on
// wraps every dataset so its lookups are observed.
func (b *Branch) derivedFromSerializableLocked(level sail.IsolationLevel) (sail.Dataset, error) {
	if b.serializable == nil && level.IsCompatibleWith(sail.Serializable) {
		sink, err := b.backing.Sink(level)
		if err != nil {
			return nil, errors.Trace(err)
		}
		b.serializable = sink
	}
	derived, err := b.derivedFromSnapshotLocked(level)
	if err != nil {
		return nil, err
	}
	if b.serializable == nil {
		return derived, nil
	}
	observer := b.newSinkLocked(sail.Serializable)
	observer.observer = true
	return &observingDataset{Dataset: derived, observer: observer}, nil
}

func (b *Branch) derivedFromSnapshotLocked(level sail.IsolationLevel) (sail.Dataset, error) {
	var derived sail.Dataset
	if b.snapshot != nil {
		derived = b.snapshot.retain()
	} else {
		// Observation happens in this Branch, so the backing source is never asked for more than Snapshot.
		backingLevel := level
		if backingLevel > sail.Snapshot {
			backingLevel = sail.Snapshot
		}
		ds, err := b.backing.Dataset(backingLevel)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if level.IsCompatibleWith(sail.Snapshot) {
			b.snapshot = newSharedDataset(ds)
			derived = b.snapshot.retain()
		} else {
			derived = ds
		}
	}
	for _, d := range b.changes {
		derived = newDeltaDataset(derived, d)
	}
	return derived, nil
}

func (b *Branch) releaseDataset(ds *branchDataset) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.observers[ds]; !ok {
		return nil
	}
	delete(b.observers, ds)
	openDatasetGauge.Dec()
	b.compressLocked()
	return b.autoFlushLocked()
}

// acquireGateLocked waits until no other sink holds the commit gate and takes it for s. Observer sinks carry no
// changes and never take it.
func (b *Branch) acquireGateLocked(s *branchSink) {
	if s.observer {
		return
	}
	for b.gate != nil && b.gate != s {
		b.gateFree.Wait()
	}
	b.gate = s
}

func (b *Branch) releaseGateLocked(s *branchSink) {
	if b.gate != s {
		return
	}
	b.gate = nil
	b.gateFree.Broadcast()
}

// mergeLocked appends a flushed sink's delta to the chain and makes every open sink check its observations
// against it.
func (b *Branch) mergeLocked(d *delta) {
	delete(b.pending, d)
	if !d.isChanged() {
		return
	}
	b.changes = append(b.changes, d)
	b.compressLocked()
	merged := b.changes[len(b.changes)-1]
	for p := range b.pending {
		p.addPrepend(merged)
	}
	mergeCounter.Inc()
}

// compressLocked folds the newest delta into its predecessor while no open dataset reads the predecessor.
func (b *Branch) compressLocked() {
	for len(b.changes) > 1 && b.changes[len(b.changes)-2].refs.Load() == 0 {
		last := b.changes[len(b.changes)-1]
		b.changes = b.changes[:len(b.changes)-1]
		if err := replay(last.snapshot(), b.changes[len(b.changes)-1], true); err != nil {
			// Deltas accept every change.
			panic(errors.ErrorStack(err))
		}
		foldCounter.Inc()
	}
}

// IsChanged reports whether b holds changes its backing source has not seen.
func (b *Branch) IsChanged() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.changes) > 0
}

// Prepare opens a sink on the backing source and checks the observations of the chain against it.
func (b *Branch) Prepare() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prepareLocked()
}

func (b *Branch) prepareLocked() error {
	if len(b.changes) == 0 {
		return nil
	}
	if b.prepared == nil {
		if b.serializable != nil {
			b.prepared = b.serializable
		} else {
			sink, err := b.backing.Sink(sail.None)
			if err != nil {
				return errors.Trace(err)
			}
			b.prepared = sink
		}
	}
	if b.prepared.Isolation().IsCompatibleWith(sail.Serializable) {
		for _, d := range b.changes {
			if err := replayObservations(d.snapshot(), b.prepared); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return errors.Trace(b.prepared.Prepare())
}

// Flush replays the chain into the backing source. On failure the chain is kept and the backing sink discarded,
// so Flush may be retried.
func (b *Branch) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

func (b *Branch) flushLocked() error {
	if len(b.changes) == 0 {
		return nil
	}
	start := time.Now()
	err := b.flushChangesLocked()
	flushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		flushCounter.WithLabelValues("error").Inc()
		log.Errorf("%v: flush failed: %v", b, err)
		return err
	}
	flushCounter.WithLabelValues("ok").Inc()
	return nil
}

func (b *Branch) flushChangesLocked() error {
	if b.prepared == nil {
		if err := b.prepareLocked(); err != nil {
			b.discardPreparedLocked()
			return err
		}
	}
	sink := b.prepared
	if err := b.replayChangesLocked(sink); err != nil {
		b.discardPreparedLocked()
		return err
	}
	if err := sink.Flush(); err != nil {
		b.discardPreparedLocked()
		return errors.Trace(err)
	}
	log.Debugf("%v: flushed %d deltas into %v", b, len(b.changes), sink)
	b.changes = nil
	b.prepared = nil
	if sink == b.serializable {
		b.serializable = nil
	}
	if err := sink.Close(); err != nil {
		return errors.Trace(err)
	}
	return b.releaseSnapshotLocked()
}

// replayChangesLocked writes the chain into sink, oldest first. A lone delta nobody reads is handed over whole
// when sink is a fresh sink of another Branch.
func (b *Branch) replayChangesLocked(sink sail.Sink) error {
	if len(b.changes) == 1 && b.changes[0].refs.Load() == 0 {
		if dst, ok := sink.(*branchSink); ok && !dst.delta.isChanged() {
			dst.delta.adopt(b.changes[0])
			return nil
		}
	}
	for _, d := range b.changes {
		if err := replay(d.snapshot(), sink, false); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (b *Branch) discardPreparedLocked() {
	if b.prepared == nil {
		return
	}
	if b.prepared != b.serializable {
		if err := b.prepared.Close(); err != nil {
			log.Warnf("%v: close backing sink: %v", b, err)
		}
	}
	b.prepared = nil
}

func (b *Branch) releaseSnapshotLocked() error {
	if b.snapshot == nil {
		return nil
	}
	s := b.snapshot
	b.snapshot = nil
	return errors.Trace(s.release())
}

func (b *Branch) autoFlushLocked() error {
	if !b.autoFlush || b.serializable != nil || len(b.observers) > 0 {
		return nil
	}
	if err := b.flushLocked(); err != nil {
		return err
	}
	return b.releaseSnapshotLocked()
}

// Close discards everything not flushed and releases the backing sinks and snapshot.
func (b *Branch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.gate = nil
	b.gateFree.Broadcast()
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = errors.Trace(err)
		}
	}
	if b.prepared != nil && b.prepared != b.serializable {
		keep(b.prepared.Close())
	}
	b.prepared = nil
	if b.serializable != nil {
		keep(b.serializable.Close())
		b.serializable = nil
	}
	keep(b.releaseSnapshotLocked())
	if len(b.changes) > 0 {
		log.Debugf("%v: closed with %d unflushed deltas", b, len(b.changes))
	}
	b.changes = nil
	return firstErr
}

func (b *Branch) String() string {
	return fmt.Sprintf("branch-%d", b.id)
}

// changeSink receives replayed changes. It is implemented by sail.Sink and by *delta.
type changeSink interface {
	Approve(q rdf.Quad) error
	Deprecate(q rdf.Quad) error
	Clear(contexts ...rdf.Value) error
	SetNamespace(prefix, name string) error
	RemoveNamespace(prefix string) error
	ClearNamespaces() error
	Observe(p rdf.Pattern) error
}

// replay writes s into dst in the order the changes must be applied: namespaces, clears, removals, additions.
// Observations are written first when observe is set or dst is a serializable sink.
func replay(s deltaSnapshot, dst changeSink, observe bool) error {
	if !observe {
		if sink, ok := dst.(sail.Sink); ok && sink.Isolation().IsCompatibleWith(sail.Serializable) {
			observe = true
		}
	}
	if observe {
		if err := replayObservations(s, dst); err != nil {
			return err
		}
	}
	if s.namespaceCleared {
		if err := dst.ClearNamespaces(); err != nil {
			return err
		}
	}
	for _, prefix := range s.removedPrefixes {
		if err := dst.RemoveNamespace(prefix); err != nil {
			return err
		}
	}
	for _, ns := range s.addedNamespaces {
		if err := dst.SetNamespace(ns.Prefix, ns.Name); err != nil {
			return err
		}
	}
	if s.statementCleared {
		if err := dst.Clear(); err != nil {
			return err
		}
	}
	if len(s.deprecatedContexts) > 0 {
		if err := dst.Clear(s.deprecatedContexts...); err != nil {
			return err
		}
	}
	for _, q := range s.deprecated {
		if err := dst.Deprecate(q); err != nil {
			return err
		}
	}
	for _, q := range s.approved {
		if err := dst.Approve(q); err != nil {
			return err
		}
	}
	return nil
}

func replayObservations(s deltaSnapshot, dst changeSink) error {
	for _, p := range s.observations {
		if err := dst.Observe(p); err != nil {
			return err
		}
	}
	return nil
}
