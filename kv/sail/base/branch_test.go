package base

import (
	"strconv"
	"testing"
	"time"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/kv/sail/store"
	"github.com/pingcap-incubator/tinyrdf/kv/storage/mem_storage"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const ex = "http://example.org/"

func iri(name string) rdf.Value {
	return rdf.NewIRI(ex + name)
}

func graph(name string) rdf.Value {
	return iri(name)
}

func quad(s, p, o string) rdf.Quad {
	return rdf.NewQuad(iri(s), iri(p), iri(o), rdf.DefaultGraph)
}

func quadIn(s, p, o, g string) rdf.Quad {
	return rdf.NewQuad(iri(s), iri(p), iri(o), graph(g))
}

var everything = rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any)

func newLeaf() *store.Store {
	return store.NewStore(mem_storage.NewMemStorage())
}

// commit writes fn into a new sink of src, then prepares, flushes and closes it.
func commit(src sail.Source, level sail.IsolationLevel, fn func(sink sail.Sink)) error {
	sink, err := src.Sink(level)
	if err != nil {
		return err
	}
	defer sink.Close()
	fn(sink)
	if err := sink.Prepare(); err != nil {
		return err
	}
	return sink.Flush()
}

func mustCommit(t *testing.T, src sail.Source, fn func(sink sail.Sink)) {
	require.Nil(t, commit(src, sail.Snapshot, fn))
}

func open(t *testing.T, src sail.Source, level sail.IsolationLevel) sail.Dataset {
	ds, err := src.Dataset(level)
	require.Nil(t, err)
	return ds
}

func statements(t *testing.T, ds sail.Dataset, p rdf.Pattern) []rdf.Quad {
	it, err := ds.Statements(p)
	require.Nil(t, err)
	return sail.Collect(it)
}

func size(t *testing.T, ds sail.Dataset) int {
	return len(statements(t, ds, everything))
}

func readAll(t *testing.T, src sail.Source) []rdf.Quad {
	ds := open(t, src, sail.Snapshot)
	defer ds.Close()
	return statements(t, ds, everything)
}

func counter(n int) rdf.Quad {
	return rdf.NewQuad(iri("counter"), iri("value"), rdf.NewLiteral(strconv.Itoa(n)), rdf.DefaultGraph)
}

func prepareAsync(sink sail.Sink) <-chan error {
	done := make(chan error, 1)
	go func() { done <- sink.Prepare() }()
	return done
}

// assertWaiting fails if done delivers while another sink holds the commit gate.
func assertWaiting(t *testing.T, done <-chan error) {
	select {
	case err := <-done:
		t.Fatalf("returned %v while another sink is prepared", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEndToEnd(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()
	apb, apc := quad("a", "p", "b"), quad("a", "p", "c")

	s1 := open(t, b, sail.Snapshot)
	defer s1.Close()
	assert.Equal(t, 0, size(t, s1))

	mustCommit(t, b, func(w1 sail.Sink) { w1.Approve(apb) })

	s2 := open(t, b, sail.Snapshot)
	defer s2.Close()
	assert.Equal(t, []rdf.Quad{apb}, statements(t, s2, everything))
	assert.Equal(t, 0, size(t, s1))

	w2, err := b.Sink(sail.Serializable)
	require.Nil(t, err)
	require.Nil(t, w2.Observe(rdf.NewPattern(iri("a"), rdf.Any, rdf.Any, rdf.DefaultGraph)))
	w2.Deprecate(apb)
	w2.Approve(apc)
	require.Nil(t, w2.Prepare())
	require.Nil(t, w2.Flush())
	require.Nil(t, w2.Close())

	s3 := open(t, b, sail.Snapshot)
	defer s3.Close()
	assert.Equal(t, []rdf.Quad{apc}, statements(t, s3, everything))
	assert.Equal(t, []rdf.Quad{apb}, statements(t, s2, everything))
	assert.Equal(t, 0, size(t, s1))
}

func TestEndToEndConflict(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()
	apb := quad("a", "p", "b")
	mustCommit(t, b, func(w1 sail.Sink) { w1.Approve(apb) })

	w2, err := b.Sink(sail.Serializable)
	require.Nil(t, err)
	defer w2.Close()
	require.Nil(t, w2.Observe(rdf.NewPattern(iri("a"), rdf.Any, rdf.Any, rdf.DefaultGraph)))
	w2.Deprecate(apb)
	w2.Approve(quad("a", "p", "c"))

	mustCommit(t, b, func(w3 sail.Sink) { w3.Deprecate(apb) })

	err = w2.Prepare()
	require.NotNil(t, err)
	assert.True(t, sail.IsConflict(err))
	assert.Empty(t, readAll(t, b))
}

func TestMergeVisibility(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()
	q := quad("a", "p", "b")

	sink, err := b.Sink(sail.Snapshot)
	require.Nil(t, err)
	sink.Approve(q)
	before := open(t, b, sail.Snapshot)
	defer before.Close()
	assert.Empty(t, readAll(t, b))

	require.Nil(t, sink.Flush())
	require.Nil(t, sink.Close())
	assert.Equal(t, []rdf.Quad{q}, readAll(t, b))
	assert.Equal(t, 0, size(t, before))
	assert.True(t, b.IsChanged())
}

func TestReadCommitted(t *testing.T) {
	leaf := newLeaf()
	b := NewBranch(leaf)
	defer b.Close()

	live := open(t, b, sail.ReadCommitted)
	defer live.Close()
	mustCommit(t, leaf, func(sink sail.Sink) { sink.Approve(quad("a", "p", "b")) })
	// The store reads one storage snapshot per dataset, which is stronger than ReadCommitted asks for.
	assert.Equal(t, 0, size(t, live))
	assert.Len(t, readAll(t, b), 1)
}

func TestConflictDetection(t *testing.T) {
	observed := rdf.NewPattern(iri("a"), rdf.Any, rdf.Any)

	t.Run("merge before prepare", func(t *testing.T) {
		b := NewBranch(newLeaf())
		defer b.Close()
		a, err := b.Sink(sail.Serializable)
		require.Nil(t, err)
		defer a.Close()
		a.Observe(observed)
		a.Approve(quad("x", "p", "y"))

		require.Nil(t, commit(b, sail.Snapshot, func(sink sail.Sink) { sink.Approve(quad("a", "p", "b")) }))
		err = a.Prepare()
		require.True(t, sail.IsConflict(err))
		conflict := errors.Cause(err).(*sail.ErrConflict)
		assert.Equal(t, observed, conflict.Observed)
		assert.Equal(t, quad("a", "p", "b"), conflict.Changed)
		assert.True(t, sail.IsConflict(a.Flush()))
	})

	t.Run("merge after flush", func(t *testing.T) {
		b := NewBranch(newLeaf())
		defer b.Close()
		a, err := b.Sink(sail.Serializable)
		require.Nil(t, err)
		a.Observe(observed)
		a.Approve(quad("x", "p", "y"))
		require.Nil(t, a.Prepare())
		require.Nil(t, a.Flush())
		require.Nil(t, a.Close())

		require.Nil(t, commit(b, sail.Serializable, func(sink sail.Sink) {
			sink.Observe(observed)
			sink.Approve(quad("a", "p", "b"))
		}))
		assert.Len(t, readAll(t, b), 2)
	})

	t.Run("unrelated change", func(t *testing.T) {
		b := NewBranch(newLeaf())
		defer b.Close()
		a, err := b.Sink(sail.Serializable)
		require.Nil(t, err)
		defer a.Close()
		a.Observe(observed)
		require.Nil(t, commit(b, sail.Snapshot, func(sink sail.Sink) { sink.Approve(quad("b", "p", "a")) }))
		require.Nil(t, a.Prepare())
		require.Nil(t, a.Flush())
	})

	t.Run("merge after prepare", func(t *testing.T) {
		b := NewBranch(newLeaf())
		defer b.Close()
		a, err := b.Sink(sail.Serializable)
		require.Nil(t, err)
		defer a.Close()
		a.Observe(observed)
		require.Nil(t, a.Prepare())

		done := make(chan error, 1)
		go func() {
			done <- commit(b, sail.Snapshot, func(sink sail.Sink) { sink.Approve(quad("a", "p", "b")) })
		}()
		assertWaiting(t, done)
		require.Nil(t, a.Flush())
		require.Nil(t, <-done)
		assert.Len(t, readAll(t, b), 1)
	})

	t.Run("close releases the gate", func(t *testing.T) {
		b := NewBranch(newLeaf())
		defer b.Close()
		a, err := b.Sink(sail.Serializable)
		require.Nil(t, err)
		a.Observe(observed)
		require.Nil(t, a.Prepare())

		done := make(chan error, 1)
		go func() {
			done <- commit(b, sail.Snapshot, func(sink sail.Sink) { sink.Approve(quad("a", "p", "b")) })
		}()
		assertWaiting(t, done)
		require.Nil(t, a.Close())
		require.Nil(t, <-done)
		assert.Len(t, readAll(t, b), 1)
	})
}

func TestLostUpdate(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()
	mustCommit(t, b, func(sink sail.Sink) { sink.Approve(counter(0)) })

	increment := func() sail.Sink {
		sink, err := b.Sink(sail.Serializable)
		require.Nil(t, err)
		require.Nil(t, sink.Observe(rdf.NewPattern(iri("counter"), rdf.Any, rdf.Any)))
		sink.Deprecate(counter(0))
		sink.Approve(counter(1))
		return sink
	}
	first, second := increment(), increment()
	defer first.Close()
	defer second.Close()

	require.Nil(t, first.Prepare())
	done := prepareAsync(second)
	assertWaiting(t, done)
	require.Nil(t, first.Flush())
	require.Nil(t, first.Close())

	err := <-done
	assert.True(t, sail.IsConflict(err))
	assert.True(t, sail.IsConflict(second.Flush()))
	assert.Equal(t, []rdf.Quad{counter(1)}, readAll(t, b))
}

func TestWriteSkew(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()

	// Each session writes what the other one read.
	x, err := b.Sink(sail.Serializable)
	require.Nil(t, err)
	defer x.Close()
	require.Nil(t, x.Observe(rdf.NewPattern(iri("x"), rdf.Any, rdf.Any)))
	x.Approve(quad("y", "p", "b"))

	y, err := b.Sink(sail.Serializable)
	require.Nil(t, err)
	defer y.Close()
	require.Nil(t, y.Observe(rdf.NewPattern(iri("y"), rdf.Any, rdf.Any)))
	y.Approve(quad("x", "p", "b"))

	require.Nil(t, x.Prepare())
	done := prepareAsync(y)
	assertWaiting(t, done)
	require.Nil(t, x.Flush())

	err = <-done
	require.True(t, sail.IsConflict(err))
	conflict := errors.Cause(err).(*sail.ErrConflict)
	assert.Equal(t, quad("y", "p", "b"), conflict.Changed)
	assert.Equal(t, []rdf.Quad{quad("y", "p", "b")}, readAll(t, b))
}

func TestCompaction(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()
	q1, q2, q3 := quad("a", "p", "1"), quad("a", "p", "2"), quad("a", "p", "3")

	mustCommit(t, b, func(sink sail.Sink) { sink.Approve(q1) })
	require.Len(t, b.changes, 1)

	// The first delta is read, so the second is kept apart from it.
	first := open(t, b, sail.Snapshot)
	mustCommit(t, b, func(sink sail.Sink) { sink.Approve(q2) })
	require.Len(t, b.changes, 2)

	// Nobody reads the second delta, so the third is folded into it.
	mustCommit(t, b, func(sink sail.Sink) {
		sink.Approve(q3)
		sink.Deprecate(q2)
	})
	require.Len(t, b.changes, 2)
	assert.Equal(t, []rdf.Quad{q1}, statements(t, first, everything))
	assert.ElementsMatch(t, []rdf.Quad{q1, q3}, readAll(t, b))

	second := open(t, b, sail.Snapshot)
	require.Nil(t, first.Close())
	require.Len(t, b.changes, 2)
	require.Nil(t, second.Close())
	require.Len(t, b.changes, 1)
	assert.ElementsMatch(t, []rdf.Quad{q1, q3}, readAll(t, b))

	require.Nil(t, b.Flush())
	assert.False(t, b.IsChanged())
	assert.ElementsMatch(t, []rdf.Quad{q1, q3}, readAll(t, b))
}

func TestEmptySinkIsNoop(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()
	mustCommit(t, b, func(sink sail.Sink) {})
	assert.False(t, b.IsChanged())
	assert.Empty(t, b.changes)
	require.Nil(t, b.Flush())
}

func TestFlushIntoBacking(t *testing.T) {
	leaf := newLeaf()
	b := NewBranch(leaf)
	defer b.Close()

	stale := open(t, b, sail.Snapshot)
	defer stale.Close()
	mustCommit(t, b, func(sink sail.Sink) {
		sink.Approve(quad("a", "p", "b"))
		sink.SetNamespace("ex", ex)
	})
	assert.Empty(t, readAll(t, leaf))

	require.Nil(t, b.Flush())
	assert.False(t, b.IsChanged())
	assert.Equal(t, []rdf.Quad{quad("a", "p", "b")}, readAll(t, leaf))
	assert.Equal(t, []rdf.Quad{quad("a", "p", "b")}, readAll(t, b))
	assert.Equal(t, 0, size(t, stale))

	ds := open(t, leaf, sail.Snapshot)
	defer ds.Close()
	name, err := ds.Namespace("ex")
	require.Nil(t, err)
	assert.Equal(t, ex, name)
}

func TestAutoFlush(t *testing.T) {
	leaf := newLeaf()
	b := NewBranch(leaf, WithAutoFlush(true))
	defer b.Close()

	mustCommit(t, b, func(sink sail.Sink) { sink.Approve(quad("a", "p", "1")) })
	assert.False(t, b.IsChanged())
	assert.Len(t, readAll(t, leaf), 1)

	ds := open(t, b, sail.Snapshot)
	mustCommit(t, b, func(sink sail.Sink) { sink.Approve(quad("a", "p", "2")) })
	assert.True(t, b.IsChanged())
	assert.Len(t, readAll(t, leaf), 1)

	require.Nil(t, ds.Close())
	assert.False(t, b.IsChanged())
	assert.Len(t, readAll(t, leaf), 2)
}

func TestFork(t *testing.T) {
	leaf := newLeaf()
	b := NewBranch(leaf)
	defer b.Close()
	txn := b.Fork()
	defer txn.Close()

	mustCommit(t, txn, func(sink sail.Sink) { sink.Approve(quad("a", "p", "b")) })
	assert.Len(t, readAll(t, txn), 1)
	assert.Empty(t, readAll(t, b))

	require.Nil(t, txn.Flush())
	assert.Len(t, readAll(t, b), 1)
	assert.Empty(t, readAll(t, leaf))

	require.Nil(t, b.Flush())
	assert.Len(t, readAll(t, leaf), 1)
}

func TestForkRollback(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()
	txn := b.Fork()
	mustCommit(t, txn, func(sink sail.Sink) { sink.Approve(quad("a", "p", "b")) })
	require.Nil(t, txn.Close())
	assert.Empty(t, readAll(t, b))
	assert.False(t, b.IsChanged())

	_, err := txn.Sink(sail.Snapshot)
	assert.Equal(t, sail.ErrClosed, errors.Cause(err))
	_, err = txn.Dataset(sail.Snapshot)
	assert.Equal(t, sail.ErrClosed, errors.Cause(err))
}

// serializableUpdate reads the quads matching p in a serializable transaction over b and replaces them by update.
func serializableUpdate(t *testing.T, b *Branch, p rdf.Pattern, update func([]rdf.Quad) []rdf.Quad) *Branch {
	txn := b.Fork()
	ds := open(t, txn, sail.Serializable)
	old := statements(t, ds, p)
	require.Nil(t, ds.Close())
	mustCommitAt(t, txn, sail.Serializable, func(sink sail.Sink) {
		for _, q := range old {
			sink.Deprecate(q)
		}
		for _, q := range update(old) {
			sink.Approve(q)
		}
	})
	return txn
}

func mustCommitAt(t *testing.T, src sail.Source, level sail.IsolationLevel, fn func(sink sail.Sink)) {
	require.Nil(t, commit(src, level, fn))
}

func TestSerializableTransaction(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()
	mustCommit(t, b, func(sink sail.Sink) { sink.Approve(quad("a", "p", "1")) })
	p := rdf.NewPattern(iri("a"), iri("p"), rdf.Any)
	replace := func(o string) func([]rdf.Quad) []rdf.Quad {
		return func([]rdf.Quad) []rdf.Quad { return []rdf.Quad{quad("a", "p", o)} }
	}

	first := serializableUpdate(t, b, p, replace("2"))
	defer first.Close()
	second := serializableUpdate(t, b, p, replace("3"))
	defer second.Close()

	require.Nil(t, first.Flush())
	assert.Equal(t, []rdf.Quad{quad("a", "p", "2")}, readAll(t, b))

	err := second.Flush()
	require.True(t, sail.IsConflict(err))
	assert.True(t, second.IsChanged())
	assert.Equal(t, []rdf.Quad{quad("a", "p", "2")}, readAll(t, b))

	// Reads of other patterns do not conflict.
	third := serializableUpdate(t, b, rdf.NewPattern(iri("b"), rdf.Any, rdf.Any), replace("4"))
	defer third.Close()
	mustCommit(t, b, func(sink sail.Sink) { sink.Approve(quad("c", "p", "5")) })
	require.Nil(t, third.Flush())
	assert.ElementsMatch(t, []rdf.Quad{quad("a", "p", "4"), quad("a", "p", "2"), quad("c", "p", "5")}, readAll(t, b))
}

func TestSerializableReadOwnWrites(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()
	txn := b.Fork()
	defer txn.Close()

	ds := open(t, txn, sail.Serializable)
	assert.Equal(t, 0, size(t, ds))
	mustCommitAt(t, txn, sail.Serializable, func(sink sail.Sink) { sink.Approve(quad("a", "p", "b")) })
	require.Nil(t, ds.Close())

	assert.Len(t, readAll(t, txn), 1)
	require.Nil(t, txn.Flush())
	assert.Len(t, readAll(t, b), 1)
}

func TestClearOverlay(t *testing.T) {
	leaf := newLeaf()
	mustCommit(t, leaf, func(sink sail.Sink) {
		sink.Approve(quad("a", "p", "b"))
		sink.Approve(quadIn("a", "p", "c", "g1"))
		sink.Approve(quadIn("a", "p", "d", "g2"))
	})
	b := NewBranch(leaf)
	defer b.Close()

	mustCommit(t, b, func(sink sail.Sink) {
		sink.Clear(graph("g1"))
		sink.Approve(quadIn("a", "p", "e", "g1"))
	})
	ds := open(t, b, sail.Snapshot)
	assert.ElementsMatch(t, []rdf.Quad{
		quad("a", "p", "b"), quadIn("a", "p", "d", "g2"), quadIn("a", "p", "e", "g1"),
	}, statements(t, ds, everything))
	assert.Equal(t, []rdf.Quad{quadIn("a", "p", "e", "g1")},
		statements(t, ds, rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any, graph("g1"))))
	contexts, err := ds.ContextIDs()
	require.Nil(t, err)
	assert.ElementsMatch(t, []rdf.Value{graph("g1"), graph("g2")}, contexts)
	require.Nil(t, ds.Close())

	mustCommit(t, b, func(sink sail.Sink) { sink.Deprecate(quadIn("a", "p", "d", "g2")) })
	ds = open(t, b, sail.Snapshot)
	contexts, err = ds.ContextIDs()
	require.Nil(t, err)
	assert.Equal(t, []rdf.Value{graph("g1")}, contexts)
	require.Nil(t, ds.Close())

	mustCommit(t, b, func(sink sail.Sink) {
		sink.Clear()
		sink.Approve(quad("x", "p", "y"))
	})
	assert.Equal(t, []rdf.Quad{quad("x", "p", "y")}, readAll(t, b))

	require.Nil(t, b.Flush())
	assert.Equal(t, []rdf.Quad{quad("x", "p", "y")}, readAll(t, leaf))
}

func TestNamespaceOverlay(t *testing.T) {
	leaf := newLeaf()
	mustCommit(t, leaf, func(sink sail.Sink) {
		sink.SetNamespace("ex", ex)
		sink.SetNamespace("foaf", "http://xmlns.com/foaf/0.1/")
	})
	b := NewBranch(leaf)
	defer b.Close()

	mustCommit(t, b, func(sink sail.Sink) {
		sink.RemoveNamespace("ex")
		sink.SetNamespace("owl", "http://www.w3.org/2002/07/owl#")
		sink.SetNamespace("foaf", "http://xmlns.com/foaf/spec/")
	})
	ds := open(t, b, sail.Snapshot)
	namespaces, err := ds.Namespaces()
	require.Nil(t, err)
	assert.Equal(t, []rdf.Namespace{
		{Prefix: "foaf", Name: "http://xmlns.com/foaf/spec/"},
		{Prefix: "owl", Name: "http://www.w3.org/2002/07/owl#"},
	}, namespaces)
	name, err := ds.Namespace("ex")
	require.Nil(t, err)
	assert.Equal(t, "", name)
	require.Nil(t, ds.Close())

	mustCommit(t, b, func(sink sail.Sink) {
		sink.ClearNamespaces()
		sink.SetNamespace("ex", ex)
	})
	ds = open(t, b, sail.Snapshot)
	defer ds.Close()
	namespaces, err = ds.Namespaces()
	require.Nil(t, err)
	assert.Equal(t, []rdf.Namespace{{Prefix: "ex", Name: ex}}, namespaces)
	name, err = ds.Namespace("foaf")
	require.Nil(t, err)
	assert.Equal(t, "", name)
}

func TestSinkMisuse(t *testing.T) {
	b := NewBranch(newLeaf())
	defer b.Close()

	sink, err := b.Sink(sail.Snapshot)
	require.Nil(t, err)
	assert.Panics(t, func() { sink.Observe(everything) })
	require.Nil(t, sink.Flush())
	assert.Panics(t, func() { sink.Approve(quad("a", "p", "b")) })
	assert.Panics(t, func() { sink.Flush() })
	require.Nil(t, sink.Close())
	require.Nil(t, sink.Close())

	sink, err = b.Sink(sail.Serializable)
	require.Nil(t, err)
	require.Nil(t, sink.Close())
	assert.Panics(t, func() { sink.Prepare() })
}

func TestConcurrentIncrements(t *testing.T) {
	const workers = 8
	leaf := newLeaf()
	b := NewBranch(leaf, WithAutoFlush(true))
	defer b.Close()
	mustCommit(t, b, func(sink sail.Sink) { sink.Approve(counter(0)) })

	increment := func() error {
		txn := b.Fork()
		defer txn.Close()
		ds, err := txn.Dataset(sail.Serializable)
		if err != nil {
			return err
		}
		it, err := ds.Statements(rdf.NewPattern(iri("counter"), iri("value"), rdf.Any))
		if err != nil {
			ds.Close()
			return err
		}
		quads := sail.Collect(it)
		if err := ds.Close(); err != nil {
			return err
		}
		if len(quads) != 1 {
			return errors.Errorf("expected one counter, got %v", quads)
		}
		n, err := strconv.Atoi(quads[0].Object.Label())
		if err != nil {
			return errors.Trace(err)
		}
		err = commit(txn, sail.Serializable, func(sink sail.Sink) {
			sink.Deprecate(quads[0])
			sink.Approve(counter(n + 1))
		})
		if err != nil {
			return err
		}
		return txn.Flush()
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				err := increment()
				if !sail.IsConflict(err) {
					return err
				}
			}
		})
	}
	require.Nil(t, g.Wait())
	assert.False(t, b.IsChanged())
	assert.Equal(t, []rdf.Quad{counter(workers)}, readAll(t, leaf))
}
