package base

import (
	"testing"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contains(m rdf.Model, q rdf.Quad) bool {
	return m != nil && m.Contains(rdf.PatternOf(q))
}

func TestApproveDeprecateExclusive(t *testing.T) {
	for _, factory := range []rdf.ModelFactory{rdf.TreeModelFactory{}, rdf.HashModelFactory{}} {
		q := quad("a", "p", "b")

		d := newDelta(factory)
		d.Approve(q)
		d.Deprecate(q)
		assert.True(t, contains(d.deprecated, q), factory.Name())
		assert.False(t, contains(d.approved, q), factory.Name())

		d = newDelta(factory)
		d.Deprecate(q)
		d.Approve(q)
		assert.True(t, contains(d.approved, q), factory.Name())
		assert.False(t, contains(d.deprecated, q), factory.Name())
	}
}

func TestDeltaIsChanged(t *testing.T) {
	cases := []func(d *delta){
		func(d *delta) { d.Approve(quad("a", "p", "b")) },
		func(d *delta) { d.Deprecate(quad("a", "p", "b")) },
		func(d *delta) { d.Clear() },
		func(d *delta) { d.Clear(graph("g")) },
		func(d *delta) { d.SetNamespace("ex", "http://example.org/") },
		func(d *delta) { d.RemoveNamespace("ex") },
		func(d *delta) { d.ClearNamespaces() },
		func(d *delta) { d.Observe(rdf.NewPattern(iri("a"), rdf.Any, rdf.Any)) },
	}
	for i, change := range cases {
		d := newDelta(rdf.TreeModelFactory{})
		require.False(t, d.isChanged())
		change(d)
		assert.True(t, d.isChanged(), "case %d", i)
	}

	// Approving then deprecating leaves a deprecation behind, which is still a change.
	d := newDelta(rdf.TreeModelFactory{})
	d.Approve(quad("a", "p", "b"))
	d.Deprecate(quad("a", "p", "b"))
	assert.True(t, d.isChanged())
	assert.Equal(t, "1 deprecated", d.String())
}

func TestDeltaClear(t *testing.T) {
	d := newDelta(rdf.TreeModelFactory{})
	d.Approve(quadIn("a", "p", "b", "g1"))
	d.Approve(quadIn("a", "p", "c", "g2"))
	d.Clear(graph("g1"))
	assert.False(t, contains(d.approved, quadIn("a", "p", "b", "g1")))
	assert.True(t, contains(d.approved, quadIn("a", "p", "c", "g2")))
	assert.Contains(t, d.deprecatedContexts, graph("g1"))
	assert.False(t, d.statementCleared)

	d.Clear()
	assert.True(t, d.statementCleared)
	assert.Nil(t, d.approved)
}

func TestDeltaNamespacesLastWriteWins(t *testing.T) {
	d := newDelta(rdf.TreeModelFactory{})
	d.RemoveNamespace("ex")
	d.SetNamespace("ex", "http://example.org/")
	assert.Equal(t, "http://example.org/", d.addedNamespaces["ex"])
	assert.NotContains(t, d.removedPrefixes, "ex")

	d.RemoveNamespace("ex")
	assert.NotContains(t, d.addedNamespaces, "ex")
	assert.Contains(t, d.removedPrefixes, "ex")

	d.SetNamespace("foaf", "http://xmlns.com/foaf/0.1/")
	d.ClearNamespaces()
	assert.Empty(t, d.addedNamespaces)
	assert.Empty(t, d.removedPrefixes)
	assert.True(t, d.namespaceCleared)
}

func TestDeltaObserveSplitsContexts(t *testing.T) {
	d := newDelta(rdf.TreeModelFactory{})
	d.Observe(rdf.NewPattern(iri("a"), rdf.Any, rdf.Any, graph("g1"), graph("g2")))
	d.Observe(rdf.NewPattern(iri("a"), rdf.Any, rdf.Any, graph("g1")))
	assert.Len(t, d.observations, 2)
}

func TestCheckConflicts(t *testing.T) {
	observer := newDelta(rdf.TreeModelFactory{})
	observer.Observe(rdf.NewPattern(iri("a"), rdf.Any, rdf.Any, rdf.DefaultGraph))

	unrelated := newDelta(rdf.TreeModelFactory{})
	unrelated.Approve(quad("b", "p", "c"))
	unrelated.Approve(quadIn("a", "p", "c", "g1"))
	observer.addPrepend(unrelated)
	require.Nil(t, observer.checkConflicts())

	writer := newDelta(rdf.TreeModelFactory{})
	writer.Deprecate(quad("a", "p", "b"))
	observer.addPrepend(writer)
	err := observer.checkConflicts()
	require.NotNil(t, err)
	require.True(t, sail.IsConflict(err))
	assert.Equal(t, quad("a", "p", "b"), err.(*sail.ErrConflict).Changed)
}

func TestCheckConflictsOnClear(t *testing.T) {
	observer := newDelta(rdf.TreeModelFactory{})
	observer.Observe(rdf.NewPattern(rdf.Any, iri("p"), rdf.Any, graph("g1")))

	other := newDelta(rdf.TreeModelFactory{})
	other.Clear(graph("g2"))
	observer.addPrepend(other)
	require.Nil(t, observer.checkConflicts())

	clearing := newDelta(rdf.TreeModelFactory{})
	clearing.Clear(graph("g1"))
	observer.addPrepend(clearing)
	assert.True(t, sail.IsConflict(observer.checkConflicts()))

	observer = newDelta(rdf.TreeModelFactory{})
	observer.Observe(rdf.NewPattern(rdf.Any, iri("p"), rdf.Any))
	all := newDelta(rdf.TreeModelFactory{})
	all.Clear()
	observer.addPrepend(all)
	assert.True(t, sail.IsConflict(observer.checkConflicts()))
}

func TestReplayFoldsInOrder(t *testing.T) {
	older := newDelta(rdf.TreeModelFactory{})
	older.Approve(quad("a", "p", "b"))
	older.Approve(quadIn("a", "p", "c", "g1"))
	older.SetNamespace("ex", "http://example.org/")

	newer := newDelta(rdf.TreeModelFactory{})
	newer.Clear(graph("g1"))
	newer.Deprecate(quad("a", "p", "b"))
	newer.Approve(quad("a", "p", "d"))
	newer.RemoveNamespace("ex")
	newer.Observe(rdf.NewPattern(iri("a"), rdf.Any, rdf.Any))

	require.Nil(t, replay(newer.snapshot(), older, true))
	assert.False(t, contains(older.approved, quad("a", "p", "b")))
	assert.True(t, contains(older.deprecated, quad("a", "p", "b")))
	assert.False(t, contains(older.approved, quadIn("a", "p", "c", "g1")))
	assert.True(t, contains(older.approved, quad("a", "p", "d")))
	assert.Contains(t, older.deprecatedContexts, graph("g1"))
	assert.Contains(t, older.removedPrefixes, "ex")
	assert.NotContains(t, older.addedNamespaces, "ex")
	assert.Len(t, older.observations, 1)
}
