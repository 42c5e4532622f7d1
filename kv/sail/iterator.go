package sail

import (
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
)

// QuadIterator walks the result of a Dataset lookup. The zero position is the first quad; Quad may only be called
// while Valid returns true. Close must always be called.
type QuadIterator interface {
	Valid() bool
	Next()
	Quad() rdf.Quad
	Close()
}

type sliceIterator struct {
	quads []rdf.Quad
	pos   int
}

// NewSliceIterator iterates over quads, which must not be modified afterwards.
func NewSliceIterator(quads []rdf.Quad) QuadIterator {
	return &sliceIterator{quads: quads}
}

func (it *sliceIterator) Valid() bool    { return it.pos < len(it.quads) }
func (it *sliceIterator) Next()          { it.pos++ }
func (it *sliceIterator) Quad() rdf.Quad { return it.quads[it.pos] }
func (it *sliceIterator) Close()         { it.quads = nil }

type filterIterator struct {
	inner QuadIterator
	keep  func(rdf.Quad) bool
}

// NewFilterIterator skips the quads of inner for which keep returns false.
func NewFilterIterator(inner QuadIterator, keep func(rdf.Quad) bool) QuadIterator {
	it := &filterIterator{inner: inner, keep: keep}
	it.skip()
	return it
}

func (it *filterIterator) skip() {
	for it.inner.Valid() && !it.keep(it.inner.Quad()) {
		it.inner.Next()
	}
}

func (it *filterIterator) Valid() bool { return it.inner.Valid() }

func (it *filterIterator) Next() {
	it.inner.Next()
	it.skip()
}

func (it *filterIterator) Quad() rdf.Quad { return it.inner.Quad() }
func (it *filterIterator) Close()         { it.inner.Close() }

type concatIterator struct {
	iters []QuadIterator
}

// NewConcatIterator yields the quads of each iterator in turn.
func NewConcatIterator(iters ...QuadIterator) QuadIterator {
	it := &concatIterator{iters: iters}
	it.advance()
	return it
}

// advance drops exhausted iterators from the front.
func (it *concatIterator) advance() {
	for len(it.iters) > 0 && !it.iters[0].Valid() {
		it.iters[0].Close()
		it.iters = it.iters[1:]
	}
}

func (it *concatIterator) Valid() bool { return len(it.iters) > 0 }

func (it *concatIterator) Next() {
	it.iters[0].Next()
	it.advance()
}

func (it *concatIterator) Quad() rdf.Quad { return it.iters[0].Quad() }

func (it *concatIterator) Close() {
	for _, inner := range it.iters {
		inner.Close()
	}
	it.iters = nil
}

// Collect drains and closes it.
func Collect(it QuadIterator) []rdf.Quad {
	defer it.Close()
	var quads []rdf.Quad
	for ; it.Valid(); it.Next() {
		quads = append(quads, it.Quad())
	}
	return quads
}

// Count drains and closes it, returning the number of quads.
func Count(it QuadIterator) int {
	defer it.Close()
	n := 0
	for ; it.Valid(); it.Next() {
		n++
	}
	return n
}
