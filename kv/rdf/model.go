package rdf

import (
	"sort"

	"github.com/pingcap/errors"
)

// Model is a mutable set of quads. Implementations are not safe for concurrent use.
type Model interface {
	// Add inserts q and reports whether it was absent.
	Add(q Quad) bool
	// Remove deletes q and reports whether it was present.
	Remove(q Quad) bool
	// RemoveMatch deletes every quad matching p and returns how many were removed.
	RemoveMatch(p Pattern) int
	Contains(p Pattern) bool
	Match(p Pattern) []Quad
	// Each calls fn for every quad until fn returns false.
	Each(fn func(Quad) bool)
	Len() int
	HasContext(ctx Value) bool
	Contexts() []Value
}

// ModelFactory creates empty models. A storage engine picks the factory whose layout suits its own indexes.
type ModelFactory interface {
	NewModel() Model
	Name() string
}

const (
	TreeModelName = "tree"
	HashModelName = "hash"
)

// NewModelFactory resolves a factory by name, an empty name selects the tree model.
func NewModelFactory(name string) (ModelFactory, error) {
	switch name {
	case "", TreeModelName:
		return TreeModelFactory{}, nil
	case HashModelName:
		return HashModelFactory{}, nil
	}
	return nil, errors.Errorf("unknown model factory %q", name)
}

// contextCounts tracks how many quads each context holds so HasContext does not need a scan.
type contextCounts map[Value]int

func (c contextCounts) inc(ctx Value) {
	c[ctx]++
}

func (c contextCounts) dec(ctx Value) {
	if c[ctx] <= 1 {
		delete(c, ctx)
		return
	}
	c[ctx]--
}

func (c contextCounts) has(ctx Value) bool {
	return c[ctx] > 0
}

// named returns the named graphs in lexical order.
func (c contextCounts) named() []Value {
	ctxs := make([]Value, 0, len(c))
	for ctx := range c {
		if ctx.IsBound() {
			ctxs = append(ctxs, ctx)
		}
	}
	sort.Slice(ctxs, func(i, j int) bool { return ctxs[i] < ctxs[j] })
	return ctxs
}
