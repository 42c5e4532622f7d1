package rdf

import (
	"github.com/google/btree"
)

const treeDegree = 16

// TreeModelFactory creates models ordered by subject, predicate, object and context.
type TreeModelFactory struct{}

func (TreeModelFactory) NewModel() Model {
	return NewTreeModel()
}

func (TreeModelFactory) Name() string {
	return TreeModelName
}

type quadItem Quad

func (it quadItem) Less(than btree.Item) bool {
	return Quad(it).Less(Quad(than.(quadItem)))
}

// TreeModel keeps quads in a btree so matches on a bound subject only walk that subject's range.
type TreeModel struct {
	tree     *btree.BTree
	contexts contextCounts
}

func NewTreeModel() *TreeModel {
	return &TreeModel{
		tree:     btree.New(treeDegree),
		contexts: make(contextCounts),
	}
}

func (m *TreeModel) Add(q Quad) bool {
	if m.tree.ReplaceOrInsert(quadItem(q)) != nil {
		return false
	}
	m.contexts.inc(q.Context)
	return true
}

func (m *TreeModel) Remove(q Quad) bool {
	if m.tree.Delete(quadItem(q)) == nil {
		return false
	}
	m.contexts.dec(q.Context)
	return true
}

func (m *TreeModel) RemoveMatch(p Pattern) int {
	matched := m.Match(p)
	for _, q := range matched {
		m.Remove(q)
	}
	return len(matched)
}

func (m *TreeModel) Contains(p Pattern) bool {
	if isExact(p) {
		return m.tree.Has(quadItem(exactQuad(p)))
	}
	found := false
	m.ascend(p, func(q Quad) bool {
		found = true
		return false
	})
	return found
}

func (m *TreeModel) Match(p Pattern) []Quad {
	var quads []Quad
	m.ascend(p, func(q Quad) bool {
		quads = append(quads, q)
		return true
	})
	return quads
}

func (m *TreeModel) Each(fn func(Quad) bool) {
	m.tree.Ascend(func(item btree.Item) bool {
		return fn(Quad(item.(quadItem)))
	})
}

func (m *TreeModel) Len() int {
	return m.tree.Len()
}

func (m *TreeModel) HasContext(ctx Value) bool {
	return m.contexts.has(ctx)
}

func (m *TreeModel) Contexts() []Value {
	return m.contexts.named()
}

// ascend visits quads matching p in order, seeking to the subject range when the subject is bound.
func (m *TreeModel) ascend(p Pattern, fn func(Quad) bool) {
	if len(p.Contexts) > 0 && !m.anyContext(p.Contexts) {
		return
	}
	visit := func(item btree.Item) bool {
		q := Quad(item.(quadItem))
		if p.Subject.IsBound() && q.Subject != p.Subject {
			return false
		}
		if !p.Matches(q) {
			return true
		}
		return fn(q)
	}
	if p.Subject.IsBound() {
		m.tree.AscendGreaterOrEqual(quadItem{Subject: p.Subject, Predicate: p.Predicate}, visit)
		return
	}
	m.tree.Ascend(visit)
}

func (m *TreeModel) anyContext(ctxs []Value) bool {
	for _, ctx := range ctxs {
		if m.contexts.has(ctx) {
			return true
		}
	}
	return false
}

// Clone returns a copy sharing structure with m, later writes to either copy do not affect the other.
func (m *TreeModel) Clone() *TreeModel {
	contexts := make(contextCounts, len(m.contexts))
	for ctx, n := range m.contexts {
		contexts[ctx] = n
	}
	return &TreeModel{tree: m.tree.Clone(), contexts: contexts}
}

func isExact(p Pattern) bool {
	return p.Subject.IsBound() && p.Predicate.IsBound() && p.Object.IsBound() && len(p.Contexts) == 1
}

func exactQuad(p Pattern) Quad {
	return NewQuad(p.Subject, p.Predicate, p.Object, p.Contexts[0])
}
