package rdf

// HashModelFactory creates unordered models with constant time membership tests.
type HashModelFactory struct{}

func (HashModelFactory) NewModel() Model {
	return NewHashModel()
}

func (HashModelFactory) Name() string {
	return HashModelName
}

type HashModel struct {
	quads    map[Quad]struct{}
	contexts contextCounts
}

func NewHashModel() *HashModel {
	return &HashModel{
		quads:    make(map[Quad]struct{}),
		contexts: make(contextCounts),
	}
}

func (m *HashModel) Add(q Quad) bool {
	if _, ok := m.quads[q]; ok {
		return false
	}
	m.quads[q] = struct{}{}
	m.contexts.inc(q.Context)
	return true
}

func (m *HashModel) Remove(q Quad) bool {
	if _, ok := m.quads[q]; !ok {
		return false
	}
	delete(m.quads, q)
	m.contexts.dec(q.Context)
	return true
}

func (m *HashModel) RemoveMatch(p Pattern) int {
	matched := m.Match(p)
	for _, q := range matched {
		m.Remove(q)
	}
	return len(matched)
}

func (m *HashModel) Contains(p Pattern) bool {
	if isExact(p) {
		_, ok := m.quads[exactQuad(p)]
		return ok
	}
	for q := range m.quads {
		if p.Matches(q) {
			return true
		}
	}
	return false
}

func (m *HashModel) Match(p Pattern) []Quad {
	if isExact(p) {
		if q := exactQuad(p); m.hasQuad(q) {
			return []Quad{q}
		}
		return nil
	}
	var quads []Quad
	for q := range m.quads {
		if p.Matches(q) {
			quads = append(quads, q)
		}
	}
	return quads
}

func (m *HashModel) Each(fn func(Quad) bool) {
	for q := range m.quads {
		if !fn(q) {
			return
		}
	}
}

func (m *HashModel) Len() int {
	return len(m.quads)
}

func (m *HashModel) HasContext(ctx Value) bool {
	return m.contexts.has(ctx)
}

func (m *HashModel) Contexts() []Value {
	return m.contexts.named()
}

func (m *HashModel) hasQuad(q Quad) bool {
	_, ok := m.quads[q]
	return ok
}
