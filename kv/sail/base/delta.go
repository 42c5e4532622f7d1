package base

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"go.uber.org/atomic"
)

// observation is a pattern read by a serializable session. A pattern over several contexts is recorded as one
// observation per context.
type observation struct {
	subj, pred, obj rdf.Value
	ctx             rdf.Value
	anyContext      bool
}

func (o observation) pattern() rdf.Pattern {
	if o.anyContext {
		return rdf.NewPattern(o.subj, o.pred, o.obj)
	}
	return rdf.NewPattern(o.subj, o.pred, o.obj, o.ctx)
}

// delta is the set of changes of one write session, waiting to be merged into a Branch or flushed into its backing
// source. Once merged, open datasets read it concurrently, so every field is guarded by mu.
type delta struct {
	mu      sync.RWMutex
	factory rdf.ModelFactory

	// Number of open datasets composed over this delta. A delta with readers is never folded into.
	refs atomic.Int32

	// Deltas merged into the same Branch after this one was opened. Observations are checked against them.
	prepend map[*delta]struct{}

	observations map[observation]struct{}

	// Quads added and removed. A quad is never in both.
	approved   rdf.Model
	deprecated rdf.Model

	// Contexts passed to clear.
	deprecatedContexts map[rdf.Value]struct{}

	addedNamespaces  map[string]string
	removedPrefixes  map[string]struct{}
	namespaceCleared bool
	// All quads were removed, other than those approved afterwards.
	statementCleared bool
}

func newDelta(factory rdf.ModelFactory) *delta {
	return &delta{factory: factory}
}

func (d *delta) Approve(q rdf.Quad) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deprecated != nil {
		d.deprecated.Remove(q)
	}
	if d.approved == nil {
		d.approved = d.factory.NewModel()
	}
	d.approved.Add(q)
	return nil
}

func (d *delta) Deprecate(q rdf.Quad) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.approved != nil {
		d.approved.Remove(q)
	}
	if d.deprecated == nil {
		d.deprecated = d.factory.NewModel()
	}
	d.deprecated.Add(q)
	return nil
}

func (d *delta) Clear(contexts ...rdf.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(contexts) == 0 {
		d.approved = nil
		d.statementCleared = true
		return nil
	}
	if d.approved != nil {
		d.approved.RemoveMatch(rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any, contexts...))
	}
	if d.deprecatedContexts == nil {
		d.deprecatedContexts = make(map[rdf.Value]struct{})
	}
	for _, ctx := range contexts {
		d.deprecatedContexts[ctx] = struct{}{}
	}
	return nil
}

func (d *delta) SetNamespace(prefix, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.removedPrefixes, prefix)
	if d.addedNamespaces == nil {
		d.addedNamespaces = make(map[string]string)
	}
	d.addedNamespaces[prefix] = name
	return nil
}

func (d *delta) RemoveNamespace(prefix string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.addedNamespaces, prefix)
	if d.removedPrefixes == nil {
		d.removedPrefixes = make(map[string]struct{})
	}
	d.removedPrefixes[prefix] = struct{}{}
	return nil
}

func (d *delta) ClearNamespaces() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addedNamespaces = nil
	d.removedPrefixes = nil
	d.namespaceCleared = true
	return nil
}

func (d *delta) Observe(p rdf.Pattern) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.observations == nil {
		d.observations = make(map[observation]struct{})
	}
	if p.AnyContext() {
		d.observations[observation{subj: p.Subject, pred: p.Predicate, obj: p.Object, anyContext: true}] = struct{}{}
		return nil
	}
	for _, ctx := range p.Contexts {
		d.observations[observation{subj: p.Subject, pred: p.Predicate, obj: p.Object, ctx: ctx}] = struct{}{}
	}
	return nil
}

func (d *delta) addPrepend(other *delta) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.prepend == nil {
		d.prepend = make(map[*delta]struct{})
	}
	d.prepend[other] = struct{}{}
}

// checkConflicts fails if any observed pattern matches a change of a delta merged after this one was opened.
// Sessions below Serializable never observe, so the check is empty for them.
func (d *delta) checkConflicts() error {
	d.mu.RLock()
	observed := d.observationList()
	others := make([]*delta, 0, len(d.prepend))
	for other := range d.prepend {
		others = append(others, other)
	}
	d.mu.RUnlock()

	for _, p := range observed {
		for _, other := range others {
			if changed, ok := other.changedMatch(p); ok {
				return &sail.ErrConflict{Observed: p, Changed: changed}
			}
		}
	}
	return nil
}

// changedMatch returns a quad this delta approved, deprecated or cleared that matches p.
func (d *delta) changedMatch(p rdf.Pattern) (rdf.Quad, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.approved != nil {
		if quads := d.approved.Match(p); len(quads) > 0 {
			return quads[0], true
		}
	}
	if d.deprecated != nil {
		if quads := d.deprecated.Match(p); len(quads) > 0 {
			return quads[0], true
		}
	}
	if d.statementCleared {
		return rdf.Quad{}, true
	}
	for ctx := range d.deprecatedContexts {
		if p.MatchesContext(ctx) {
			return rdf.Quad{Context: ctx}, true
		}
	}
	return rdf.Quad{}, false
}

func (d *delta) isChanged() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isChangedLocked()
}

func (d *delta) isChangedLocked() bool {
	return (d.approved != nil && d.approved.Len() > 0) ||
		(d.deprecated != nil && d.deprecated.Len() > 0) ||
		len(d.deprecatedContexts) > 0 ||
		len(d.addedNamespaces) > 0 || len(d.removedPrefixes) > 0 ||
		d.namespaceCleared || d.statementCleared ||
		len(d.observations) > 0
}

func (d *delta) isDeprecated(q rdf.Quad) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.deprecated != nil && d.deprecated.Contains(rdf.PatternOf(q))
}

// adopt moves every change of src into d, which must be unchanged. src is left as is and must not be used as a
// fold target afterwards.
func (d *delta) adopt(src *delta) {
	src.mu.RLock()
	defer src.mu.RUnlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observations = src.observations
	d.approved = src.approved
	d.deprecated = src.deprecated
	d.deprecatedContexts = src.deprecatedContexts
	d.addedNamespaces = src.addedNamespaces
	d.removedPrefixes = src.removedPrefixes
	d.namespaceCleared = src.namespaceCleared
	d.statementCleared = src.statementCleared
}

// snapshot copies the changes of d so they can be replayed without holding its lock.
func (d *delta) snapshot() deltaSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := deltaSnapshot{
		observations:     d.observationList(),
		namespaceCleared: d.namespaceCleared,
		statementCleared: d.statementCleared,
	}
	for prefix := range d.removedPrefixes {
		s.removedPrefixes = append(s.removedPrefixes, prefix)
	}
	sort.Strings(s.removedPrefixes)
	for prefix, name := range d.addedNamespaces {
		s.addedNamespaces = append(s.addedNamespaces, rdf.Namespace{Prefix: prefix, Name: name})
	}
	sort.Slice(s.addedNamespaces, func(i, j int) bool {
		return s.addedNamespaces[i].Prefix < s.addedNamespaces[j].Prefix
	})
	for ctx := range d.deprecatedContexts {
		s.deprecatedContexts = append(s.deprecatedContexts, ctx)
	}
	sort.Slice(s.deprecatedContexts, func(i, j int) bool { return s.deprecatedContexts[i] < s.deprecatedContexts[j] })
	s.deprecated = modelQuads(d.deprecated)
	s.approved = modelQuads(d.approved)
	return s
}

// observationList must be called with mu held.
func (d *delta) observationList() []rdf.Pattern {
	patterns := make([]rdf.Pattern, 0, len(d.observations))
	for o := range d.observations {
		patterns = append(patterns, o.pattern())
	}
	return patterns
}

func (d *delta) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var parts []string
	count := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	count(len(d.observations), "observations")
	if d.namespaceCleared {
		parts = append(parts, "namespaceCleared")
	}
	count(len(d.removedPrefixes), "removedPrefixes")
	count(len(d.addedNamespaces), "addedNamespaces")
	if d.statementCleared {
		parts = append(parts, "statementCleared")
	}
	count(len(d.deprecatedContexts), "deprecatedContexts")
	if d.deprecated != nil {
		count(d.deprecated.Len(), "deprecated")
	}
	if d.approved != nil {
		count(d.approved.Len(), "approved")
	}
	if len(parts) == 0 {
		return "unchanged"
	}
	return strings.Join(parts, ", ")
}

type deltaSnapshot struct {
	observations       []rdf.Pattern
	namespaceCleared   bool
	removedPrefixes    []string
	addedNamespaces    []rdf.Namespace
	statementCleared   bool
	deprecatedContexts []rdf.Value
	deprecated         []rdf.Quad
	approved           []rdf.Quad
}

func modelQuads(m rdf.Model) []rdf.Quad {
	if m == nil {
		return nil
	}
	quads := make([]rdf.Quad, 0, m.Len())
	m.Each(func(q rdf.Quad) bool {
		quads = append(quads, q)
		return true
	})
	return quads
}
