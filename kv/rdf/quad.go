package rdf

import (
	"strings"

	"github.com/pingcap/errors"
)

// Quad is a statement in a named graph. Subject, predicate and object are always bound, Context is DefaultGraph for
// statements outside any named graph.
type Quad struct {
	Subject   Value
	Predicate Value
	Object    Value
	Context   Value
}

func NewQuad(subj, pred, obj, ctx Value) Quad {
	return Quad{Subject: subj, Predicate: pred, Object: obj, Context: ctx}
}

func (q Quad) Validate() error {
	if !q.Subject.IsResource() {
		return errors.Errorf("subject %q is not a resource", q.Subject)
	}
	if !q.Predicate.IsIRI() {
		return errors.Errorf("predicate %q is not an IRI", q.Predicate)
	}
	if !q.Object.IsResource() && !q.Object.IsLiteral() {
		return errors.Errorf("object %q is not a term", q.Object)
	}
	if q.Context.IsBound() && !q.Context.IsResource() {
		return errors.Errorf("context %q is not a resource", q.Context)
	}
	return nil
}

// String formats q as an N-Quads line.
func (q Quad) String() string {
	var sb strings.Builder
	sb.WriteString(string(q.Subject))
	sb.WriteByte(' ')
	sb.WriteString(string(q.Predicate))
	sb.WriteByte(' ')
	sb.WriteString(string(q.Object))
	if q.Context.IsBound() {
		sb.WriteByte(' ')
		sb.WriteString(string(q.Context))
	}
	sb.WriteString(" .")
	return sb.String()
}

// Less orders quads by subject, predicate, object, then context.
func (q Quad) Less(o Quad) bool {
	if q.Subject != o.Subject {
		return q.Subject < o.Subject
	}
	if q.Predicate != o.Predicate {
		return q.Predicate < o.Predicate
	}
	if q.Object != o.Object {
		return q.Object < o.Object
	}
	return q.Context < o.Context
}

// Pattern selects quads. An unbound Subject, Predicate or Object matches anything. An empty Contexts matches every
// graph, otherwise a quad must be in one of the listed contexts, where DefaultGraph selects the default graph.
type Pattern struct {
	Subject   Value
	Predicate Value
	Object    Value
	Contexts  []Value
}

func NewPattern(subj, pred, obj Value, contexts ...Value) Pattern {
	return Pattern{Subject: subj, Predicate: pred, Object: obj, Contexts: contexts}
}

// PatternOf returns the pattern matching exactly q.
func PatternOf(q Quad) Pattern {
	return NewPattern(q.Subject, q.Predicate, q.Object, q.Context)
}

func (p Pattern) AnyContext() bool {
	return len(p.Contexts) == 0
}

func (p Pattern) MatchesContext(ctx Value) bool {
	if p.AnyContext() {
		return true
	}
	for _, c := range p.Contexts {
		if c == ctx {
			return true
		}
	}
	return false
}

func (p Pattern) Matches(q Quad) bool {
	if p.Subject.IsBound() && p.Subject != q.Subject {
		return false
	}
	if p.Predicate.IsBound() && p.Predicate != q.Predicate {
		return false
	}
	if p.Object.IsBound() && p.Object != q.Object {
		return false
	}
	return p.MatchesContext(q.Context)
}

func (p Pattern) String() string {
	term := func(v Value, name string) string {
		if v.IsBound() {
			return string(v)
		}
		return "?" + name
	}
	s := term(p.Subject, "s") + " " + term(p.Predicate, "p") + " " + term(p.Object, "o")
	if p.AnyContext() {
		return s
	}
	ctxs := make([]string, 0, len(p.Contexts))
	for _, c := range p.Contexts {
		if c.IsBound() {
			ctxs = append(ctxs, string(c))
		} else {
			ctxs = append(ctxs, "DEFAULT")
		}
	}
	return s + " FROM " + strings.Join(ctxs, ",")
}

type Namespace struct {
	Prefix string
	Name   string
}

// ParseQuad reads a single N-Quads line: `<s> <p> <o> [<g>] .`. Comments and the trailing dot are optional.
func ParseQuad(line string) (Quad, error) {
	terms, err := parseTerms(line)
	if err != nil {
		return Quad{}, err
	}
	if len(terms) != 3 && len(terms) != 4 {
		return Quad{}, errors.Errorf("expected 3 or 4 terms, found %d in %q", len(terms), line)
	}
	q := NewQuad(terms[0], terms[1], terms[2], DefaultGraph)
	if len(terms) == 4 {
		q.Context = terms[3]
	}
	return q, errors.Trace(q.Validate())
}

// ParsePattern reads a pattern in the same syntax as ParseQuad where `?name` marks a wildcard.
func ParsePattern(line string) (Pattern, error) {
	terms, err := parseTerms(line)
	if err != nil {
		return Pattern{}, err
	}
	if len(terms) != 3 && len(terms) != 4 {
		return Pattern{}, errors.Errorf("expected 3 or 4 terms, found %d in %q", len(terms), line)
	}
	p := NewPattern(terms[0], terms[1], terms[2])
	if len(terms) == 4 && terms[3].IsBound() {
		p.Contexts = []Value{terms[3]}
	}
	return p, nil
}

// ParseContext reads a named graph written as `<iri>` or `_:id`.
func ParseContext(text string) (Value, error) {
	terms, err := parseTerms(text)
	if err != nil {
		return Any, err
	}
	if len(terms) != 1 || !terms[0].IsResource() {
		return Any, errors.Errorf("%q is not a context", text)
	}
	return terms[0], nil
}

func parseTerms(line string) ([]Value, error) {
	var terms []Value
	s := strings.TrimSpace(line)
	for len(s) > 0 {
		var term string
		switch {
		case s[0] == '#':
			s = ""
			continue
		case s[0] == '.':
			s = strings.TrimSpace(s[1:])
			if len(s) > 0 && s[0] != '#' {
				return nil, errors.Errorf("unexpected input after '.': %q", s)
			}
			continue
		case s[0] == '<':
			end := strings.IndexByte(s, '>')
			if end < 0 {
				return nil, errors.Errorf("unterminated IRI in %q", line)
			}
			term = s[:end+1]
		case s[0] == '"':
			end := closingQuote(s)
			if s[end] != '"' || end == 0 {
				return nil, errors.Errorf("unterminated literal in %q", line)
			}
			end++
			if end < len(s) && s[end] == '@' {
				for end < len(s) && s[end] != ' ' && s[end] != '\t' {
					end++
				}
			} else if strings.HasPrefix(s[end:], "^^<") {
				gt := strings.IndexByte(s[end:], '>')
				if gt < 0 {
					return nil, errors.Errorf("unterminated datatype in %q", line)
				}
				end += gt + 1
			}
			term = s[:end]
		case s[0] == '?':
			end := strings.IndexAny(s, " \t")
			if end < 0 {
				end = len(s)
			}
			s = strings.TrimSpace(s[end:])
			terms = append(terms, Any)
			continue
		default:
			end := strings.IndexAny(s, " \t")
			if end < 0 {
				end = len(s)
			}
			term = s[:end]
			if !Value(term).IsBNode() {
				return nil, errors.Errorf("unexpected term %q", term)
			}
		}
		terms = append(terms, Value(term))
		s = strings.TrimSpace(s[len(term):])
	}
	return terms, nil
}
