package rdf

import (
	"strconv"
	"strings"
)

// Value is an RDF term in N-Triples syntax: `<iri>`, `_:id` or a quoted literal with an optional language tag or
// datatype. The empty Value is the wildcard in patterns and the default graph in a context position.
type Value string

const (
	Any          Value = ""
	DefaultGraph Value = ""
)

func NewIRI(iri string) Value {
	return Value("<" + iri + ">")
}

func NewBNode(id string) Value {
	return Value("_:" + id)
}

func NewLiteral(label string) Value {
	return Value(strconv.Quote(label))
}

func NewLangLiteral(label, lang string) Value {
	return Value(strconv.Quote(label) + "@" + strings.ToLower(lang))
}

func NewTypedLiteral(label, datatype string) Value {
	return Value(strconv.Quote(label) + "^^<" + datatype + ">")
}

func (v Value) IsBound() bool {
	return v != ""
}

func (v Value) IsIRI() bool {
	return len(v) >= 2 && v[0] == '<' && v[len(v)-1] == '>'
}

func (v Value) IsBNode() bool {
	return strings.HasPrefix(string(v), "_:") && len(v) > 2
}

func (v Value) IsLiteral() bool {
	return len(v) >= 2 && v[0] == '"'
}

func (v Value) IsResource() bool {
	return v.IsIRI() || v.IsBNode()
}

// IRI returns the IRI without its angle brackets, or "" if v is not an IRI.
func (v Value) IRI() string {
	if !v.IsIRI() {
		return ""
	}
	return string(v[1 : len(v)-1])
}

// Label returns the lexical form of a literal, or "" if v is not a literal.
func (v Value) Label() string {
	if !v.IsLiteral() {
		return ""
	}
	quoted := v[:closingQuote(string(v))+1]
	label, err := strconv.Unquote(string(quoted))
	if err != nil {
		return string(quoted[1 : len(quoted)-1])
	}
	return label
}

func (v Value) String() string {
	return string(v)
}

// closingQuote returns the index of the quote ending the literal that starts at s[0].
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return len(s) - 1
}
