package store

import (
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/util/codec"
	"github.com/pingcap/errors"
)

// Every quad is written twice: under its subject-first key in CfSPOC and its context-first key in CfCSPO. Terms
// are memcomparable encoded, so the keys of one subject, or of one context, form a contiguous range.

// present is the value stored under quad keys, since an empty value would read as a delete.
var present = []byte{1}

func spocKey(q rdf.Quad) []byte {
	return codec.EncodeStrings(string(q.Subject), string(q.Predicate), string(q.Object), string(q.Context))
}

func cspoKey(q rdf.Quad) []byte {
	return codec.EncodeStrings(string(q.Context), string(q.Subject), string(q.Predicate), string(q.Object))
}

func decodeSPOC(key []byte) (rdf.Quad, error) {
	terms, _, err := codec.DecodeStrings(key, 4)
	if err != nil {
		return rdf.Quad{}, errors.Annotatef(err, "decode spoc key %q", key)
	}
	return rdf.NewQuad(rdf.Value(terms[0]), rdf.Value(terms[1]), rdf.Value(terms[2]), rdf.Value(terms[3])), nil
}

func decodeCSPO(key []byte) (rdf.Quad, error) {
	terms, _, err := codec.DecodeStrings(key, 4)
	if err != nil {
		return rdf.Quad{}, errors.Annotatef(err, "decode cspo key %q", key)
	}
	return rdf.NewQuad(rdf.Value(terms[1]), rdf.Value(terms[2]), rdf.Value(terms[3]), rdf.Value(terms[0])), nil
}

// spocPrefix covers the leading bound terms of p, starting with the subject.
func spocPrefix(p rdf.Pattern) []byte {
	var terms []string
	for _, v := range []rdf.Value{p.Subject, p.Predicate, p.Object} {
		if !v.IsBound() {
			break
		}
		terms = append(terms, string(v))
	}
	return codec.EncodeStrings(terms...)
}

func contextPrefix(ctx rdf.Value) []byte {
	return codec.EncodeStrings(string(ctx))
}

func namespaceKey(prefix string) []byte {
	return codec.EncodeStrings(prefix)
}

func namespaceValue(name string) []byte {
	return codec.EncodeStrings(name)
}

func decodeNamespace(key, value []byte) (rdf.Namespace, error) {
	prefix, _, err := codec.DecodeStrings(key, 1)
	if err != nil {
		return rdf.Namespace{}, errors.Annotatef(err, "decode namespace key %q", key)
	}
	name, _, err := codec.DecodeStrings(value, 1)
	if err != nil {
		return rdf.Namespace{}, errors.Annotatef(err, "decode namespace %q", prefix[0])
	}
	return rdf.Namespace{Prefix: prefix[0], Name: name[0]}, nil
}
