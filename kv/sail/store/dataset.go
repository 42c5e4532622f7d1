package store

import (
	"bytes"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/kv/storage"
	"github.com/pingcap-incubator/tinyrdf/kv/util/codec"
	"github.com/pingcap-incubator/tinyrdf/kv/util/engine_util"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
)

// dataset reads one storage snapshot. Iterators must be closed before the dataset.
type dataset struct {
	reader storage.StorageReader
	closed bool
}

func (ds *dataset) Namespace(prefix string) (string, error) {
	value, err := ds.reader.GetCF(engine_util.CfNamespace, namespaceKey(prefix))
	if err != nil || value == nil {
		return "", errors.Trace(err)
	}
	ns, err := decodeNamespace(namespaceKey(prefix), value)
	if err != nil {
		return "", err
	}
	return ns.Name, nil
}

func (ds *dataset) Namespaces() ([]rdf.Namespace, error) {
	iter := ds.reader.IterCF(engine_util.CfNamespace)
	defer iter.Close()
	var namespaces []rdf.Namespace
	for iter.Seek(nil); iter.Valid(); iter.Next() {
		value, err := iter.Item().Value()
		if err != nil {
			return nil, errors.Trace(err)
		}
		ns, err := decodeNamespace(iter.Item().Key(), value)
		if err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, nil
}

// ContextIDs seeks from one context to the next instead of reading every quad.
func (ds *dataset) ContextIDs() ([]rdf.Value, error) {
	iter := ds.reader.IterCF(engine_util.CfCSPO)
	defer iter.Close()
	var contexts []rdf.Value
	for iter.Seek(nil); iter.Valid(); {
		_, ctx, err := codec.DecodeBytes(iter.Item().Key())
		if err != nil {
			return nil, errors.Annotate(err, "decode cspo key")
		}
		if len(ctx) > 0 {
			contexts = append(contexts, rdf.Value(ctx))
		}
		next := codec.PrefixNext(contextPrefix(rdf.Value(ctx)))
		if next == nil {
			break
		}
		iter.Seek(next)
	}
	return contexts, nil
}

func (ds *dataset) Statements(p rdf.Pattern) (sail.QuadIterator, error) {
	if p.Subject.IsBound() || p.AnyContext() {
		return newQuadIterator(ds.reader.IterCF(engine_util.CfSPOC), spocPrefix(p), decodeSPOC, p), nil
	}
	iters := make([]sail.QuadIterator, 0, len(p.Contexts))
	for _, ctx := range p.Contexts {
		iters = append(iters, newQuadIterator(ds.reader.IterCF(engine_util.CfCSPO), contextPrefix(ctx), decodeCSPO, p))
	}
	return sail.NewConcatIterator(iters...), nil
}

func (ds *dataset) Close() error {
	if ds.closed {
		return nil
	}
	ds.closed = true
	ds.reader.Close()
	return nil
}

// quadIterator decodes the keys under prefix and skips those not matching the pattern.
type quadIterator struct {
	iter    engine_util.DBIterator
	prefix  []byte
	decode  func([]byte) (rdf.Quad, error)
	pattern rdf.Pattern
	quad    rdf.Quad
	valid   bool
}

func newQuadIterator(iter engine_util.DBIterator, prefix []byte, decode func([]byte) (rdf.Quad, error),
	p rdf.Pattern) *quadIterator {
	it := &quadIterator{iter: iter, prefix: prefix, decode: decode, pattern: p}
	iter.Seek(prefix)
	it.advance()
	return it
}

func (it *quadIterator) advance() {
	it.valid = false
	for ; it.iter.Valid(); it.iter.Next() {
		key := it.iter.Item().Key()
		if !bytes.HasPrefix(key, it.prefix) {
			return
		}
		q, err := it.decode(key)
		if err != nil {
			log.Errorf("store: skipping corrupt key: %v", err)
			continue
		}
		if it.pattern.Matches(q) {
			it.quad = q
			it.valid = true
			return
		}
	}
}

func (it *quadIterator) Valid() bool { return it.valid }

func (it *quadIterator) Next() {
	it.iter.Next()
	it.advance()
}

func (it *quadIterator) Quad() rdf.Quad { return it.quad }

func (it *quadIterator) Close() {
	if it.iter != nil {
		it.iter.Close()
		it.iter = nil
	}
}
