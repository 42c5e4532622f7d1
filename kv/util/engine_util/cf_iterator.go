package engine_util

import (
	"github.com/coocood/badger"
)

// DBIterator walks the keys of one column family in ascending order. Keys are returned without the column family
// prefix.
type DBIterator interface {
	Item() DBItem
	Valid() bool
	Next()
	// Seek positions the iterator at the first key >= the given one.
	Seek([]byte)
	Close()
}

// DBItem is only valid until the iterator moves, copy what must outlive that.
type DBItem interface {
	Key() []byte
	KeyCopy(dst []byte) []byte
	Value() ([]byte, error)
	ValueCopy(dst []byte) ([]byte, error)
}

// SafeCopy copies src into dst, growing dst when it is too small.
func SafeCopy(dst, src []byte) []byte {
	return append(dst[:0], src...)
}

type cfItem struct {
	item      *badger.Item
	prefixLen int
}

func (i cfItem) Key() []byte { return i.item.Key()[i.prefixLen:] }
func (i cfItem) KeyCopy(dst []byte) []byte { return SafeCopy(dst, i.Key()) }
func (i cfItem) Value() ([]byte, error) { return i.item.Value() }
func (i cfItem) ValueCopy(dst []byte) ([]byte, error) { return i.item.ValueCopy(dst) }

// BadgerIterator is a DBIterator over a badger transaction.
type BadgerIterator struct {
	iter   *badger.Iterator
	prefix []byte
}

func NewCFIterator(cf string, txn *badger.Txn) *BadgerIterator {
	return &BadgerIterator{
		iter:   txn.NewIterator(badger.DefaultIteratorOptions),
		prefix: []byte(cf + "_"),
	}
}

func (it *BadgerIterator) Item() DBItem {
	return cfItem{item: it.iter.Item(), prefixLen: len(it.prefix)}
}

func (it *BadgerIterator) Valid() bool { return it.iter.ValidForPrefix(it.prefix) }

func (it *BadgerIterator) Next() { it.iter.Next() }

func (it *BadgerIterator) Seek(key []byte) {
	seek := make([]byte, 0, len(it.prefix)+len(key))
	it.iter.Seek(append(append(seek, it.prefix...), key...))
}

func (it *BadgerIterator) Close() { it.iter.Close() }
