package storage

import (
	"github.com/pingcap-incubator/tinyrdf/kv/util/engine_util"
)

// Storage is the key/value engine quads are kept in. Writes are applied atomically, and a reader sees the
// storage as it was when the reader was opened.
type Storage interface {
	Start() error
	Stop() error
	Write(batch []Modify) error
	Reader() (StorageReader, error)
}

type StorageReader interface {
	// GetCF returns nil, nil when the key does not exist.
	GetCF(cf string, key []byte) ([]byte, error)
	IterCF(cf string) engine_util.DBIterator
	Close()
}
