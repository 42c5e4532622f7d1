package mem_storage

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinyrdf/kv/storage"
	"github.com/pingcap-incubator/tinyrdf/kv/util/engine_util"
	"github.com/pingcap/errors"
)

const btreeDegree = 32

// MemStorage is a storage backed by memory. Data is not written to disk. Readers work on a copy-on-write clone of
// the trees, so they never see later writes.
type MemStorage struct {
	mu  sync.RWMutex
	cfs map[string]*btree.BTree
}

func NewMemStorage() *MemStorage {
	cfs := make(map[string]*btree.BTree, len(engine_util.CFs))
	for _, cf := range engine_util.CFs {
		cfs[cf] = btree.New(btreeDegree)
	}
	return &MemStorage{cfs: cfs}
}

func (s *MemStorage) Start() error {
	return nil
}

func (s *MemStorage) Stop() error {
	return nil
}

func (s *MemStorage) Write(batch []storage.Modify) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range batch {
		if _, ok := s.cfs[m.Cf()]; !ok {
			return errors.Errorf("mem-storage: bad CF %s", m.Cf())
		}
	}
	for _, m := range batch {
		tree := s.cfs[m.Cf()]
		switch data := m.Data.(type) {
		case storage.Put:
			tree.ReplaceOrInsert(memItem{key: data.Key, value: data.Value})
		case storage.Delete:
			tree.Delete(memItem{key: data.Key})
		}
	}
	return nil
}

func (s *MemStorage) Reader() (storage.StorageReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Clone marks the shared nodes copy-on-write in both trees, so it needs the write lock.
	cfs := make(map[string]*btree.BTree, len(s.cfs))
	for cf, tree := range s.cfs {
		cfs[cf] = tree.Clone()
	}
	return &memReader{cfs: cfs}, nil
}

func (s *MemStorage) Len(cf string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tree, ok := s.cfs[cf]; ok {
		return tree.Len()
	}
	return -1
}

// memReader is a StorageReader which reads from a snapshot of a MemStorage.
type memReader struct {
	cfs map[string]*btree.BTree
}

func (r *memReader) GetCF(cf string, key []byte) ([]byte, error) {
	tree, ok := r.cfs[cf]
	if !ok {
		return nil, errors.Errorf("mem-storage: bad CF %s", cf)
	}
	result := tree.Get(memItem{key: key})
	if result == nil {
		return nil, nil
	}
	return result.(memItem).value, nil
}

func (r *memReader) IterCF(cf string) engine_util.DBIterator {
	tree, ok := r.cfs[cf]
	if !ok {
		tree = btree.New(btreeDegree)
	}
	it := &memIter{data: tree}
	if min := tree.Min(); min != nil {
		it.item = min.(memItem)
		it.valid = true
	}
	return it
}

func (r *memReader) Close() {
	r.cfs = nil
}

type memIter struct {
	data  *btree.BTree
	item  memItem
	valid bool
}

func (it *memIter) Item() engine_util.DBItem {
	return it.item
}

func (it *memIter) Valid() bool {
	return it.valid
}

func (it *memIter) Next() {
	oldItem := it.item
	it.valid = false
	it.data.AscendGreaterOrEqual(oldItem, func(item btree.Item) bool {
		// Skip the current item.
		if bytes.Equal(item.(memItem).key, oldItem.key) {
			return true
		}
		it.item = item.(memItem)
		it.valid = true
		return false
	})
}

func (it *memIter) Seek(key []byte) {
	it.valid = false
	it.data.AscendGreaterOrEqual(memItem{key: key}, func(item btree.Item) bool {
		it.item = item.(memItem)
		it.valid = true
		return false
	})
}

func (it *memIter) Close() {}

type memItem struct {
	key   []byte
	value []byte
}

func (it memItem) Key() []byte {
	return it.key
}
func (it memItem) KeyCopy(dst []byte) []byte {
	return engine_util.SafeCopy(dst, it.key)
}
func (it memItem) Value() ([]byte, error) {
	return it.value, nil
}
func (it memItem) ValueCopy(dst []byte) ([]byte, error) {
	return engine_util.SafeCopy(dst, it.value), nil
}

func (it memItem) Less(than btree.Item) bool {
	other := than.(memItem)
	return bytes.Compare(it.key, other.key) < 0
}
