package engine_util

import (
	"github.com/coocood/badger"
)

// KeyWithCF prefixes key with its column family, keeping each family a contiguous key range.
func KeyWithCF(cf string, key []byte) []byte {
	return append([]byte(cf+"_"), key...)
}

// GetCFFromTxn returns badger.ErrKeyNotFound when the key does not exist.
func GetCFFromTxn(txn *badger.Txn, cf string, key []byte) (val []byte, err error) {
	item, err := txn.Get(KeyWithCF(cf, key))
	if err != nil {
		return nil, err
	}
	val, err = item.ValueCopy(val)
	return
}
