package engine_util

import (
	"github.com/coocood/badger"
	"github.com/pingcap/errors"
)

// WriteBatch collects writes to be applied to a badger DB in one transaction. An entry with an empty value is a
// delete.
type WriteBatch struct {
	entries []*badger.Entry
}

const (
	// CfSPOC indexes quads by subject, predicate, object, context.
	CfSPOC string = "spoc"
	// CfCSPO indexes quads by context first, for context listing and clears.
	CfCSPO string = "cspo"
	// CfNamespace maps prefixes to namespace names.
	CfNamespace string = "ns"
)

var CFs [3]string = [3]string{CfSPOC, CfCSPO, CfNamespace}

func (wb *WriteBatch) Len() int {
	return len(wb.entries)
}

func (wb *WriteBatch) SetCF(cf string, key, val []byte) {
	wb.entries = append(wb.entries, &badger.Entry{
		Key:   KeyWithCF(cf, key),
		Value: val,
	})
}

func (wb *WriteBatch) DeleteCF(cf string, key []byte) {
	wb.entries = append(wb.entries, &badger.Entry{
		Key: KeyWithCF(cf, key),
	})
}

func (wb *WriteBatch) WriteToDB(db *badger.DB) error {
	if len(wb.entries) == 0 {
		return nil
	}
	err := db.Update(func(txn *badger.Txn) error {
		for _, entry := range wb.entries {
			var err error
			if len(entry.Value) == 0 {
				err = txn.Delete(entry.Key)
			} else {
				err = txn.SetEntry(entry)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return errors.WithStack(err)
}
