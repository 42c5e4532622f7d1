package repository

import (
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/kv/sail/base"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
)

// Connection runs one transaction at a time against a Repository. A transaction starts with the first read or
// write and ends with Commit or Rollback. A Connection is not safe for concurrent use.
type Connection struct {
	repo  *Repository
	level sail.IsolationLevel

	// Fork of the store-level branch holding the running transaction, nil between transactions.
	txn *base.Branch
	// Write session buffering writes until the next read or commit.
	sink   sail.Sink
	closed bool
}

func (c *Connection) Isolation() sail.IsolationLevel {
	return c.level
}

func (c *Connection) begin() (*base.Branch, error) {
	if c.closed {
		return nil, errors.Trace(sail.ErrClosed)
	}
	if c.txn == nil {
		c.txn = c.repo.branch.Fork()
	}
	return c.txn, nil
}

func (c *Connection) writer() (sail.Sink, error) {
	txn, err := c.begin()
	if err != nil {
		return nil, err
	}
	if c.sink == nil {
		sink, err := txn.Sink(c.level)
		if err != nil {
			return nil, errors.Trace(err)
		}
		c.sink = sink
	}
	return c.sink, nil
}

// flushWrites merges buffered writes into the transaction so reads see them.
func (c *Connection) flushWrites() error {
	if c.sink == nil {
		return nil
	}
	sink := c.sink
	c.sink = nil
	err := sink.Flush()
	if closeErr := sink.Close(); err == nil {
		err = closeErr
	}
	return errors.Trace(err)
}

// read runs fn over a dataset of the transaction opened at the connection's level.
func (c *Connection) read(fn func(ds sail.Dataset) error) error {
	txn, err := c.begin()
	if err != nil {
		return err
	}
	if err := c.flushWrites(); err != nil {
		return err
	}
	ds, err := txn.Dataset(c.level)
	if err != nil {
		return errors.Trace(err)
	}
	err = fn(ds)
	if closeErr := ds.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Add approves every quad after validating them all.
func (c *Connection) Add(quads ...rdf.Quad) error {
	for _, q := range quads {
		if err := q.Validate(); err != nil {
			return err
		}
	}
	sink, err := c.writer()
	if err != nil {
		return err
	}
	for _, q := range quads {
		if err := sink.Approve(q); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (c *Connection) Remove(quads ...rdf.Quad) error {
	sink, err := c.writer()
	if err != nil {
		return err
	}
	for _, q := range quads {
		if err := sink.Deprecate(q); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// RemoveMatch removes every quad matching p and returns how many there were.
func (c *Connection) RemoveMatch(p rdf.Pattern) (int, error) {
	matched, err := c.Statements(p)
	if err != nil {
		return 0, err
	}
	return len(matched), c.Remove(matched...)
}

// Clear removes the quads of the given contexts, or every quad when none is given.
func (c *Connection) Clear(contexts ...rdf.Value) error {
	sink, err := c.writer()
	if err != nil {
		return err
	}
	return errors.Trace(sink.Clear(contexts...))
}

func (c *Connection) SetNamespace(prefix, name string) error {
	sink, err := c.writer()
	if err != nil {
		return err
	}
	return errors.Trace(sink.SetNamespace(prefix, name))
}

func (c *Connection) RemoveNamespace(prefix string) error {
	sink, err := c.writer()
	if err != nil {
		return err
	}
	return errors.Trace(sink.RemoveNamespace(prefix))
}

func (c *Connection) ClearNamespaces() error {
	sink, err := c.writer()
	if err != nil {
		return err
	}
	return errors.Trace(sink.ClearNamespaces())
}

func (c *Connection) Statements(p rdf.Pattern) ([]rdf.Quad, error) {
	var quads []rdf.Quad
	err := c.read(func(ds sail.Dataset) error {
		it, err := ds.Statements(p)
		if err != nil {
			return err
		}
		quads = sail.Collect(it)
		return nil
	})
	return quads, err
}

// Size counts the quads in the given contexts, or in the whole store when none is given.
func (c *Connection) Size(contexts ...rdf.Value) (int, error) {
	var n int
	err := c.read(func(ds sail.Dataset) error {
		it, err := ds.Statements(rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any, contexts...))
		if err != nil {
			return err
		}
		n = sail.Count(it)
		return nil
	})
	return n, err
}

func (c *Connection) Namespaces() ([]rdf.Namespace, error) {
	var namespaces []rdf.Namespace
	err := c.read(func(ds sail.Dataset) (err error) {
		namespaces, err = ds.Namespaces()
		return
	})
	return namespaces, err
}

func (c *Connection) Namespace(prefix string) (string, error) {
	var name string
	err := c.read(func(ds sail.Dataset) (err error) {
		name, err = ds.Namespace(prefix)
		return
	})
	return name, err
}

func (c *Connection) ContextIDs() ([]rdf.Value, error) {
	var contexts []rdf.Value
	err := c.read(func(ds sail.Dataset) (err error) {
		contexts, err = ds.ContextIDs()
		return
	})
	return contexts, err
}

// Commit merges the transaction into the store-level branch. With auto flush configured the store-level branch
// is then flushed to the engine, otherwise the changes wait for Repository.Flush. A *sail.ErrConflict means a
// concurrent commit changed what a serializable transaction read: the transaction is rolled back and may be
// retried.
func (c *Connection) Commit() error {
	if c.closed {
		return errors.Trace(sail.ErrClosed)
	}
	if c.txn == nil {
		return nil
	}
	err := c.commit()
	if err != nil {
		commitCounter.WithLabelValues("error").Inc()
		if sail.IsConflict(err) {
			log.Debugf("repository: %v transaction conflicts: %v", c.level, err)
		}
		c.rollback()
		return err
	}
	commitCounter.WithLabelValues("ok").Inc()
	if c.repo.conf.AutoFlush {
		return errors.Trace(c.repo.branch.Flush())
	}
	return nil
}

func (c *Connection) commit() error {
	if err := c.flushWrites(); err != nil {
		return err
	}
	if err := c.txn.Prepare(); err != nil {
		return err
	}
	if err := c.txn.Flush(); err != nil {
		return err
	}
	txn := c.txn
	c.txn = nil
	return errors.Trace(txn.Close())
}

// Rollback discards the running transaction.
func (c *Connection) Rollback() error {
	if c.txn == nil {
		return nil
	}
	rollbackCounter.Inc()
	return c.rollback()
}

func (c *Connection) rollback() error {
	var err error
	if c.sink != nil {
		err = c.sink.Close()
		c.sink = nil
	}
	if c.txn != nil {
		if closeErr := c.txn.Close(); err == nil {
			err = closeErr
		}
		c.txn = nil
	}
	return errors.Trace(err)
}

// Close rolls back the running transaction and releases the connection.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	err := c.Rollback()
	c.closed = true
	c.repo.release(c)
	return err
}
