package repository

import (
	"io/ioutil"
	"os"
	"strconv"
	"testing"

	"github.com/pingcap-incubator/tinyrdf/kv/config"
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	alice = rdf.NewIRI("http://example.org/alice")
	bob   = rdf.NewIRI("http://example.org/bob")
	knows = rdf.NewIRI("http://xmlns.com/foaf/0.1/knows")
	name  = rdf.NewIRI("http://xmlns.com/foaf/0.1/name")
	g1    = rdf.NewIRI("http://example.org/g1")
)

var everything = rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any)

func openTest(t *testing.T) *Repository {
	repo, err := Open(config.NewTestConfig())
	require.Nil(t, err)
	return repo
}

func begin(t *testing.T, repo *Repository, level sail.IsolationLevel) *Connection {
	c, err := repo.Begin(level)
	require.Nil(t, err)
	return c
}

func size(t *testing.T, c *Connection) int {
	n, err := c.Size()
	require.Nil(t, err)
	return n
}

func TestCommitVisibility(t *testing.T) {
	repo := openTest(t)
	defer repo.Close()
	writer := begin(t, repo, sail.Snapshot)
	defer writer.Close()
	reader := begin(t, repo, sail.Snapshot)
	defer reader.Close()

	require.Nil(t, writer.Add(rdf.NewQuad(alice, knows, bob, rdf.DefaultGraph)))
	assert.Equal(t, 1, size(t, writer))
	assert.Equal(t, 0, size(t, reader))

	require.Nil(t, writer.Commit())
	// The reader's transaction still sees its snapshot until it ends.
	assert.Equal(t, 0, size(t, reader))
	require.Nil(t, reader.Commit())
	assert.Equal(t, 1, size(t, reader))
}

func TestRollback(t *testing.T) {
	repo := openTest(t)
	defer repo.Close()
	c := begin(t, repo, sail.Snapshot)
	defer c.Close()

	require.Nil(t, c.Add(rdf.NewQuad(alice, knows, bob, rdf.DefaultGraph)))
	require.Nil(t, c.SetNamespace("ex", "http://example.org/"))
	require.Nil(t, c.Rollback())
	assert.Equal(t, 0, size(t, c))
	name, err := c.Namespace("ex")
	require.Nil(t, err)
	assert.Equal(t, "", name)
}

func TestRemoveMatchAndClear(t *testing.T) {
	repo := openTest(t)
	defer repo.Close()
	c := begin(t, repo, sail.Snapshot)
	defer c.Close()

	require.Nil(t, c.Add(
		rdf.NewQuad(alice, knows, bob, rdf.DefaultGraph),
		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice"), g1),
		rdf.NewQuad(bob, name, rdf.NewLiteral("Bob"), g1),
	))
	require.Nil(t, c.Commit())

	n, err := c.RemoveMatch(rdf.NewPattern(rdf.Any, name, rdf.Any))
	require.Nil(t, err)
	assert.Equal(t, 2, n)
	contexts, err := c.ContextIDs()
	require.Nil(t, err)
	assert.Empty(t, contexts)
	require.Nil(t, c.Commit())
	assert.Equal(t, 1, size(t, c))

	require.Nil(t, c.Add(rdf.NewQuad(bob, knows, alice, g1)))
	inG1, err := c.Size(g1)
	require.Nil(t, err)
	assert.Equal(t, 1, inG1)
	require.Nil(t, c.Clear(g1))
	inG1, err = c.Size(g1)
	require.Nil(t, err)
	assert.Equal(t, 0, inG1)
	require.Nil(t, c.Clear())
	assert.Equal(t, 0, size(t, c))
	require.Nil(t, c.Commit())
	assert.Equal(t, 0, size(t, c))
}

func TestAddValidates(t *testing.T) {
	repo := openTest(t)
	defer repo.Close()
	c := begin(t, repo, sail.Snapshot)
	defer c.Close()
	err := c.Add(rdf.NewQuad(alice, knows, bob, rdf.DefaultGraph), rdf.NewQuad(rdf.NewLiteral("x"), knows, bob, rdf.DefaultGraph))
	assert.NotNil(t, err)
	assert.Equal(t, 0, size(t, c))
}

func TestNamespaces(t *testing.T) {
	repo := openTest(t)
	defer repo.Close()
	c := begin(t, repo, sail.Snapshot)
	defer c.Close()

	require.Nil(t, c.SetNamespace("ex", "http://example.org/"))
	require.Nil(t, c.SetNamespace("foaf", "http://xmlns.com/foaf/0.1/"))
	require.Nil(t, c.Commit())
	require.Nil(t, c.RemoveNamespace("ex"))
	namespaces, err := c.Namespaces()
	require.Nil(t, err)
	assert.Equal(t, []rdf.Namespace{{Prefix: "foaf", Name: "http://xmlns.com/foaf/0.1/"}}, namespaces)
	require.Nil(t, c.ClearNamespaces())
	namespaces, err = c.Namespaces()
	require.Nil(t, err)
	assert.Empty(t, namespaces)
	require.Nil(t, c.Commit())

	stats, err := repo.Stats()
	require.Nil(t, err)
	assert.Equal(t, 0, stats.Namespaces)
}

func TestSerializableConflict(t *testing.T) {
	repo := openTest(t)
	defer repo.Close()
	setup := begin(t, repo, sail.Snapshot)
	require.Nil(t, setup.Add(rdf.NewQuad(alice, name, rdf.NewLiteral("Alice"), rdf.DefaultGraph)))
	require.Nil(t, setup.Commit())
	require.Nil(t, setup.Close())

	first := begin(t, repo, sail.Serializable)
	defer first.Close()
	second := begin(t, repo, sail.Serializable)
	defer second.Close()
	rename := func(c *Connection, to string) {
		old, err := c.Statements(rdf.NewPattern(alice, name, rdf.Any))
		require.Nil(t, err)
		require.Len(t, old, 1)
		require.Nil(t, c.Remove(old...))
		require.Nil(t, c.Add(rdf.NewQuad(alice, name, rdf.NewLiteral(to), rdf.DefaultGraph)))
	}
	rename(first, "Alicia")
	rename(second, "Ally")

	require.Nil(t, first.Commit())
	err := second.Commit()
	require.NotNil(t, err)
	assert.True(t, sail.IsConflict(err))

	// The failed transaction was rolled back and the connection can retry.
	rename(second, "Ally")
	require.Nil(t, second.Commit())
	quads, err := second.Statements(rdf.NewPattern(alice, name, rdf.Any))
	require.Nil(t, err)
	assert.Equal(t, []rdf.Quad{rdf.NewQuad(alice, name, rdf.NewLiteral("Ally"), rdf.DefaultGraph)}, quads)
}

func TestConcurrentConnections(t *testing.T) {
	repo := openTest(t)
	defer repo.Close()
	const workers, perWorker = 4, 50

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		subject := rdf.NewIRI("http://example.org/s" + string(rune('a'+w)))
		g.Go(func() error {
			c, err := repo.Begin(sail.Snapshot)
			if err != nil {
				return err
			}
			defer c.Close()
			for i := 0; i < perWorker; i++ {
				q := rdf.NewQuad(subject, knows, rdf.NewLiteral(string(rune('A'+i))), rdf.DefaultGraph)
				if err := c.Add(q); err != nil {
					return err
				}
				if err := c.Commit(); err != nil {
					return errors.Annotatef(err, "commit %v", q)
				}
			}
			return nil
		})
	}
	require.Nil(t, g.Wait())
	stats, err := repo.Stats()
	require.Nil(t, err)
	assert.Equal(t, workers*perWorker, stats.Quads)
	assert.False(t, stats.Unflushed)
}

func TestConcurrentSerializableIncrements(t *testing.T) {
	repo := openTest(t)
	defer repo.Close()
	const workers, perWorker = 4, 10
	value := rdf.NewIRI("http://example.org/value")
	counter := func(n int) rdf.Quad {
		return rdf.NewQuad(alice, value, rdf.NewLiteral(strconv.Itoa(n)), rdf.DefaultGraph)
	}
	setup := begin(t, repo, sail.Snapshot)
	require.Nil(t, setup.Add(counter(0)))
	require.Nil(t, setup.Commit())
	require.Nil(t, setup.Close())

	increment := func(c *Connection) error {
		quads, err := c.Statements(rdf.NewPattern(alice, value, rdf.Any))
		if err != nil {
			return err
		}
		if len(quads) != 1 {
			return errors.Errorf("expected one counter, got %v", quads)
		}
		n, err := strconv.Atoi(quads[0].Object.Label())
		if err != nil {
			return errors.Trace(err)
		}
		if err := c.Remove(quads[0]); err != nil {
			return err
		}
		if err := c.Add(counter(n + 1)); err != nil {
			return err
		}
		return c.Commit()
	}

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			c, err := repo.Begin(sail.Serializable)
			if err != nil {
				return err
			}
			defer c.Close()
			for i := 0; i < perWorker; {
				err := increment(c)
				if sail.IsConflict(err) {
					continue
				}
				if err != nil {
					return err
				}
				i++
			}
			return nil
		})
	}
	require.Nil(t, g.Wait())
	c := begin(t, repo, sail.Snapshot)
	defer c.Close()
	quads, err := c.Statements(rdf.NewPattern(alice, value, rdf.Any))
	require.Nil(t, err)
	assert.Equal(t, []rdf.Quad{counter(workers * perWorker)}, quads)
}

func TestManualFlush(t *testing.T) {
	conf := config.NewTestConfig()
	conf.AutoFlush = false
	repo, err := Open(conf)
	require.Nil(t, err)
	defer repo.Close()

	c := begin(t, repo, sail.Snapshot)
	defer c.Close()
	require.Nil(t, c.Add(rdf.NewQuad(alice, knows, bob, rdf.DefaultGraph)))
	require.Nil(t, c.Commit())
	stats, err := repo.Stats()
	require.Nil(t, err)
	assert.Equal(t, 1, stats.Quads)
	assert.True(t, stats.Unflushed)

	require.Nil(t, repo.Flush())
	stats, err = repo.Stats()
	require.Nil(t, err)
	assert.False(t, stats.Unflushed)
}

func TestClose(t *testing.T) {
	repo := openTest(t)
	c := begin(t, repo, sail.Snapshot)
	require.Nil(t, c.Add(rdf.NewQuad(alice, knows, bob, rdf.DefaultGraph)))
	require.Nil(t, repo.Close())
	require.Nil(t, repo.Close())

	assert.Equal(t, sail.ErrClosed, errors.Cause(c.Commit()))
	_, err := repo.Begin(sail.Snapshot)
	assert.Equal(t, sail.ErrClosed, errors.Cause(err))
}

func TestPersistence(t *testing.T) {
	dir, err := ioutil.TempDir("", "repository")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	conf := config.NewTestConfig()
	conf.Engine = config.EngineBadger
	conf.DBPath = dir
	conf.AutoFlush = false

	repo, err := Open(conf)
	require.Nil(t, err)
	c := begin(t, repo, sail.SnapshotRead)
	require.Nil(t, c.Add(rdf.NewQuad(alice, knows, bob, g1)))
	require.Nil(t, c.SetNamespace("ex", "http://example.org/"))
	require.Nil(t, c.Commit())
	require.Nil(t, c.Close())
	// Close flushes what auto flush left behind.
	require.Nil(t, repo.Close())

	repo, err = Open(conf)
	require.Nil(t, err)
	defer repo.Close()
	c = begin(t, repo, sail.SnapshotRead)
	defer c.Close()
	quads, err := c.Statements(everything)
	require.Nil(t, err)
	assert.Equal(t, []rdf.Quad{rdf.NewQuad(alice, knows, bob, g1)}, quads)
	name, err := c.Namespace("ex")
	require.Nil(t, err)
	assert.Equal(t, "http://example.org/", name)
}
