// Package repository opens a quad store from a config and hands out connections to it.
//
// A Repository stacks a store-level base.Branch over the storage engine. Every Connection runs its transactions
// in a fork of that branch, so uncommitted changes of one connection are invisible to the others and a commit
// merges them into the store-level branch, from where they are flushed to the engine.
package repository

import (
	"sync"

	"github.com/pingcap-incubator/tinyrdf/kv/config"
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/kv/sail/base"
	"github.com/pingcap-incubator/tinyrdf/kv/sail/store"
	"github.com/pingcap-incubator/tinyrdf/kv/storage"
	"github.com/pingcap-incubator/tinyrdf/kv/storage/mem_storage"
	"github.com/pingcap-incubator/tinyrdf/kv/storage/standalone_storage"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
	"github.com/shirou/gopsutil/disk"
)

type Repository struct {
	conf    *config.Config
	factory rdf.ModelFactory
	engine  storage.Storage
	store   *store.Store
	branch  *base.Branch

	mu          sync.Mutex
	connections map[*Connection]struct{}
	closed      bool
}

// Open starts the storage engine named by conf and layers the store-level branch over it.
func Open(conf *config.Config) (*Repository, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	factory, err := rdf.NewModelFactory(conf.ModelFactory)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var engine storage.Storage
	switch conf.Engine {
	case config.EngineBadger:
		engine = standalone_storage.NewStandAloneStorage(conf)
	default:
		engine = mem_storage.NewMemStorage()
	}
	if err := engine.Start(); err != nil {
		return nil, errors.Annotatef(err, "start %s engine", conf.Engine)
	}
	s := store.NewStore(engine)
	log.Infof("repository: opened %s engine, model %s, auto flush %v", conf.Engine, factory.Name(), conf.AutoFlush)
	return &Repository{
		conf:        conf,
		factory:     factory,
		engine:      engine,
		store:       s,
		branch:      base.NewBranch(s, base.WithModelFactory(factory), base.WithAutoFlush(conf.AutoFlush)),
		connections: make(map[*Connection]struct{}),
	}, nil
}

// DefaultIsolation is the level configured for connections that do not ask for one.
func (r *Repository) DefaultIsolation() sail.IsolationLevel {
	return r.conf.Isolation()
}

// Begin opens a connection whose transactions run at level.
func (r *Repository) Begin(level sail.IsolationLevel) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.Trace(sail.ErrClosed)
	}
	c := &Connection{repo: r, level: level}
	r.connections[c] = struct{}{}
	openConnectionGauge.Inc()
	return c, nil
}

func (r *Repository) release(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connections[c]; ok {
		delete(r.connections, c)
		openConnectionGauge.Dec()
	}
}

// Flush writes everything committed so far into the storage engine.
func (r *Repository) Flush() error {
	return errors.Trace(r.branch.Flush())
}

// Stats summarizes the committed state of the repository.
type Stats struct {
	Engine     string `json:"engine"`
	Quads      int    `json:"quads"`
	Contexts   int    `json:"contexts"`
	Namespaces int    `json:"namespaces"`
	// Unflushed reports whether committed changes are still waiting to reach the engine.
	Unflushed bool `json:"unflushed"`
	// Disk is only reported for engines that keep their data on disk.
	Disk *DiskStats `json:"disk,omitempty"`
}

// DiskStats are in bytes.
type DiskStats struct {
	Capacity  uint64 `json:"capacity"`
	Used      uint64 `json:"used"`
	Available uint64 `json:"available"`
}

func (r *Repository) diskStats() (*DiskStats, error) {
	sa, ok := r.engine.(*standalone_storage.StandAloneStorage)
	if !ok {
		return nil, nil
	}
	usage, err := disk.Usage(r.conf.DBPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	lsmSize, vlogSize := sa.DB().Size()
	stats := &DiskStats{Capacity: usage.Total, Used: uint64(lsmSize) + uint64(vlogSize)}
	if stats.Capacity > stats.Used {
		stats.Available = stats.Capacity - stats.Used
	}
	return stats, nil
}

func (r *Repository) Stats() (Stats, error) {
	stats := Stats{Engine: r.conf.Engine, Unflushed: r.branch.IsChanged()}
	usage, err := r.diskStats()
	if err != nil {
		return stats, err
	}
	stats.Disk = usage
	ds, err := r.branch.Dataset(sail.Snapshot)
	if err != nil {
		return stats, errors.Trace(err)
	}
	defer ds.Close()
	it, err := ds.Statements(rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any))
	if err != nil {
		return stats, err
	}
	stats.Quads = sail.Count(it)
	contexts, err := ds.ContextIDs()
	if err != nil {
		return stats, err
	}
	stats.Contexts = len(contexts)
	namespaces, err := ds.Namespaces()
	if err != nil {
		return stats, err
	}
	stats.Namespaces = len(namespaces)
	return stats, nil
}

// Close rolls back open connections, flushes committed changes and stops the engine.
func (r *Repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	connections := make([]*Connection, 0, len(r.connections))
	for c := range r.connections {
		connections = append(connections, c)
	}
	r.mu.Unlock()

	for _, c := range connections {
		log.Warnf("repository: closing connection left open at %v", c.level)
		if err := c.Close(); err != nil {
			log.Warnf("repository: close connection: %v", err)
		}
	}
	var firstErr error
	if err := r.branch.Flush(); err != nil {
		firstErr = errors.Annotate(err, "flush on close")
	}
	if err := r.branch.Close(); err != nil && firstErr == nil {
		firstErr = errors.Trace(err)
	}
	if err := r.store.Close(); err != nil && firstErr == nil {
		firstErr = errors.Trace(err)
	}
	log.Infof("repository: closed %s engine", r.conf.Engine)
	return firstErr
}
