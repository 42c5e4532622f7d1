package tinyrdf

/*
TinyRDF is a transactional RDF quad store intended for teaching and experimentation. Writes are buffered as deltas in
branches stacked over a key/value engine, and every connection sees the store at the isolation level it asks for, from
NONE up to SERIALIZABLE.

Building TinyRDF produces one executable, tinyrdf, which loads, queries and edits a store from the command line, runs an
interactive transaction shell, and serves an HTTP API with prometheus metrics.

The `tinyrdf` module is organized into the following packages:

* `kv/rdf`: values, quads, patterns, N-Quads parsing and the in-memory models deltas are kept in.
* `kv/sail`: the source, sink and dataset contracts every layer implements, isolation levels and conflicts.
* `kv/sail/base`: branches, deltas and the read snapshots that compose a delta over its backing source.
* `kv/sail/store`: the leaf source that keeps quads and namespaces in a storage engine.
* `kv/storage`: the key/value engines, in memory or on badger.
* `kv/repository`: opens a store from a config and runs transactions on connections.
* `kv/server`: the HTTP API.
* `kv/tinyrdf`: the command line tool.
*/
