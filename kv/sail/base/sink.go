package base

import (
	"fmt"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
)

type sinkState int

const (
	sinkOpen sinkState = iota
	sinkPrepared
	sinkFlushed
	sinkClosed
)

// branchSink buffers one write session in a delta. Flush merges the delta into the Branch.
type branchSink struct {
	branch *Branch
	delta  *delta
	level  sail.IsolationLevel
	state  sinkState

	// Observer sinks only record the reads of a dataset and are merged without a conflict check.
	observer bool
}

func (s *branchSink) Isolation() sail.IsolationLevel {
	return s.level
}

func (s *branchSink) checkWritable() {
	if s.state == sinkFlushed || s.state == sinkClosed {
		panic(fmt.Sprintf("sink of %v used after it was flushed or closed", s.branch))
	}
}

func (s *branchSink) Approve(q rdf.Quad) error {
	s.checkWritable()
	return s.delta.Approve(q)
}

func (s *branchSink) Deprecate(q rdf.Quad) error {
	s.checkWritable()
	return s.delta.Deprecate(q)
}

func (s *branchSink) Clear(contexts ...rdf.Value) error {
	s.checkWritable()
	return s.delta.Clear(contexts...)
}

func (s *branchSink) SetNamespace(prefix, name string) error {
	s.checkWritable()
	return s.delta.SetNamespace(prefix, name)
}

func (s *branchSink) RemoveNamespace(prefix string) error {
	s.checkWritable()
	return s.delta.RemoveNamespace(prefix)
}

func (s *branchSink) ClearNamespaces() error {
	s.checkWritable()
	return s.delta.ClearNamespaces()
}

func (s *branchSink) Observe(p rdf.Pattern) error {
	s.checkWritable()
	if !s.level.IsCompatibleWith(sail.Serializable) {
		panic(fmt.Sprintf("observe on a %v sink", s.level))
	}
	return s.delta.Observe(p)
}

// Prepare checks for conflicts and, on success, holds the commit gate of the Branch until Flush or Close. A
// sink preparing meanwhile waits, then checks against this sink's delta.
func (s *branchSink) Prepare() error {
	s.checkWritable()
	s.branch.mu.Lock()
	defer s.branch.mu.Unlock()
	s.branch.acquireGateLocked(s)
	if err := s.conflictLocked(); err != nil {
		s.branch.releaseGateLocked(s)
		return err
	}
	s.state = sinkPrepared
	return nil
}

// Flush merges the delta. A sink that was not prepared takes the gate and checks for conflicts first.
func (s *branchSink) Flush() error {
	s.checkWritable()
	s.branch.mu.Lock()
	defer s.branch.mu.Unlock()
	if s.state != sinkPrepared {
		s.branch.acquireGateLocked(s)
		if err := s.conflictLocked(); err != nil {
			s.branch.releaseGateLocked(s)
			return err
		}
	}
	s.branch.mergeLocked(s.delta)
	s.branch.releaseGateLocked(s)
	s.state = sinkFlushed
	return nil
}

func (s *branchSink) conflictLocked() error {
	if s.observer {
		return nil
	}
	if err := s.delta.checkConflicts(); err != nil {
		conflictCounter.Inc()
		log.Warnf("%v: %v", s.branch, err)
		return errors.Trace(err)
	}
	return nil
}

func (s *branchSink) Close() error {
	s.branch.mu.Lock()
	defer s.branch.mu.Unlock()
	if s.state == sinkClosed {
		return nil
	}
	s.branch.releaseGateLocked(s)
	if s.state != sinkFlushed {
		delete(s.branch.pending, s.delta)
	}
	s.state = sinkClosed
	return s.branch.autoFlushLocked()
}

func (s *branchSink) String() string {
	return fmt.Sprintf("%v sink of %v: %v", s.level, s.branch, s.delta)
}
