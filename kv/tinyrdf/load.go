package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/pingcap-incubator/tinyrdf/kv/config"
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/repository"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	loadBatchSize int
	loadRate      int
)

func newLoadCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "load file...",
		Short: "Load N-Quads files, committing every batch in its own transaction",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLoadCommandFunc,
	}
	m.Flags().IntVarP(&loadBatchSize, "batch", "b", 1000, "quads per transaction")
	m.Flags().IntVar(&loadRate, "rate", 0, "maximum quads loaded per second, 0 for no limit")
	return m
}

func runLoadCommandFunc(cmd *cobra.Command, args []string) error {
	sizes := make([]int64, len(args))
	for i, path := range args {
		fi, err := os.Stat(path)
		if err != nil {
			return errors.WithStack(err)
		}
		if fi.IsDir() {
			return errors.Errorf("%s is a directory", path)
		}
		sizes[i] = fi.Size()
	}
	if loadBatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	return withRepository(func(_ *config.Config, repo *repository.Repository) error {
		l := &loader{repo: repo, batchSize: loadBatchSize, limiter: newLimiter(loadRate)}
		for i, path := range args {
			size := sizes[i]
			start := time.Now()
			n, err := l.loadFile(globalContext, path)
			if err != nil {
				return errors.Annotatef(err, "load %s", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d quads from %s (%s) in %v\n",
				n, path, units.HumanSize(float64(size)), time.Since(start).Round(time.Millisecond))
		}
		return nil
	})
}

// newLimiter limits loading to quadsPerSecond, or not at all when it is not positive.
func newLimiter(quadsPerSecond int) *rate.Limiter {
	if quadsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(quadsPerSecond), quadsPerSecond)
}

type loader struct {
	repo      *repository.Repository
	batchSize int
	limiter   *rate.Limiter
}

func (l *loader) loadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer f.Close()
	return l.load(ctx, f)
}

// load adds the quads read from r, committing every batchSize of them. Batches committed before an error stay
// committed.
func (l *loader) load(ctx context.Context, r io.Reader) (int, error) {
	c, err := l.repo.Begin(l.repo.DefaultIsolation())
	if err != nil {
		return 0, err
	}
	defer c.Close()

	loaded := 0
	batch := make([]rdf.Quad, 0, l.batchSize)
	commit := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.wait(ctx, len(batch)); err != nil {
			return err
		}
		if err := c.Add(batch...); err != nil {
			return err
		}
		if err := c.Commit(); err != nil {
			return err
		}
		loaded += len(batch)
		log.Debugf("load: committed %d quads, %d so far", len(batch), loaded)
		batch = batch[:0]
		return nil
	}
	err = rdf.ReadQuads(r, func(q rdf.Quad) error {
		batch = append(batch, q)
		if len(batch) < l.batchSize {
			return nil
		}
		return commit()
	})
	if err == nil {
		err = commit()
	}
	return loaded, err
}

// wait takes n tokens from the limiter, in bursts it can grant.
func (l *loader) wait(ctx context.Context, n int) error {
	if l.limiter.Limit() == rate.Inf {
		return ctx.Err()
	}
	burst := l.limiter.Burst()
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := l.limiter.WaitN(ctx, take); err != nil {
			return errors.Trace(err)
		}
		n -= take
	}
	return nil
}
