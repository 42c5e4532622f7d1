package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/pingcap-incubator/tinyrdf/kv/config"
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/repository"
	"github.com/spf13/cobra"
)

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add [quad...]",
		Short: "Add quads given as arguments, or read as N-Quads from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			quads, err := quadsFromArgs(args, os.Stdin)
			if err != nil {
				return err
			}
			err = withConnection(func(c *repository.Connection) error { return c.Add(quads...) })
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "added %d quads\n", len(quads))
			}
			return err
		},
	}
}

// quadsFromArgs parses every argument as one quad, or stdin when there are no arguments.
func quadsFromArgs(args []string, stdin io.Reader) ([]rdf.Quad, error) {
	var quads []rdf.Quad
	if len(args) == 0 {
		err := rdf.ReadQuads(stdin, func(q rdf.Quad) error {
			quads = append(quads, q)
			return nil
		})
		return quads, err
	}
	for _, arg := range args {
		q, err := rdf.ParseQuad(arg)
		if err != nil {
			return nil, err
		}
		quads = append(quads, q)
	}
	return quads, nil
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove pattern",
		Short: "Remove the quads matching a pattern such as '<s> ?p ?o'",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rdf.ParsePattern(strings.Join(args, " "))
			if err != nil {
				return err
			}
			var n int
			err = withConnection(func(c *repository.Connection) (err error) {
				n, err = c.RemoveMatch(p)
				return
			})
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d quads\n", n)
			}
			return err
		},
	}
}

func newMatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "match [pattern]",
		Short: "Print the quads matching a pattern as N-Quads, every quad without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any)
			if len(args) > 0 {
				var err error
				if p, err = rdf.ParsePattern(strings.Join(args, " ")); err != nil {
					return err
				}
			}
			return withConnection(func(c *repository.Connection) error {
				quads, err := c.Statements(p)
				if err != nil {
					return err
				}
				return rdf.WriteQuads(cmd.OutOrStdout(), quads)
			})
		},
	}
}

func newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [context...]",
		Short: "Remove the quads of the given contexts, or of the whole store",
		RunE: func(cmd *cobra.Command, args []string) error {
			contexts, err := parseContexts(args)
			if err != nil {
				return err
			}
			return withConnection(func(c *repository.Connection) error { return c.Clear(contexts...) })
		},
	}
}

func parseContexts(args []string) ([]rdf.Value, error) {
	contexts := make([]rdf.Value, 0, len(args))
	for _, arg := range args {
		ctx, err := rdf.ParseContext(arg)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, ctx)
	}
	return contexts, nil
}

func newNamespaceCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "ns",
		Short: "Manage namespace prefixes",
	}
	m.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConnection(func(c *repository.Connection) error {
				namespaces, err := c.Namespaces()
				if err != nil {
					return err
				}
				printNamespaces(cmd.OutOrStdout(), namespaces)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "set prefix name",
		Short: "Bind a prefix to a namespace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConnection(func(c *repository.Connection) error { return c.SetNamespace(args[0], args[1]) })
		},
	}, &cobra.Command{
		Use:   "rm prefix",
		Short: "Remove a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConnection(func(c *repository.Connection) error { return c.RemoveNamespace(args[0]) })
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Remove every prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConnection(func(c *repository.Connection) error { return c.ClearNamespaces() })
		},
	})
	return m
}

func printNamespaces(w io.Writer, namespaces []rdf.Namespace) {
	for _, ns := range namespaces {
		fmt.Fprintf(w, "%s: <%s>\n", ns.Prefix, ns.Name)
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print repository statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(func(_ *config.Config, repo *repository.Repository) error {
				stats, err := repo.Stats()
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
}

func printStats(w io.Writer, stats repository.Stats) {
	fmt.Fprintf(w, "engine:     %s\n", stats.Engine)
	fmt.Fprintf(w, "quads:      %d\n", stats.Quads)
	fmt.Fprintf(w, "contexts:   %d\n", stats.Contexts)
	fmt.Fprintf(w, "namespaces: %d\n", stats.Namespaces)
	fmt.Fprintf(w, "unflushed:  %v\n", stats.Unflushed)
	if stats.Disk != nil {
		fmt.Fprintf(w, "disk:       %s used, %s available of %s\n",
			units.HumanSize(float64(stats.Disk.Used)),
			units.HumanSize(float64(stats.Disk.Available)),
			units.HumanSize(float64(stats.Disk.Capacity)))
	}
}
