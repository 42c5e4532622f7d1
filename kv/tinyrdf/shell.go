package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pingcap-incubator/tinyrdf/kv/config"
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/repository"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
)

var historyFile string

func newShellCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "shell",
		Short: "Interactive transactions, type help for the commands",
		Args:  cobra.NoArgs,
		RunE:  runShellCommandFunc,
	}
	m.Flags().StringVar(&historyFile, "history", "/tmp/tinyrdf.history", "readline history file")
	return m
}

func runShellCommandFunc(cmd *cobra.Command, args []string) error {
	return withRepository(func(_ *config.Config, repo *repository.Repository) error {
		sh, err := newShell(repo, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer sh.close()
		return shellLoop(sh)
	})
}

func shellLoop(sh *shell) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[31m»\033[0m ",
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "^D",
		HistorySearchFold: true,
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer l.Close()

	for {
		line, err := l.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			continue
		}
		if strings.TrimSpace(line) == "exit" {
			return nil
		}
		if err := sh.exec(line); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

// shell keeps one connection open so consecutive lines share a transaction until commit or rollback.
type shell struct {
	repo *repository.Repository
	conn *repository.Connection
	out  io.Writer
}

func newShell(repo *repository.Repository, out io.Writer) (*shell, error) {
	conn, err := repo.Begin(repo.DefaultIsolation())
	if err != nil {
		return nil, err
	}
	return &shell{repo: repo, conn: conn, out: out}, nil
}

func (sh *shell) close() error {
	return sh.conn.Close()
}

const shellHelp = `begin [level]          roll back and start over at another isolation level
add <quad>             add an N-Quads statement
remove <pattern>       remove the quads matching a pattern, e.g. <s> ?p ?o
match [pattern]        print the matching quads
size [context...]      count quads
contexts               list named graphs
clear [context...]     remove the quads of contexts, or every quad
ns [prefix [name]]     list namespaces, show one, or bind a prefix
rmns <prefix>          remove a prefix
commit | rollback      end the transaction
flush                  write committed changes to the engine
stats                  print repository statistics
exit`

// exec runs one shell line. The first word names the command, the rest of the line is its argument.
func (sh *shell) exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return nil
	}
	name, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		name, rest = line[:i], strings.TrimSpace(line[i+1:])
	}
	c := sh.conn
	switch name {
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
	case "begin":
		level := sh.repo.DefaultIsolation()
		if rest != "" {
			var err error
			if level, err = parseIsolation(rest); err != nil {
				return err
			}
		}
		conn, err := sh.repo.Begin(level)
		if err != nil {
			return err
		}
		old := sh.conn
		sh.conn = conn
		fmt.Fprintf(sh.out, "isolation %v\n", level)
		return old.Close()
	case "add":
		q, err := rdf.ParseQuad(rest)
		if err != nil {
			return err
		}
		return c.Add(q)
	case "remove":
		p, err := rdf.ParsePattern(rest)
		if err != nil {
			return err
		}
		n, err := c.RemoveMatch(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "removed %d\n", n)
	case "match":
		p := rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any)
		if rest != "" {
			var err error
			if p, err = rdf.ParsePattern(rest); err != nil {
				return err
			}
		}
		quads, err := c.Statements(p)
		if err != nil {
			return err
		}
		return rdf.WriteQuads(sh.out, quads)
	case "size":
		contexts, err := parseContexts(strings.Fields(rest))
		if err != nil {
			return err
		}
		n, err := c.Size(contexts...)
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, n)
	case "contexts":
		contexts, err := c.ContextIDs()
		if err != nil {
			return err
		}
		for _, ctx := range contexts {
			fmt.Fprintln(sh.out, ctx)
		}
	case "clear":
		contexts, err := parseContexts(strings.Fields(rest))
		if err != nil {
			return err
		}
		return c.Clear(contexts...)
	case "ns":
		return sh.namespace(strings.Fields(rest))
	case "rmns":
		if rest == "" {
			return errors.New("rmns needs a prefix")
		}
		return c.RemoveNamespace(rest)
	case "commit":
		return c.Commit()
	case "rollback":
		return c.Rollback()
	case "flush":
		return sh.repo.Flush()
	case "stats":
		stats, err := sh.repo.Stats()
		if err != nil {
			return err
		}
		printStats(sh.out, stats)
	default:
		return errors.Errorf("unknown command %q, try help", name)
	}
	return nil
}

func (sh *shell) namespace(args []string) error {
	c := sh.conn
	switch len(args) {
	case 0:
		namespaces, err := c.Namespaces()
		if err != nil {
			return err
		}
		printNamespaces(sh.out, namespaces)
	case 1:
		name, err := c.Namespace(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, name)
	case 2:
		return c.SetNamespace(args[0], args[1])
	default:
		return errors.New("usage: ns [prefix [name]]")
	}
	return nil
}
