package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pingcap-incubator/tinyrdf/kv/config"
	"github.com/pingcap-incubator/tinyrdf/kv/repository"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
)

var (
	configPath    string
	logLevel      string
	engine        string
	dbPath        string
	isolationName string
)

// globalContext is canceled by the first exit signal.
var globalContext, globalCancel = context.WithCancel(context.Background())

var gitHash = "None"

func loadConfig() (*config.Config, error) {
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}
	if engine != "" {
		conf.Engine = engine
	}
	if dbPath != "" {
		conf.DBPath = dbPath
	}
	if isolationName != "" {
		conf.DefaultIsolation = isolationName
	}
	if conf.LogFile.Filename != "" {
		log.SetOutputFile(conf.LogFile)
	}
	log.SetLevelByString(conf.LogLevel)
	return conf, nil
}

// withRepository opens the configured repository for the length of fn.
func withRepository(fn func(conf *config.Config, repo *repository.Repository) error) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := repository.Open(conf)
	if err != nil {
		return err
	}
	err = fn(conf, repo)
	if closeErr := repo.Close(); err == nil {
		err = closeErr
	}
	return err
}

// withConnection runs fn in one transaction and commits it.
func withConnection(fn func(c *repository.Connection) error) error {
	return withRepository(func(_ *config.Config, repo *repository.Repository) error {
		c, err := repo.Begin(repo.DefaultIsolation())
		if err != nil {
			return err
		}
		defer c.Close()
		if err := fn(c); err != nil {
			return err
		}
		return c.Commit()
	})
}

func parseIsolation(name string) (sail.IsolationLevel, error) {
	level, err := sail.ParseIsolationLevel(name)
	return level, errors.Trace(err)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tinyrdf",
		Short:        "Transactional RDF quad store",
		SilenceUsage: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "C", "", "config file path")
	flags.StringVarP(&logLevel, "log-level", "L", "", "log level, overrides the config")
	flags.StringVar(&engine, "engine", "", "storage engine, memory or badger")
	flags.StringVar(&dbPath, "db-path", "", "data directory of the badger engine")
	flags.StringVarP(&isolationName, "isolation", "i", "", "isolation level of transactions, e.g. SNAPSHOT or SERIALIZABLE")

	rootCmd.AddCommand(
		newLoadCommand(),
		newAddCommand(),
		newRemoveCommand(),
		newMatchCommand(),
		newClearCommand(),
		newNamespaceCommand(),
		newStatsCommand(),
		newServeCommand(),
		newShellCommand(),
	)
	return rootCmd
}

func main() {
	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	closeDone := make(chan struct{}, 1)
	go func() {
		sig := <-sc
		log.Infof("Got signal [%v] to exit.", sig)
		globalCancel()

		select {
		case <-sc:
			log.Infof("Got signal [%v] again to exit.", sig)
			os.Exit(1)
		case <-time.After(10 * time.Second):
			log.Warn("Wait 10s for closed, force exit")
			os.Exit(1)
		case <-closeDone:
			return
		}
	}()

	log.Debugf("gitHash: %s", gitHash)
	cobra.EnablePrefixMatching = true
	err := newRootCommand().Execute()
	globalCancel()
	closeDone <- struct{}{}
	log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.ErrorStack(err))
		os.Exit(1)
	}
}
