package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pingcap-incubator/tinyrdf/kv/config"
	"github.com/pingcap-incubator/tinyrdf/kv/repository"
	"github.com/pingcap-incubator/tinyrdf/kv/server"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
)

var serveAddr string

func newServeCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, status and metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runServeCommandFunc,
	}
	m.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides status-addr of the config")
	return m
}

func runServeCommandFunc(cmd *cobra.Command, args []string) error {
	return withRepository(func(conf *config.Config, repo *repository.Repository) error {
		addr := conf.StatusAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		if addr == "" {
			return errors.New("no listen address, set status-addr or --addr")
		}
		srv := &http.Server{Addr: addr, Handler: server.NewServer(repo).Handler()}
		errCh := make(chan error, 1)
		go func() {
			log.Infof("listening on %v", addr)
			errCh <- srv.ListenAndServe()
		}()
		select {
		case err := <-errCh:
			return errors.Trace(err)
		case <-globalContext.Done():
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return errors.Trace(err)
		}
		log.Info("Server stopped.")
		return nil
	})
}
