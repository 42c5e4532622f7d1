// Package server exposes a Repository over HTTP.
//
// Every request runs in its own connection and transaction, at the isolation level named by the `isolation`
// query parameter or at the repository default.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinyrdf/kv/repository"
	"github.com/pingcap-incubator/tinyrdf/kv/sail"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
)

// Server is the HTTP front of a Repository. It does not own the repository.
type Server struct {
	repo *repository.Repository
	rd   *render.Render
}

func NewServer(repo *repository.Repository) *Server {
	return &Server{
		repo: repo,
		rd:   render.New(render.Options{IndentJSON: true}),
	}
}

// Handler routes the API, the status page and the prometheus metrics.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/status", s.Status).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/api/v1/quads", s.ListQuads).Methods("GET")
	router.HandleFunc("/api/v1/quads", s.AddQuads).Methods("POST")
	router.HandleFunc("/api/v1/quads", s.RemoveQuads).Methods("DELETE")
	router.HandleFunc("/api/v1/contexts", s.ListContexts).Methods("GET")
	router.HandleFunc("/api/v1/contexts/clear", s.ClearContexts).Methods("POST")

	router.HandleFunc("/api/v1/namespaces", s.ListNamespaces).Methods("GET")
	router.HandleFunc("/api/v1/namespaces", s.ClearNamespaces).Methods("DELETE")
	router.HandleFunc("/api/v1/namespaces/{prefix}", s.GetNamespace).Methods("GET")
	router.HandleFunc("/api/v1/namespaces/{prefix}", s.SetNamespace).Methods("PUT")
	router.HandleFunc("/api/v1/namespaces/{prefix}", s.RemoveNamespace).Methods("DELETE")

	router.HandleFunc("/api/v1/flush", s.Flush).Methods("POST")
	return router
}

func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Stats()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.rd.JSON(w, http.StatusOK, stats)
}

func (s *Server) Flush(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Flush(); err != nil {
		s.fail(w, err)
		return
	}
	s.rd.JSON(w, http.StatusOK, "flushed")
}

// isolation reads the level a request asks for, answering 400 when it names no known level.
func (s *Server) isolation(w http.ResponseWriter, r *http.Request) (sail.IsolationLevel, bool) {
	name := r.URL.Query().Get("isolation")
	if name == "" {
		return s.repo.DefaultIsolation(), true
	}
	level, err := sail.ParseIsolationLevel(name)
	if err != nil {
		s.rd.JSON(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return level, true
}

// run executes fn in a transaction of its own and commits it.
func (s *Server) run(level sail.IsolationLevel, fn func(c *repository.Connection) error) error {
	c, err := s.repo.Begin(level)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := fn(c); err != nil {
		return err
	}
	return c.Commit()
}

// fail answers with the status that matches err.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case sail.IsConflict(err):
		status = http.StatusConflict
	case errors.Cause(err) == sail.ErrClosed:
		status = http.StatusServiceUnavailable
	default:
		log.Errorf("server: %v", errors.ErrorStack(err))
	}
	s.rd.JSON(w, status, err.Error())
}
