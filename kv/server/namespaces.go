package server

import (
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/repository"
)

// namespace is the JSON form of rdf.Namespace.
type namespace struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
}

func (s *Server) ListNamespaces(w http.ResponseWriter, r *http.Request) {
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	var namespaces []rdf.Namespace
	err := s.run(level, func(c *repository.Connection) (err error) {
		namespaces, err = c.Namespaces()
		return
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]namespace, 0, len(namespaces))
	for _, ns := range namespaces {
		out = append(out, namespace{Prefix: ns.Prefix, Name: ns.Name})
	}
	s.rd.JSON(w, http.StatusOK, out)
}

func (s *Server) GetNamespace(w http.ResponseWriter, r *http.Request) {
	prefix := mux.Vars(r)["prefix"]
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	var name string
	err := s.run(level, func(c *repository.Connection) (err error) {
		name, err = c.Namespace(prefix)
		return
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	if name == "" {
		s.rd.JSON(w, http.StatusNotFound, "no namespace for prefix "+prefix)
		return
	}
	s.rd.JSON(w, http.StatusOK, namespace{Prefix: prefix, Name: name})
}

// SetNamespace binds the prefix to the namespace name sent as the request body.
func (s *Server) SetNamespace(w http.ResponseWriter, r *http.Request) {
	prefix := mux.Vars(r)["prefix"]
	defer r.Body.Close()
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		s.rd.JSON(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(string(body))
	if name == "" {
		s.rd.JSON(w, http.StatusBadRequest, "missing namespace name")
		return
	}
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	if err := s.run(level, func(c *repository.Connection) error { return c.SetNamespace(prefix, name) }); err != nil {
		s.fail(w, err)
		return
	}
	s.rd.JSON(w, http.StatusOK, namespace{Prefix: prefix, Name: name})
}

func (s *Server) RemoveNamespace(w http.ResponseWriter, r *http.Request) {
	prefix := mux.Vars(r)["prefix"]
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	if err := s.run(level, func(c *repository.Connection) error { return c.RemoveNamespace(prefix) }); err != nil {
		s.fail(w, err)
		return
	}
	s.rd.JSON(w, http.StatusOK, "removed")
}

func (s *Server) ClearNamespaces(w http.ResponseWriter, r *http.Request) {
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	if err := s.run(level, func(c *repository.Connection) error { return c.ClearNamespaces() }); err != nil {
		s.fail(w, err)
		return
	}
	s.rd.JSON(w, http.StatusOK, "cleared")
}
