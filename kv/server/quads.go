package server

import (
	"net/http"
	"strconv"

	"github.com/pingcap-incubator/tinyrdf/kv/rdf"
	"github.com/pingcap-incubator/tinyrdf/kv/repository"
)

const nquadsContentType = "application/n-quads"

// pattern reads the `pattern` query parameter, matching everything when it is absent.
func (s *Server) pattern(w http.ResponseWriter, r *http.Request, required bool) (rdf.Pattern, bool) {
	text := r.URL.Query().Get("pattern")
	if text == "" {
		if required {
			s.rd.JSON(w, http.StatusBadRequest, "missing pattern")
			return rdf.Pattern{}, false
		}
		return rdf.NewPattern(rdf.Any, rdf.Any, rdf.Any), true
	}
	p, err := rdf.ParsePattern(text)
	if err != nil {
		s.rd.JSON(w, http.StatusBadRequest, err.Error())
		return rdf.Pattern{}, false
	}
	return p, true
}

// ListQuads answers the quads matching `pattern`, at most `limit` of them. The response is N-Quads when the
// request accepts application/n-quads, otherwise a JSON list of N-Quads lines.
func (s *Server) ListQuads(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pattern(w, r, false)
	if !ok {
		return
	}
	limit := -1
	if text := r.URL.Query().Get("limit"); text != "" {
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 {
			s.rd.JSON(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	var quads []rdf.Quad
	err := s.run(level, func(c *repository.Connection) (err error) {
		quads, err = c.Statements(p)
		return
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	if limit >= 0 && len(quads) > limit {
		quads = quads[:limit]
	}
	if r.Header.Get("Accept") == nquadsContentType {
		w.Header().Set("Content-Type", nquadsContentType)
		w.WriteHeader(http.StatusOK)
		rdf.WriteQuads(w, quads)
		return
	}
	lines := make([]string, 0, len(quads))
	for _, q := range quads {
		lines = append(lines, q.String())
	}
	s.rd.JSON(w, http.StatusOK, lines)
}

// AddQuads adds the N-Quads of the request body in one transaction.
func (s *Server) AddQuads(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var quads []rdf.Quad
	err := rdf.ReadQuads(r.Body, func(q rdf.Quad) error {
		quads = append(quads, q)
		return nil
	})
	if err != nil {
		s.rd.JSON(w, http.StatusBadRequest, err.Error())
		return
	}
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	if err := s.run(level, func(c *repository.Connection) error { return c.Add(quads...) }); err != nil {
		s.fail(w, err)
		return
	}
	s.rd.JSON(w, http.StatusOK, map[string]int{"added": len(quads)})
}

// RemoveQuads removes every quad matching the required `pattern`.
func (s *Server) RemoveQuads(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pattern(w, r, true)
	if !ok {
		return
	}
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	var removed int
	err := s.run(level, func(c *repository.Connection) (err error) {
		removed, err = c.RemoveMatch(p)
		return
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.rd.JSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) ListContexts(w http.ResponseWriter, r *http.Request) {
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	var contexts []rdf.Value
	err := s.run(level, func(c *repository.Connection) (err error) {
		contexts, err = c.ContextIDs()
		return
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	names := make([]string, 0, len(contexts))
	for _, ctx := range contexts {
		names = append(names, ctx.String())
	}
	s.rd.JSON(w, http.StatusOK, names)
}

// ClearContexts removes the quads of every `context` query parameter, or every quad when there is none.
func (s *Server) ClearContexts(w http.ResponseWriter, r *http.Request) {
	var contexts []rdf.Value
	for _, text := range r.URL.Query()["context"] {
		ctx, err := rdf.ParseContext(text)
		if err != nil {
			s.rd.JSON(w, http.StatusBadRequest, err.Error())
			return
		}
		contexts = append(contexts, ctx)
	}
	level, ok := s.isolation(w, r)
	if !ok {
		return
	}
	if err := s.run(level, func(c *repository.Connection) error { return c.Clear(contexts...) }); err != nil {
		s.fail(w, err)
		return
	}
	s.rd.JSON(w, http.StatusOK, "cleared")
}
