package rdf

import (
	"bufio"
	"io"
	"strings"

	"github.com/pingcap/errors"
)

// maxLineSize bounds a single N-Quads line, long literals included.
const maxLineSize = 1 << 20

// ReadQuads parses r as N-Quads and calls fn for every quad in order. Blank and comment lines are skipped.
// Parsing stops at the first bad line or the first error from fn.
func ReadQuads(r io.Reader, fn func(Quad) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		q, err := ParseQuad(text)
		if err != nil {
			return errors.Annotatef(err, "line %d", line)
		}
		if err := fn(q); err != nil {
			return err
		}
	}
	return errors.Trace(scanner.Err())
}

// WriteQuads writes quads to w as N-Quads, one per line.
func WriteQuads(w io.Writer, quads []Quad) error {
	bw := bufio.NewWriter(w)
	for _, q := range quads {
		if _, err := bw.WriteString(q.String()); err != nil {
			return errors.Trace(err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(bw.Flush())
}
