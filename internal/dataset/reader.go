// Package dataset reads raw observation CSV files into frames and reads and
// writes mask CSV files.
//
// Dataset headers are element ids, "section:field" or a bare field. Cells
// are kept verbatim; an empty cell is marked missing. Masks are written with
// one column per element id holding True, False or nothing for unset.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"obsmask/internal/frame"
	"obsmask/internal/schema"
	"obsmask/internal/source"
)

const utf8BOM = "\uFEFF"

// Options configures a dataset Reader.
type Options struct {
	// Encoding is an IANA charset name; empty means UTF-8.
	Encoding string
	// Delimiter defaults to ','.
	Delimiter rune
	// ChunkSize is the number of rows per frame; <= 0 reads one frame.
	ChunkSize int
	// HTTP configures downloads of http(s) locations.
	HTTP source.HTTPConfig
}

// Reader yields raw frames of a CSV dataset. It implements frame.Reader.
type Reader struct {
	cr      *csv.Reader
	closer  io.Closer
	ids     []schema.ElementID
	size    int
	offset  int
	line    int
	emitted bool
	eof     bool
}

// Open opens a dataset by location: a local path or an http(s) URL.
func Open(ctx context.Context, path string, opt Options) (*Reader, error) {
	f, err := source.For(path, opt.HTTP).Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	r, err := NewReader(f, opt)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header row of src and returns a Reader positioned on
// the first data row.
func NewReader(src io.Reader, opt Options) (*Reader, error) {
	dec, err := decoder(src, opt.Encoding)
	if err != nil {
		return nil, err
	}
	cr := newCSV(dec, opt.Delimiter)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset: missing header row")
		}
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	ids, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	return &Reader{cr: cr, ids: ids, size: opt.ChunkSize, line: 1}, nil
}

// decoder wraps src so it yields UTF-8. A byte order mark overrides the
// configured encoding and is dropped.
func decoder(src io.Reader, name string) (io.Reader, error) {
	fallback := unicode.UTF8.NewDecoder()
	if name != "" {
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("dataset: unsupported encoding %q", name)
		}
		fallback = enc.NewDecoder()
	}
	return transform.NewReader(src, unicode.BOMOverride(fallback)), nil
}

func newCSV(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	if delim != 0 {
		cr.Comma = delim
	}
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

func parseHeader(h []string) ([]schema.ElementID, error) {
	ids := make([]schema.ElementID, len(h))
	seen := make(map[schema.ElementID]struct{}, len(h))
	for i, cell := range h {
		c := strings.TrimSpace(cell)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if c == "" {
			return nil, fmt.Errorf("dataset: header column %d is empty", i+1)
		}
		id := schema.ParseElementID(c)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("dataset: duplicate header column %s", id)
		}
		seen[id] = struct{}{}
		ids[i] = id
	}
	return ids, nil
}

// Columns returns the header ids in file order.
func (r *Reader) Columns() []schema.ElementID {
	return append([]schema.ElementID(nil), r.ids...)
}

// ChunkSize implements frame.Reader.
func (r *Reader) ChunkSize() int { return r.size }

// Next returns the next frame or io.EOF. A file without data rows yields one
// empty frame first. A row of the wrong width is an error.
func (r *Reader) Next() (*frame.Frame, error) {
	if r.eof && r.emitted {
		return nil, io.EOF
	}
	cols := make([][]string, len(r.ids))
	missing := make([][]int, len(r.ids))
	n := 0
	for r.size <= 0 || n < r.size {
		rec, err := r.cr.Read()
		if errors.Is(err, io.EOF) {
			r.eof = true
			break
		}
		r.line++
		if err != nil {
			return nil, fmt.Errorf("dataset: line %d: %w", r.line, err)
		}
		if len(rec) != len(r.ids) {
			return nil, fmt.Errorf("dataset: line %d: expected %d fields, got %d", r.line, len(r.ids), len(rec))
		}
		for j, v := range rec {
			if v == "" {
				missing[j] = append(missing[j], n)
			}
			cols[j] = append(cols[j], strings.Clone(v))
		}
		n++
	}
	if n == 0 && r.emitted {
		return nil, io.EOF
	}

	f := frame.New(n)
	f.Offset = r.offset
	for j, id := range r.ids {
		vals := cols[j]
		if vals == nil {
			vals = []string{}
		}
		if err := f.Add(id, frame.RawNA(vals, missing[j]...)); err != nil {
			return nil, err
		}
	}
	r.offset += n
	r.emitted = true
	return f, nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
