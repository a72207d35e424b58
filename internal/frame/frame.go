package frame

import (
	"errors"
	"fmt"
	"io"

	"obsmask/internal/schema"
)

// Frame is an ordered set of equally long columns. Offset is the row index
// of the first row within the whole dataset, so chunk rows stay addressable.
type Frame struct {
	Offset int

	rows int
	ids  []schema.ElementID
	cols map[schema.ElementID]*Column
}

// New returns an empty frame of the given row count.
func New(rows int) *Frame {
	return &Frame{rows: rows, cols: make(map[schema.ElementID]*Column)}
}

// Add appends a column. Replacing an existing id keeps its position.
func (f *Frame) Add(id schema.ElementID, c *Column) error {
	if c.Len() != f.rows {
		return fmt.Errorf("frame: column %s has %d rows, frame has %d", id, c.Len(), f.rows)
	}
	if _, ok := f.cols[id]; !ok {
		f.ids = append(f.ids, id)
	}
	f.cols[id] = c
	return nil
}

// MustAdd is Add for literals in tests and fixtures; it panics on a length
// mismatch.
func (f *Frame) MustAdd(id schema.ElementID, c *Column) *Frame {
	if err := f.Add(id, c); err != nil {
		panic(err)
	}
	return f
}

// Column returns the column for id.
func (f *Frame) Column(id schema.ElementID) (*Column, bool) {
	c, ok := f.cols[id]
	return c, ok
}

// Columns returns the column ids in insertion order.
func (f *Frame) Columns() []schema.ElementID {
	out := make([]schema.ElementID, len(f.ids))
	copy(out, f.ids)
	return out
}

// Rows returns the row count.
func (f *Frame) Rows() int { return f.rows }

// Slice returns rows [from, to) as a new frame.
func (f *Frame) Slice(from, to int) *Frame {
	out := New(to - from)
	out.Offset = f.Offset + from
	for _, id := range f.ids {
		out.ids = append(out.ids, id)
		out.cols[id] = f.cols[id].Slice(from, to)
	}
	return out
}

// Concat appends the rows of o to a copy of f. Both frames must have the
// same columns in the same order.
func Concat(f, o *Frame) (*Frame, error) {
	if len(f.ids) != len(o.ids) {
		return nil, fmt.Errorf("frame: concat %d columns with %d", len(f.ids), len(o.ids))
	}
	out := New(f.rows + o.rows)
	out.Offset = f.Offset
	for i, id := range f.ids {
		if o.ids[i] != id {
			return nil, fmt.Errorf("frame: column %d is %s, want %s", i, o.ids[i], id)
		}
		c, err := f.cols[id].Append(o.cols[id])
		if err != nil {
			return nil, fmt.Errorf("frame: column %s: %w", id, err)
		}
		out.ids = append(out.ids, id)
		out.cols[id] = c
	}
	return out, nil
}

// Reader yields a dataset as consecutive chunks. Next returns io.EOF after
// the last chunk. ChunkSize reports the configured chunk size so that output
// can be re-chunked identically.
type Reader interface {
	Next() (*Frame, error)
	ChunkSize() int
}

// sliceReader chunks an in-memory frame.
type sliceReader struct {
	f    *Frame
	size int
	pos  int
	done bool
}

// Split returns a Reader over f in chunks of size rows (the last may be
// shorter). A size <= 0 yields f as a single chunk. An empty frame yields one
// empty chunk.
func Split(f *Frame, size int) Reader {
	if size <= 0 {
		size = f.Rows()
	}
	return &sliceReader{f: f, size: size}
}

func (r *sliceReader) Next() (*Frame, error) {
	if r.done {
		return nil, io.EOF
	}
	end := r.pos + r.size
	if end > r.f.Rows() {
		end = r.f.Rows()
	}
	c := r.f.Slice(r.pos, end)
	r.pos = end
	if r.pos >= r.f.Rows() {
		r.done = true
	}
	return c, nil
}

func (r *sliceReader) ChunkSize() int { return r.size }

// Collect drains r and concatenates its chunks into one frame.
func Collect(r Reader) (*Frame, error) {
	var out *Frame
	for {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = c
			continue
		}
		if out, err = Concat(out, c); err != nil {
			return nil, err
		}
	}
	if out == nil {
		return New(0), nil
	}
	return out, nil
}
