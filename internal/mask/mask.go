// Package mask holds validity masks: one boolean column per element, aligned
// row for row with the dataset it describes.
//
// A mask cell is tri-state. It is either unset (the column was not validated,
// or an upstream producer left it empty) or holds true/false. Unset cells
// never constrain a merge.
package mask

import (
	"errors"
	"fmt"
	"io"

	"obsmask/internal/bitmap"
	"obsmask/internal/schema"
)

// Column is one mask column. A row is meaningful only where Set has its bit.
type Column struct {
	Set   *bitmap.Bitmap
	Value *bitmap.Bitmap
}

// Unset returns a column of n unset cells.
func Unset(n int) *Column { return &Column{Set: bitmap.New(n), Value: bitmap.New(n)} }

// Of returns a fully set column taking its values from v.
func Of(v *bitmap.Bitmap) *Column { return &Column{Set: bitmap.Full(v.Len()), Value: v.Clone()} }

// Bools returns a fully set column with the given values.
func Bools(vals ...bool) *Column {
	v := bitmap.New(len(vals))
	for i, b := range vals {
		v.Put(i, b)
	}
	return Of(v)
}

// Len returns the number of rows.
func (c *Column) Len() int { return c.Set.Len() }

// Get returns the value of row i and whether it is set.
func (c *Column) Get(i int) (value, set bool) {
	if !c.Set.Has(i) {
		return false, false
	}
	return c.Value.Has(i), true
}

// Counts tallies valid, invalid and unset rows.
func (c *Column) Counts() (valid, invalid, unset int) {
	n := c.Len()
	set := c.Set.Count()
	v := c.Value.Clone()
	v.And(c.Set)
	valid = v.Count()
	return valid, set - valid, n - set
}

func (c *Column) slice(from, to int) *Column {
	return &Column{Set: c.Set.Slice(from, to), Value: c.Value.Slice(from, to)}
}

func (c *Column) clone() *Column {
	return &Column{Set: c.Set.Clone(), Value: c.Value.Clone()}
}

// Mask is an ordered set of mask columns. Offset is the dataset row index of
// the first row.
type Mask struct {
	Offset int

	rows int
	ids  []schema.ElementID
	cols map[schema.ElementID]*Column
}

// New returns a mask with one unset column per id.
func New(rows int, ids []schema.ElementID) *Mask {
	m := &Mask{rows: rows, cols: make(map[schema.ElementID]*Column, len(ids))}
	for _, id := range ids {
		if _, ok := m.cols[id]; ok {
			continue
		}
		m.ids = append(m.ids, id)
		m.cols[id] = Unset(rows)
	}
	return m
}

// Put stores c under id, appending id when it is new.
func (m *Mask) Put(id schema.ElementID, c *Column) error {
	if c.Len() != m.rows {
		return fmt.Errorf("mask: column %s has %d rows, mask has %d", id, c.Len(), m.rows)
	}
	if _, ok := m.cols[id]; !ok {
		m.ids = append(m.ids, id)
	}
	m.cols[id] = c
	return nil
}

// Column returns the column of id.
func (m *Mask) Column(id schema.ElementID) (*Column, bool) {
	c, ok := m.cols[id]
	return c, ok
}

// Get returns row i of id.
func (m *Mask) Get(id schema.ElementID, i int) (value, set bool) {
	c, ok := m.cols[id]
	if !ok {
		return false, false
	}
	return c.Get(i)
}

// IDs returns the column ids in order.
func (m *Mask) IDs() []schema.ElementID { return append([]schema.ElementID(nil), m.ids...) }

// Rows returns the row count.
func (m *Mask) Rows() int { return m.rows }

// Merge folds an upstream mask into m: wherever upstream holds a set false,
// the matching set cell of m becomes false. Cells m never validated, and
// columns upstream does not carry, are left alone. Both masks must have the
// same row count.
func (m *Mask) Merge(up *Mask) error {
	if up == nil {
		return nil
	}
	if up.rows != m.rows {
		return fmt.Errorf("mask: upstream has %d rows, mask has %d", up.rows, m.rows)
	}
	for _, id := range m.ids {
		uc, ok := up.cols[id]
		if !ok {
			continue
		}
		c := m.cols[id]
		// keep = !upstream.set || upstream.value
		keep := uc.Value.Clone()
		for i := 0; i < m.rows; i++ {
			if !uc.Set.Has(i) {
				keep.Set(i)
			}
		}
		c.Value.And(keep)
	}
	return nil
}

// Slice returns rows [from, to) as a new mask.
func (m *Mask) Slice(from, to int) *Mask {
	out := &Mask{Offset: m.Offset + from, rows: to - from, cols: make(map[schema.ElementID]*Column, len(m.ids))}
	out.ids = m.IDs()
	for _, id := range m.ids {
		out.cols[id] = m.cols[id].slice(from, to)
	}
	return out
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{Offset: m.Offset, rows: m.rows, ids: m.IDs(), cols: make(map[schema.ElementID]*Column, len(m.ids))}
	for _, id := range m.ids {
		out.cols[id] = m.cols[id].clone()
	}
	return out
}

// Concat appends the rows of o to m. Both must carry the same columns in the
// same order.
func Concat(m, o *Mask) (*Mask, error) {
	if len(m.ids) != len(o.ids) {
		return nil, fmt.Errorf("mask: concat %d columns onto %d", len(o.ids), len(m.ids))
	}
	out := &Mask{Offset: m.Offset, rows: m.rows + o.rows, ids: m.IDs(), cols: make(map[schema.ElementID]*Column, len(m.ids))}
	for i, id := range m.ids {
		if o.ids[i] != id {
			return nil, fmt.Errorf("mask: column %d is %s, want %s", i, o.ids[i], id)
		}
		a, b := m.cols[id], o.cols[id]
		out.cols[id] = &Column{Set: a.Set.Append(b.Set), Value: a.Value.Append(b.Value)}
	}
	return out, nil
}

// Reader yields a mask chunk by chunk, mirroring frame.Reader.
type Reader interface {
	Next() (*Mask, error)
	ChunkSize() int
}

type sliceReader struct {
	m    *Mask
	size int
	pos  int
	done bool
}

// Split returns a Reader over m in chunks of size rows. A size <= 0 yields m
// as a single chunk.
func Split(m *Mask, size int) Reader {
	if size <= 0 {
		size = m.Rows()
	}
	return &sliceReader{m: m, size: size}
}

func (r *sliceReader) Next() (*Mask, error) {
	if r.done {
		return nil, io.EOF
	}
	end := min(r.pos+r.size, r.m.Rows())
	c := r.m.Slice(r.pos, end)
	r.pos = end
	if r.pos >= r.m.Rows() {
		r.done = true
	}
	return c, nil
}

func (r *sliceReader) ChunkSize() int { return r.size }

// Collect drains r into a single mask.
func Collect(r Reader) (*Mask, error) {
	var out *Mask
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
		return New(0, nil), nil
	}
	return out, nil
}
