package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"

	"obsmask/internal/mask"
	"obsmask/internal/schema"
	"obsmask/internal/source"
)

// Mask cell values.
const (
	True  = "True"
	False = "False"
)

// MaskWriter writes mask chunks as one CSV document. The header is taken
// from the first chunk; later chunks must carry the same ids.
type MaskWriter struct {
	out     io.Writer
	w       *csv.Writer
	ids     []schema.ElementID
	started bool
	rows    int
}

// NewMaskWriter returns a writer on w.
func NewMaskWriter(w io.Writer) *MaskWriter {
	return &MaskWriter{out: w, w: csv.NewWriter(w)}
}

// Write appends m.
func (mw *MaskWriter) Write(m *mask.Mask) error {
	ids := m.IDs()
	if !mw.started {
		mw.ids, mw.started = ids, true
		header := make([]string, len(ids))
		for i, id := range ids {
			header[i] = id.String()
		}
		if err := mw.w.Write(header); err != nil {
			return fmt.Errorf("dataset: write mask header: %w", err)
		}
	} else if !slices.Equal(mw.ids, ids) {
		return fmt.Errorf("dataset: mask chunk at row %d has different columns", m.Offset)
	}

	cols := make([]*mask.Column, len(ids))
	for j, id := range ids {
		cols[j], _ = m.Column(id)
	}
	rec := make([]string, len(ids))
	for i := 0; i < m.Rows(); i++ {
		for j, c := range cols {
			rec[j] = cell(c, i)
		}
		if len(rec) == 1 && rec[0] == "" {
			// A bare empty line would be skipped on read.
			if err := mw.writeRaw("\"\"\n"); err != nil {
				return err
			}
			continue
		}
		if err := mw.w.Write(rec); err != nil {
			return fmt.Errorf("dataset: write mask row %d: %w", mw.rows+i, err)
		}
	}
	mw.rows += m.Rows()
	mw.w.Flush()
	return mw.w.Error()
}

func (mw *MaskWriter) writeRaw(s string) error {
	mw.w.Flush()
	if err := mw.w.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(mw.out, s)
	return err
}

// Rows returns the number of rows written.
func (mw *MaskWriter) Rows() int { return mw.rows }

func cell(c *mask.Column, i int) string {
	v, set := c.Get(i)
	switch {
	case !set:
		return ""
	case v:
		return True
	default:
		return False
	}
}

// MaskReader reads a mask CSV in chunks. It implements mask.Reader.
type MaskReader struct {
	cr      *csv.Reader
	closer  io.Closer
	ids     []schema.ElementID
	size    int
	offset  int
	line    int
	emitted bool
	eof     bool
}

// OpenMask opens a mask by location, like Open.
func OpenMask(ctx context.Context, path string, chunkSize int, httpCfg source.HTTPConfig) (*MaskReader, error) {
	f, err := source.For(path, httpCfg).Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset: open mask %s: %w", path, err)
	}
	r, err := NewMaskReader(f, chunkSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dataset: mask %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewMaskReader reads the header row of src.
func NewMaskReader(src io.Reader, chunkSize int) (*MaskReader, error) {
	cr := newCSV(src, ',')
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset: missing mask header row")
		}
		return nil, fmt.Errorf("dataset: read mask header: %w", err)
	}
	ids, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	return &MaskReader{cr: cr, ids: ids, size: chunkSize, line: 1}, nil
}

// ChunkSize implements mask.Reader.
func (r *MaskReader) ChunkSize() int { return r.size }

// Next returns the next mask chunk or io.EOF. A file without data rows
// yields one empty mask first.
func (r *MaskReader) Next() (*mask.Mask, error) {
	if r.eof && r.emitted {
		return nil, io.EOF
	}
	var rows [][]string
	for r.size <= 0 || len(rows) < r.size {
		rec, err := r.cr.Read()
		if errors.Is(err, io.EOF) {
			r.eof = true
			break
		}
		r.line++
		if err != nil {
			return nil, fmt.Errorf("dataset: mask line %d: %w", r.line, err)
		}
		if len(rec) != len(r.ids) {
			return nil, fmt.Errorf("dataset: mask line %d: expected %d fields, got %d", r.line, len(r.ids), len(rec))
		}
		rows = append(rows, slices.Clone(rec))
	}
	if len(rows) == 0 && r.emitted {
		return nil, io.EOF
	}

	m := mask.New(len(rows), r.ids)
	m.Offset = r.offset
	for j, id := range r.ids {
		c := mask.Unset(len(rows))
		for i, rec := range rows {
			switch rec[j] {
			case "":
			case True, "true", "TRUE":
				c.Set.Set(i)
				c.Value.Set(i)
			case False, "false", "FALSE":
				c.Set.Set(i)
			default:
				return nil, fmt.Errorf("dataset: mask row %d column %s: invalid value %q", r.offset+i, id, rec[j])
			}
		}
		if err := m.Put(id, c); err != nil {
			return nil, err
		}
	}
	r.offset += len(rows)
	r.emitted = true
	return m, nil
}

// Close closes the underlying file, if any.
func (r *MaskReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
