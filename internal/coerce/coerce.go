// Package coerce turns raw text columns, as produced by the record parser,
// into the semantic types a schema declares.
//
// Coercion never fails on a single bad value: unparsable numbers become
// missing, unparsable dates become the not-a-timestamp sentinel. Errors are
// reserved for setup mistakes such as a datetime format that cannot be
// compiled or a column whose storage cannot hold the target type.
//
// A per-column plan is compiled once from the schema (layouts resolved,
// scale/offset read) and then applied to every chunk.
package coerce

import (
	"errors"
	"fmt"

	"obsmask/internal/frame"
	"obsmask/internal/schema"
)

// ErrUnknownType is returned when a converter is requested for a type that
// has none.
var ErrUnknownType = errors.New("coerce: no converter for type")

// step converts one column.
type step func(*frame.Column) (*frame.Column, error)

// builder compiles the step for one element from its attributes.
type builder func(t schema.ColumnType, a schema.Attrs) (step, error)

// builders is the fixed type -> converter table.
var builders = [...]builder{
	schema.TypeObject:   textStep,
	schema.TypeInt8:     numericStep,
	schema.TypeInt16:    numericStep,
	schema.TypeInt32:    numericStep,
	schema.TypeInt64:    numericStep,
	schema.TypeUint8:    numericStep,
	schema.TypeUint16:   numericStep,
	schema.TypeUint32:   numericStep,
	schema.TypeUint64:   numericStep,
	schema.TypeFloat32:  numericStep,
	schema.TypeFloat64:  numericStep,
	schema.TypeStr:      textStep,
	schema.TypeKey:      textStep,
	schema.TypeDatetime: datetimeStep,
}

func numericStep(t schema.ColumnType, a schema.Attrs) (step, error) {
	scale, offset := a.ScaleOffset()
	return func(c *frame.Column) (*frame.Column, error) {
		return Numeric(c, t, scale, offset)
	}, nil
}

func textStep(t schema.ColumnType, a schema.Attrs) (step, error) {
	mode := a.Trim
	return func(c *frame.Column) (*frame.Column, error) {
		out := String(c, mode)
		out.Type = t
		return out, nil
	}, nil
}

func datetimeStep(_ schema.ColumnType, a schema.Attrs) (step, error) {
	layout, err := Layout(a.Format())
	if err != nil {
		return nil, err
	}
	return func(c *frame.Column) (*frame.Column, error) {
		return timestamp(c, layout)
	}, nil
}

// withMissing marks the declared missing literal before st runs.
func withMissing(st step, literal string) step {
	if literal == "" {
		return st
	}
	return func(c *frame.Column) (*frame.Column, error) {
		return st(MarkMissing(c, literal))
	}
}

func lookup(t schema.ColumnType) (builder, error) {
	if int(t) >= len(builders) || builders[t] == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownType, t)
	}
	return builders[t], nil
}

// Column converts a single column according to attrs.
func Column(c *frame.Column, a schema.Attrs) (*frame.Column, error) {
	b, err := lookup(a.ColumnType)
	if err != nil {
		return nil, err
	}
	s, err := b(a.ColumnType, a)
	if err != nil {
		return nil, err
	}
	return withMissing(s, a.MissingValue)(c)
}

// Plan is a compiled set of per-element conversions.
type Plan struct {
	steps map[schema.ElementID]step
}

// Compile builds a plan for every element of s. Unknown types and bad
// datetime formats are reported here, before any data is touched.
func Compile(s *schema.Schema) (*Plan, error) {
	p := &Plan{steps: make(map[schema.ElementID]step, s.Len())}
	for _, id := range s.Elements() {
		a, _ := s.Get(id)
		b, err := lookup(a.ColumnType)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", id, err)
		}
		st, err := b(a.ColumnType, a)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", id, err)
		}
		p.steps[id] = withMissing(st, a.MissingValue)
	}
	return p, nil
}

// Apply converts every column of raw that the plan knows; other columns are
// carried over untouched. Column order and offset are preserved.
func (p *Plan) Apply(raw *frame.Frame) (*frame.Frame, error) {
	out := frame.New(raw.Rows())
	out.Offset = raw.Offset
	for _, id := range raw.Columns() {
		c, _ := raw.Column(id)
		if st, ok := p.steps[id]; ok {
			conv, err := st(c)
			if err != nil {
				return nil, fmt.Errorf("element %s: %w", id, err)
			}
			c = conv
		}
		if err := out.Add(id, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Frame compiles a plan for s and applies it to raw.
func Frame(raw *frame.Frame, s *schema.Schema) (*frame.Frame, error) {
	p, err := Compile(s)
	if err != nil {
		return nil, err
	}
	return p.Apply(raw)
}

// Reader wraps a raw chunk reader so that every chunk comes out coerced.
type Reader struct {
	src  frame.Reader
	plan *Plan
}

// NewReader returns a Reader applying plan to each chunk of src.
func NewReader(src frame.Reader, plan *Plan) *Reader {
	return &Reader{src: src, plan: plan}
}

// Next returns the next coerced chunk.
func (r *Reader) Next() (*frame.Frame, error) {
	c, err := r.src.Next()
	if err != nil {
		return nil, err
	}
	return r.plan.Apply(c)
}

// ChunkSize reports the chunk size of the underlying reader.
func (r *Reader) ChunkSize() int { return r.src.ChunkSize() }
