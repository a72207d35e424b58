// Package frame holds the columnar, in-memory representation of a dataset:
// typed columns with a missing-value bitmap, frames of named columns, and
// readers that yield a dataset as a sequence of fixed-size chunks.
package frame

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"obsmask/internal/bitmap"
	"obsmask/internal/schema"
)

// Column is a single typed column. Exactly one value slice is populated,
// chosen by Type:
//
//	signed ints   -> Ints
//	unsigned ints -> Uints
//	floats        -> Floats
//	object/str/key-> Strings
//	datetime      -> Times
//
// Missing marks the not-available sentinel per row; a set bit means missing.
type Column struct {
	Type    schema.ColumnType
	Ints    []int64
	Uints   []uint64
	Floats  []float64
	Strings []string
	Times   []time.Time
	Missing *bitmap.Bitmap
}

// Raw builds an untyped text column with no missing values.
func Raw(vals ...string) *Column {
	return &Column{Type: schema.TypeObject, Strings: vals, Missing: bitmap.New(len(vals))}
}

// RawNA builds an untyped text column and marks the given rows missing.
func RawNA(vals []string, missing ...int) *Column {
	c := Raw(vals...)
	for _, i := range missing {
		c.Missing.Set(i)
	}
	return c
}

// NewColumn allocates an empty column of type t holding n rows.
func NewColumn(t schema.ColumnType, n int) *Column {
	c := &Column{Type: t, Missing: bitmap.New(n)}
	switch {
	case t.Signed():
		c.Ints = make([]int64, n)
	case t.Unsigned():
		c.Uints = make([]uint64, n)
	case t.Float():
		c.Floats = make([]float64, n)
	case t == schema.TypeDatetime:
		c.Times = make([]time.Time, n)
	default:
		c.Strings = make([]string, n)
	}
	return c
}

// Len returns the number of rows.
func (c *Column) Len() int {
	switch {
	case c.Type.Signed():
		return len(c.Ints)
	case c.Type.Unsigned():
		return len(c.Uints)
	case c.Type.Float():
		return len(c.Floats)
	case c.Type == schema.TypeDatetime:
		return len(c.Times)
	default:
		return len(c.Strings)
	}
}

// IsMissing reports whether row i holds the not-available sentinel. NaN
// floats count as missing too.
func (c *Column) IsMissing(i int) bool {
	if c.Missing != nil && c.Missing.Has(i) {
		return true
	}
	if c.Type.Float() && math.IsNaN(c.Floats[i]) {
		return true
	}
	return false
}

// Float returns row i as float64. ok is false for missing values and for
// non-numeric columns.
func (c *Column) Float(i int) (v float64, ok bool) {
	if c.IsMissing(i) {
		return 0, false
	}
	switch {
	case c.Type.Signed():
		return float64(c.Ints[i]), true
	case c.Type.Unsigned():
		return float64(c.Uints[i]), true
	case c.Type.Float():
		return c.Floats[i], true
	}
	return 0, false
}

// Format renders row i as text for key comparison. Integers print in base
// 10, floats in their shortest exact form, times with layout. It fails for
// missing rows.
func (c *Column) Format(i int, layout string) (string, error) {
	if c.IsMissing(i) {
		return "", fmt.Errorf("frame: row %d is missing", i)
	}
	switch {
	case c.Type.Signed():
		return strconv.FormatInt(c.Ints[i], 10), nil
	case c.Type.Unsigned():
		return strconv.FormatUint(c.Uints[i], 10), nil
	case c.Type.Float():
		return strconv.FormatFloat(c.Floats[i], 'f', -1, 64), nil
	case c.Type == schema.TypeDatetime:
		return c.Times[i].Format(layout), nil
	case c.Type.Textual():
		return c.Strings[i], nil
	}
	return "", fmt.Errorf("frame: cannot format column of type %s", c.Type)
}

// Slice returns a new column holding rows [from, to).
func (c *Column) Slice(from, to int) *Column {
	out := &Column{Type: c.Type}
	switch {
	case c.Type.Signed():
		out.Ints = append([]int64(nil), c.Ints[from:to]...)
	case c.Type.Unsigned():
		out.Uints = append([]uint64(nil), c.Uints[from:to]...)
	case c.Type.Float():
		out.Floats = append([]float64(nil), c.Floats[from:to]...)
	case c.Type == schema.TypeDatetime:
		out.Times = append([]time.Time(nil), c.Times[from:to]...)
	default:
		out.Strings = append([]string(nil), c.Strings[from:to]...)
	}
	out.Missing = c.missing().Slice(from, to)
	return out
}

// Append returns a new column with the rows of o after the rows of c. Both
// columns must hold the same type.
func (c *Column) Append(o *Column) (*Column, error) {
	if c.Type != o.Type {
		return nil, fmt.Errorf("frame: append %s to %s column", o.Type, c.Type)
	}
	out := &Column{Type: c.Type}
	switch {
	case c.Type.Signed():
		out.Ints = append(append([]int64(nil), c.Ints...), o.Ints...)
	case c.Type.Unsigned():
		out.Uints = append(append([]uint64(nil), c.Uints...), o.Uints...)
	case c.Type.Float():
		out.Floats = append(append([]float64(nil), c.Floats...), o.Floats...)
	case c.Type == schema.TypeDatetime:
		out.Times = append(append([]time.Time(nil), c.Times...), o.Times...)
	default:
		out.Strings = append(append([]string(nil), c.Strings...), o.Strings...)
	}
	out.Missing = c.missing().Append(o.missing())
	return out, nil
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column { return c.Slice(0, c.Len()) }

func (c *Column) missing() *bitmap.Bitmap {
	if c.Missing == nil {
		return bitmap.New(c.Len())
	}
	return c.Missing
}
