package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"obsmask/internal/bitmap"
	"obsmask/internal/frame"
	"obsmask/internal/schema"
)

// Numeric converts a column to the numeric target type.
//
// For raw text the rules are:
//   - an empty value is missing;
//   - every blank is read as '0', so a whitespace-only value becomes zero
//     (fixed-width "blank means zero");
//   - a value that still does not parse is missing;
//   - offset + value*scale is applied;
//   - the result is cast to target only when every value fits exactly,
//     otherwise the float64 intermediate is returned.
//
// A column that is already numeric skips parsing and scaling, so coercing
// twice to the same target is a no-op. Only a target that is not numeric, or
// a source that cannot hold numbers, is reported as an error.
func Numeric(c *frame.Column, target schema.ColumnType, scale, offset float64) (*frame.Column, error) {
	if !target.Numeric() {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrUnknownType, target)
	}
	switch {
	case c.Type == target:
		return c.Clone(), nil
	case c.Type.Textual():
		return cast(parseScaled(c, scale, offset), target), nil
	case c.Type.Numeric():
		return cast(widen(c), target), nil
	}
	return nil, fmt.Errorf("coerce: cannot convert %s column to %s", c.Type, target)
}

// parseScaled parses text into a float64 column, applying scale and offset.
func parseScaled(c *frame.Column, scale, offset float64) *frame.Column {
	n := c.Len()
	out := &frame.Column{Type: schema.TypeFloat64, Floats: make([]float64, n), Missing: bitmap.New(n)}
	for i, s := range c.Strings {
		if c.IsMissing(i) || s == "" {
			out.Floats[i] = math.NaN()
			out.Missing.Set(i)
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(s, " ", "0"), 64)
		if err != nil || math.IsNaN(v) {
			out.Floats[i] = math.NaN()
			out.Missing.Set(i)
			continue
		}
		out.Floats[i] = offset + v*scale
	}
	return out
}

// widen copies any numeric column into a float64 column.
func widen(c *frame.Column) *frame.Column {
	if c.Type == schema.TypeFloat64 {
		return c.Clone()
	}
	n := c.Len()
	out := &frame.Column{Type: schema.TypeFloat64, Floats: make([]float64, n), Missing: bitmap.New(n)}
	for i := 0; i < n; i++ {
		v, ok := c.Float(i)
		if !ok {
			out.Floats[i] = math.NaN()
			out.Missing.Set(i)
			continue
		}
		out.Floats[i] = v
	}
	return out
}

// cast narrows a float64 column to target when no value would change.
func cast(f *frame.Column, target schema.ColumnType) *frame.Column {
	if target == schema.TypeFloat64 || !safeCast(f, target) {
		return f
	}
	n := f.Len()
	out := frame.NewColumn(target, n)
	out.Missing = f.Missing.Clone()
	for i := 0; i < n; i++ {
		if f.IsMissing(i) {
			if target.Float() {
				out.Floats[i] = math.NaN()
			}
			out.Missing.Set(i)
			continue
		}
		v := f.Floats[i]
		switch {
		case target.Signed():
			out.Ints[i] = int64(v)
		case target.Unsigned():
			out.Uints[i] = uint64(v)
		default:
			out.Floats[i] = float64(float32(v))
		}
	}
	return out
}

// safeCast reports whether every non-missing value of f is exactly
// representable in target.
func safeCast(f *frame.Column, target schema.ColumnType) bool {
	lo, hi := limits(target)
	for i, v := range f.Floats {
		if f.IsMissing(i) {
			continue
		}
		if target.Float() {
			if !math.IsInf(v, 0) && float64(float32(v)) != v {
				return false
			}
			continue
		}
		if math.IsInf(v, 0) || v != math.Trunc(v) || v < lo || v > hi {
			return false
		}
	}
	return true
}

// limits returns the closed value range of an integer type as float64. The
// 64-bit upper limits are not exactly representable; values at 2^63 (2^64)
// round up and are rejected by the strict comparison below them.
func limits(t schema.ColumnType) (lo, hi float64) {
	bits := t.BitSize()
	switch {
	case t.Signed():
		if bits == 64 {
			return -(1 << 63), math.Nextafter(1<<63, 0)
		}
		return -float64(int64(1) << (bits - 1)), float64(int64(1)<<(bits-1) - 1)
	case t.Unsigned():
		if bits == 64 {
			return 0, math.Nextafter(1<<64, 0)
		}
		return 0, float64(uint64(1)<<bits - 1)
	}
	return math.Inf(-1), math.Inf(1)
}
