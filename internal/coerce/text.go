package coerce

import (
	"strings"
	"unicode"

	"obsmask/internal/frame"
	"obsmask/internal/schema"
)

// String converts a column to text, trimming whitespace per mode. A value
// that becomes empty after trimming stays an empty string; only values that
// were already missing are missing in the result.
func String(c *frame.Column, mode schema.TrimMode) *frame.Column {
	n := c.Len()
	out := frame.NewColumn(schema.TypeStr, n)
	for i := 0; i < n; i++ {
		if c.IsMissing(i) {
			out.Missing.Set(i)
			continue
		}
		var s string
		if c.Type.Textual() {
			s = c.Strings[i]
		} else {
			s, _ = c.Format(i, "2006-01-02 15:04:05")
		}
		out.Strings[i] = trim(s, mode)
	}
	return out
}

func trim(s string, mode schema.TrimMode) string {
	switch mode {
	case schema.TrimLeft:
		return strings.TrimLeftFunc(s, unicode.IsSpace)
	case schema.TrimRight:
		return strings.TrimRightFunc(s, unicode.IsSpace)
	case schema.TrimNone:
		return s
	default:
		return strings.TrimSpace(s)
	}
}

// MarkMissing returns c with every text value equal to literal (ignoring
// surrounding blanks) marked missing. Non-text columns are returned as-is.
func MarkMissing(c *frame.Column, literal string) *frame.Column {
	if !c.Type.Textual() {
		return c
	}
	want := strings.TrimSpace(literal)
	var out *frame.Column
	for i, s := range c.Strings {
		if c.IsMissing(i) || strings.TrimSpace(s) != want {
			continue
		}
		if out == nil {
			out = c.Clone()
		}
		out.Missing.Set(i)
	}
	if out == nil {
		return c
	}
	return out
}
