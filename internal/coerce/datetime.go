package coerce

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"obsmask/internal/frame"
	"obsmask/internal/schema"
)

// Layout turns a datetime format into a Go time layout. Formats containing
// '%' are read as strftime; anything else is taken as a Go layout already.
func Layout(format string) (string, error) {
	if !strings.Contains(format, "%") {
		if format == "" {
			return "", fmt.Errorf("coerce: empty datetime format")
		}
		return format, nil
	}
	l, err := strftime.Layout(format)
	if err != nil {
		return "", fmt.Errorf("coerce: datetime format %q: %w", format, err)
	}
	return l, nil
}

// Timestamp parses a text column against format. Any value that does not
// match, including impossible calendar dates, becomes the not-a-timestamp
// sentinel (a missing row holding the zero time). A bad format is a setup
// error.
func Timestamp(c *frame.Column, format string) (*frame.Column, error) {
	layout, err := Layout(format)
	if err != nil {
		return nil, err
	}
	return timestamp(c, layout)
}

func timestamp(c *frame.Column, layout string) (*frame.Column, error) {
	if c.Type == schema.TypeDatetime {
		return c.Clone(), nil
	}
	if !c.Type.Textual() {
		return nil, fmt.Errorf("coerce: cannot convert %s column to datetime", c.Type)
	}
	n := c.Len()
	out := frame.NewColumn(schema.TypeDatetime, n)
	for i, s := range c.Strings {
		if c.IsMissing(i) || s == "" {
			out.Missing.Set(i)
			continue
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			out.Missing.Set(i)
			continue
		}
		out.Times[i] = t
	}
	return out, nil
}

// NaT reports whether row i of a datetime column is the not-a-timestamp
// sentinel.
func NaT(c *frame.Column, i int) bool { return c.IsMissing(i) }
