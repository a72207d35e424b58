package validate

import (
	"obsmask/internal/bitmap"
	"obsmask/internal/diag"
	"obsmask/internal/frame"
	"obsmask/internal/mask"
	"obsmask/internal/schema"
)

// Datetime masks each element true where the coerced value is a timestamp
// and false where coercion left the not-a-timestamp sentinel. Values are not
// re-parsed here.
func Datetime(f *frame.Frame, ids []schema.ElementID, rep diag.Reporter) Result {
	if rep == nil {
		rep = diag.Nop
	}
	out := make(Result, len(ids))
	for _, id := range ids {
		c, ok := f.Column(id)
		if !ok || c.Type != schema.TypeDatetime {
			rep.Error("datetime element not coerced, mask set to false", "element", id.String())
			out[id] = invalid(f.Rows())
			continue
		}
		n := c.Len()
		v := bitmap.Full(n)
		for i := 0; i < n; i++ {
			if c.IsMissing(i) {
				v.Clear(i)
			}
		}
		out[id] = mask.Of(v)
	}
	return out
}
