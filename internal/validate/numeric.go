package validate

import (
	"fmt"
	"sync"

	"obsmask/internal/bitmap"
	"obsmask/internal/diag"
	"obsmask/internal/frame"
	"obsmask/internal/mask"
	"obsmask/internal/schema"
)

// Range checks numeric elements against their valid_min/valid_max. One Range
// serves a whole validation run so the missing-bound warning is emitted once
// per run, not once per chunk.
type Range struct {
	Report diag.Reporter

	once sync.Once
}

// Validate masks each element true where the value is missing or within
// [valid_min, valid_max]. A missing bound is read as -Inf/+Inf.
func (r *Range) Validate(f *frame.Frame, s *schema.Schema, ids []schema.ElementID) Result {
	out := make(Result, len(ids))
	var unbounded []schema.ElementID
	for _, id := range ids {
		a, _ := s.Get(id)
		lo, hi, ok := a.Bounds()
		if !ok {
			unbounded = append(unbounded, id)
		}
		c, err := inRange(f, id, lo, hi)
		if err != nil {
			r.report().Error("numeric element not validated, mask set to false",
				"element", id.String(), "err", err)
			c = invalid(f.Rows())
		}
		out[id] = c
	}
	if len(unbounded) > 0 {
		r.once.Do(func() {
			r.report().Warn("numeric elements with missing upper or lower bound, using +/-inf",
				"elements", schema.JoinIDs(unbounded))
		})
	}
	return out
}

func (r *Range) report() diag.Reporter {
	if r.Report == nil {
		return diag.Nop
	}
	return r.Report
}

func inRange(f *frame.Frame, id schema.ElementID, lo, hi float64) (*mask.Column, error) {
	c, ok := f.Column(id)
	if !ok {
		return nil, fmt.Errorf("column %s not in data", id)
	}
	if !c.Type.Numeric() {
		return nil, fmt.Errorf("column %s holds %s values", id, c.Type)
	}
	n := c.Len()
	v := bitmap.New(n)
	for i := 0; i < n; i++ {
		x, ok := c.Float(i)
		v.Put(i, !ok || (x >= lo && x <= hi))
	}
	return mask.Of(v), nil
}
