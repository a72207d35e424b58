package validate

import (
	"errors"
	"fmt"
	"os"

	"obsmask/internal/bitmap"
	"obsmask/internal/codetable"
	"obsmask/internal/coerce"
	"obsmask/internal/diag"
	"obsmask/internal/frame"
	"obsmask/internal/mask"
	"obsmask/internal/schema"
)

var errNoTable = errors.New("no codetable attribute")

// Codes checks coded elements against the code tables of one directory.
//
// Section is empty for the primary pass. For a supplemental pass it names
// the supplemental section, and bare alias columns are qualified by it.
type Codes struct {
	Dir     string
	Section string
	Cache   *codetable.Cache
	Report  diag.Reporter
}

// Validate masks each element true where its key is a valid code or any key
// component is missing. An element whose table cannot be used is masked
// false for the whole frame and reported; the others are still checked.
func (v Codes) Validate(f *frame.Frame, s *schema.Schema, ids []schema.ElementID) Result {
	rep := v.Report
	if rep == nil {
		rep = diag.Nop
	}
	out := make(Result, len(ids))
	if len(ids) == 0 {
		return out
	}
	if fi, err := os.Stat(v.Dir); err != nil || !fi.IsDir() {
		rep.Error("code tables path not found, all coded elements set to false",
			"path", v.Dir, "elements", schema.JoinIDs(ids))
		out.Invalidate(f.Rows(), ids)
		return out
	}
	cache := v.Cache
	if cache == nil {
		cache = codetable.NewCache()
	}
	for _, id := range ids {
		a, _ := s.Get(id)
		c, err := v.element(f, s, id, a.CodeTable, cache)
		if err != nil {
			rep.Error("coded element not validated, mask set to false",
				"element", id.String(), "table", a.CodeTable,
				"path", codetable.Path(v.Dir, a.CodeTable), "err", err)
			c = invalid(f.Rows())
		}
		out[id] = c
	}
	return out
}

func (v Codes) element(f *frame.Frame, s *schema.Schema, id schema.ElementID, name string, cache *codetable.Cache) (*mask.Column, error) {
	if name == "" {
		return nil, errNoTable
	}
	tbl, err := cache.Get(v.Section, v.Dir, name)
	if err != nil {
		return nil, err
	}
	keys := v.keyColumns(tbl, id)

	cols := make([]*frame.Column, len(keys))
	layouts := make([]string, len(keys))
	for i, k := range keys {
		c, ok := f.Column(k)
		if !ok {
			return nil, fmt.Errorf("key column %s not in data", k)
		}
		cols[i] = c
		if c.Type == schema.TypeDatetime {
			a, _ := s.Get(k)
			if layouts[i], err = coerce.Layout(a.Format()); err != nil {
				return nil, fmt.Errorf("key column %s: %w", k, err)
			}
		}
	}

	n := f.Rows()
	valid := bitmap.Full(n)
	parts := make([]string, len(cols))
rows:
	for i := 0; i < n; i++ {
		for j, c := range cols {
			if c.IsMissing(i) {
				continue rows
			}
			if parts[j], err = c.Format(i, layouts[j]); err != nil {
				return nil, fmt.Errorf("key column %s: %w", keys[j], err)
			}
		}
		if !tbl.Contains(codetable.JoinKey(parts)) {
			valid.Clear(i)
		}
	}
	return mask.Of(valid), nil
}

// keyColumns returns the columns whose joined values form the lookup key of
// id: the table's alias for it if one is declared, otherwise id alone.
func (v Codes) keyColumns(tbl *codetable.Table, id schema.ElementID) []schema.ElementID {
	alias, ok := tbl.Alias(id)
	if !ok {
		return []schema.ElementID{id}
	}
	section := id.Section
	if v.Section != "" {
		section = v.Section
	}
	out := make([]schema.ElementID, len(alias))
	for i, c := range alias {
		out[i] = c.Qualify(section)
	}
	return out
}
