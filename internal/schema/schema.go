// Package schema describes the declarative metadata the validation engine
// checks data against: which elements exist, their semantic column type, and
// the constraints (bounds, code tables, coercion rules) attached to each.
//
// A schema is loaded once per run from a data model directory (see Resolve)
// and is read-only afterwards.
package schema

import (
	"math"
	"sort"
)

// DefaultDatetimeFormat is used for datetime elements that declare no format.
const DefaultDatetimeFormat = "%Y%m%d"

// Attrs are the attributes attached to one element.
type Attrs struct {
	ColumnType ColumnType `mapstructure:"column_type"`

	// ValidMin and ValidMax bound numeric elements; nil means unbounded.
	ValidMin *float64 `mapstructure:"valid_min"`
	ValidMax *float64 `mapstructure:"valid_max"`

	// CodeTable names the <codetable>.json file coded elements are checked
	// against.
	CodeTable string `mapstructure:"codetable"`

	// Scale and Offset are applied by numeric coercion: offset + value*scale.
	Scale  *float64 `mapstructure:"scale"`
	Offset *float64 `mapstructure:"offset"`

	DatetimeFormat string   `mapstructure:"datetime_format"`
	Trim           TrimMode `mapstructure:"trim"`

	// MissingValue is a raw literal read as missing, e.g. "9999".
	MissingValue string `mapstructure:"missing_value"`

	Description string `mapstructure:"description"`
}

// Bounds returns the numeric bounds, substituting -Inf/+Inf for missing ones.
// ok is false when at least one bound had to be substituted.
func (a Attrs) Bounds() (lo, hi float64, ok bool) {
	lo, hi, ok = math.Inf(-1), math.Inf(1), true
	if a.ValidMin != nil {
		lo = *a.ValidMin
	} else {
		ok = false
	}
	if a.ValidMax != nil {
		hi = *a.ValidMax
	} else {
		ok = false
	}
	return lo, hi, ok
}

// ScaleOffset returns the coercion scale and offset, defaulting to 1 and 0.
func (a Attrs) ScaleOffset() (scale, offset float64) {
	scale, offset = 1, 0
	if a.Scale != nil {
		scale = *a.Scale
	}
	if a.Offset != nil {
		offset = *a.Offset
	}
	return scale, offset
}

// Format returns the declared datetime format or the default.
func (a Attrs) Format() string {
	if a.DatetimeFormat == "" {
		return DefaultDatetimeFormat
	}
	return a.DatetimeFormat
}

// Schema maps element ids to their attributes.
type Schema struct {
	attrs map[ElementID]Attrs
	order []ElementID
}

// New builds a schema from an attribute map. Element order is sorted so that
// iteration is deterministic.
func New(attrs map[ElementID]Attrs) *Schema {
	s := &Schema{attrs: make(map[ElementID]Attrs, len(attrs))}
	for id, a := range attrs {
		s.attrs[id] = a
		s.order = append(s.order, id)
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i].Less(s.order[j]) })
	return s
}

// Get returns the attributes of id.
func (s *Schema) Get(id ElementID) (Attrs, bool) {
	a, ok := s.attrs[id]
	return a, ok
}

// Has reports whether id is declared.
func (s *Schema) Has(id ElementID) bool {
	_, ok := s.attrs[id]
	return ok
}

// Type returns the declared column type of id (TypeObject when undeclared).
func (s *Schema) Type(id ElementID) ColumnType { return s.attrs[id].ColumnType }

// Elements returns all declared ids in deterministic order.
func (s *Schema) Elements() []ElementID {
	out := make([]ElementID, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of declared elements.
func (s *Schema) Len() int { return len(s.attrs) }

// Merge returns a schema holding the elements of s and o; o wins on conflict.
// It is used to layer a supplemental section's schema onto the primary one.
func (s *Schema) Merge(o *Schema) *Schema {
	all := make(map[ElementID]Attrs, s.Len()+o.Len())
	for id, a := range s.attrs {
		all[id] = a
	}
	for id, a := range o.attrs {
		all[id] = a
	}
	return New(all)
}

// Sections lists the distinct non-empty sections declared.
func (s *Schema) Sections() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, id := range s.order {
		if id.Section == "" {
			continue
		}
		if _, ok := seen[id.Section]; ok {
			continue
		}
		seen[id.Section] = struct{}{}
		out = append(out, id.Section)
	}
	return out
}
