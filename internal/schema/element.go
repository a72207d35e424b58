package schema

import "strings"

// SectionSep separates section and field in the textual form of a composite
// element id, e.g. "c99:SST".
const SectionSep = ":"

// ElementID identifies a column. Section is empty for simple names; datasets
// with several logical sections key their columns by (section, field).
type ElementID struct {
	Section string
	Field   string
}

// Simple returns the id of a simple (section-less) element.
func Simple(field string) ElementID { return ElementID{Field: field} }

// Qualified returns a (section, field) id.
func Qualified(section, field string) ElementID {
	return ElementID{Section: section, Field: field}
}

// ParseElementID reads the textual form produced by String.
func ParseElementID(s string) ElementID {
	if sec, field, ok := strings.Cut(s, SectionSep); ok {
		return ElementID{Section: sec, Field: field}
	}
	return ElementID{Field: s}
}

// IsComposite reports whether the id carries a section.
func (e ElementID) IsComposite() bool { return e.Section != "" }

// In returns the same field qualified by another section.
func (e ElementID) In(section string) ElementID {
	return ElementID{Section: section, Field: e.Field}
}

func (e ElementID) String() string {
	if e.Section == "" {
		return e.Field
	}
	return e.Section + SectionSep + e.Field
}

// Less orders ids by section, then field.
func (e ElementID) Less(o ElementID) bool {
	if e.Section != o.Section {
		return e.Section < o.Section
	}
	return e.Field < o.Field
}

// JoinIDs renders ids as a comma separated list for log messages.
func JoinIDs(ids []ElementID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
