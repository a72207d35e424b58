// Package codetable loads the enumerations that coded (categorical) elements
// are validated against.
//
// A code table file is a JSON object. Each top-level key is a valid code; a
// key whose value is itself an object extends the code into a composite key,
// one level per component:
//
//	{
//	  "_keys": {"YEAR": ["YEAR", "MONTH"]},
//	  "2020": {"01": "January", "02": "February"}
//	}
//
// yields the valid keys 2020∿01 and 2020∿02. Keys beginning with '_' hold
// metadata. "_keys" declares key aliases: for the named element, the lookup
// key is built from the listed columns, in order, instead of from the
// element's own value. A column is either a field name or a [section, field]
// pair.
package codetable

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"obsmask/internal/schema"
)

// ErrNotFound is returned when a code table file does not exist.
var ErrNotFound = errors.New("codetable: not found")

// Ext is the file extension of code table files.
const Ext = ".json"

// Column is one entry of a key alias. Section is set only for entries given
// as [section, field] pairs.
type Column struct {
	Section string
	Field   string
}

// Qualify resolves the column against the section of the element being
// validated. Explicitly sectioned entries keep their own section.
func (c Column) Qualify(section string) schema.ElementID {
	if c.Section != "" {
		return schema.Qualified(c.Section, c.Field)
	}
	return schema.ElementID{Section: section, Field: c.Field}
}

// Table is a loaded code table.
type Table struct {
	Name    string
	Path    string
	keys    *KeySet
	aliases map[string][]Column
}

// Path returns the file path of table name inside dir.
func Path(dir, name string) string { return filepath.Join(dir, name+Ext) }

// Load reads and parses a code table file.
func Load(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("codetable: read %s: %w", path, err)
	}
	t, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("codetable: %s: %w", path, err)
	}
	t.Path = path
	t.Name = strings.TrimSuffix(filepath.Base(path), Ext)
	return t, nil
}

// Parse builds a table from the JSON document b.
func Parse(b []byte) (*Table, error) {
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if doc == nil {
		return nil, errors.New("table is not a JSON object")
	}
	t := &Table{keys: NewKeySet(), aliases: map[string][]Column{}}
	if raw, ok := doc["_keys"]; ok {
		if err := t.readAliases(raw); err != nil {
			return nil, err
		}
	}
	collect(doc, nil, t.keys)
	return t, nil
}

// collect walks the nested code objects, adding one serialized key per leaf.
func collect(node map[string]any, prefix []string, into *KeySet) {
	for k, v := range node {
		if strings.HasPrefix(k, "_") {
			continue
		}
		path := append(append([]string(nil), prefix...), k)
		if child, ok := v.(map[string]any); ok && len(child) > 0 {
			collect(child, path, into)
			continue
		}
		into.Add(JoinKey(path))
	}
}

func (t *Table) readAliases(raw any) error {
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("_keys must be an object, got %T", raw)
	}
	for elem, v := range m {
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			return fmt.Errorf("_keys.%s must be a non-empty list", elem)
		}
		cols := make([]Column, 0, len(list))
		for i, entry := range list {
			c, err := aliasColumn(entry)
			if err != nil {
				return fmt.Errorf("_keys.%s[%d]: %w", elem, i, err)
			}
			cols = append(cols, c)
		}
		t.aliases[elem] = cols
	}
	return nil
}

func aliasColumn(entry any) (Column, error) {
	switch e := entry.(type) {
	case string:
		return Column{Field: e}, nil
	case []any:
		if len(e) != 2 {
			return Column{}, fmt.Errorf("want [section, field], got %d items", len(e))
		}
		sec, ok1 := e[0].(string)
		field, ok2 := e[1].(string)
		if !ok1 || !ok2 {
			return Column{}, errors.New("section and field must be strings")
		}
		return Column{Section: sec, Field: field}, nil
	}
	return Column{}, fmt.Errorf("unsupported entry %T", entry)
}

// Alias returns the key columns declared for element, if any. The alias is
// looked up by the element's field name and then by its full textual id.
func (t *Table) Alias(element schema.ElementID) ([]Column, bool) {
	if cols, ok := t.aliases[element.Field]; ok {
		return cols, true
	}
	cols, ok := t.aliases[element.String()]
	return cols, ok
}

// Contains reports whether the serialized key is a valid code.
func (t *Table) Contains(key string) bool { return t.keys.Contains(key) }

// Keys exposes the valid key set.
func (t *Table) Keys() *KeySet { return t.keys }
