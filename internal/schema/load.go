package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoSource is returned by Resolve when neither a model name nor a path
	// is given.
	ErrNoSource = errors.New("schema: no data model name or path given")
	// ErrNotFound is returned when a model directory or schema file is absent.
	ErrNotFound = errors.New("schema: not found")
)

// CodeTablesDir is the directory, inside a data model, holding code tables.
const CodeTablesDir = "code_tables"

// document is the on-disk shape of a schema file. Simple elements live under
// "elements"; multi-section layouts put them under sections.<name>.elements.
// Other top-level keys (header, parsing hints) are ignored.
type document struct {
	Elements map[string]map[string]any `json:"elements" yaml:"elements"`
	Sections map[string]struct {
		Elements map[string]map[string]any `json:"elements" yaml:"elements"`
	} `json:"sections" yaml:"sections"`
}

// Load reads a schema file. The format is chosen by extension: .yaml/.yml are
// YAML, anything else JSON.
func Load(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	var doc document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &doc)
	default:
		err = json.Unmarshal(b, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("schema: decode %s: %w", path, err)
	}
	return fromDocument(doc)
}

func fromDocument(doc document) (*Schema, error) {
	all := make(map[ElementID]Attrs)
	for name, raw := range doc.Elements {
		a, err := decodeAttrs(raw)
		if err != nil {
			return nil, fmt.Errorf("schema: element %s: %w", name, err)
		}
		all[Simple(name)] = a
	}
	for sec, body := range doc.Sections {
		for name, raw := range body.Elements {
			id := Qualified(sec, name)
			a, err := decodeAttrs(raw)
			if err != nil {
				return nil, fmt.Errorf("schema: element %s: %w", id, err)
			}
			all[id] = a
		}
	}
	return New(all), nil
}

// decodeAttrs maps a loose attribute object onto Attrs. Numbers given as
// strings ("valid_min": "0") are accepted; type and trim names go through
// their TextUnmarshaler so unknown spellings fail here, at setup time.
func decodeAttrs(raw map[string]any) (Attrs, error) {
	var a Attrs
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		WeaklyTypedInput: true,
		Result:           &a,
	})
	if err != nil {
		return a, err
	}
	if err := dec.Decode(raw); err != nil {
		return a, err
	}
	if a.ValidMin != nil && a.ValidMax != nil && *a.ValidMin > *a.ValidMax {
		return a, fmt.Errorf("valid_min %v > valid_max %v", *a.ValidMin, *a.ValidMax)
	}
	return a, nil
}

// Qualify returns a copy of s with every simple id moved into section.
// Already-qualified ids are kept as they are.
func (s *Schema) Qualify(section string) *Schema {
	out := make(map[ElementID]Attrs, s.Len())
	for id, a := range s.attrs {
		if !id.IsComposite() {
			id = id.In(section)
		}
		out[id] = a
	}
	return New(out)
}

// Source addresses a data model either by name, resolved against a library
// root, or by explicit path.
type Source struct {
	Name string
	Path string
}

// IsZero reports whether neither a name nor a path is set.
func (s Source) IsZero() bool {
	return strings.TrimSpace(s.Name) == "" && strings.TrimSpace(s.Path) == ""
}

// Dir returns the model directory the source points at without touching the
// filesystem. A Path naming a file resolves to its parent directory.
func (s Source) Dir(libRoot string) string {
	if s.Path != "" {
		if ext := strings.ToLower(filepath.Ext(s.Path)); ext == ".json" || ext == ".yaml" || ext == ".yml" {
			return filepath.Dir(s.Path)
		}
		return s.Path
	}
	return filepath.Join(libRoot, s.Name)
}

// CodeTables returns the code table directory of the model.
func (s Source) CodeTables(libRoot string) string {
	return filepath.Join(s.Dir(libRoot), CodeTablesDir)
}

// Model is a resolved data model: its schema plus the code-table directory.
type Model struct {
	Name       string
	Dir        string
	SchemaFile string
	CodeTables string
	Schema     *Schema
}

// Resolve locates and loads a data model. A Path wins over a Name. The path
// may point at the model directory or directly at its schema file.
func Resolve(src Source, libRoot string) (*Model, error) {
	if src.IsZero() {
		return nil, ErrNoSource
	}

	var dir, name, file string
	if src.Path != "" {
		fi, err := os.Stat(src.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: data model path %s", ErrNotFound, src.Path)
		}
		if fi.IsDir() {
			dir = src.Path
			name = filepath.Base(filepath.Clean(src.Path))
		} else {
			file = src.Path
			dir = filepath.Dir(src.Path)
			name = strings.TrimSuffix(filepath.Base(src.Path), filepath.Ext(src.Path))
		}
	} else {
		name = src.Name
		dir = filepath.Join(libRoot, src.Name)
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			return nil, fmt.Errorf("%w: data model %q under %s", ErrNotFound, src.Name, libRoot)
		}
	}

	if file == "" {
		var err error
		if file, err = findSchemaFile(dir, name); err != nil {
			return nil, err
		}
	}

	s, err := Load(file)
	if err != nil {
		return nil, err
	}
	return &Model{
		Name:       name,
		Dir:        dir,
		SchemaFile: file,
		CodeTables: filepath.Join(dir, CodeTablesDir),
		Schema:     s,
	}, nil
}

func findSchemaFile(dir, name string) (string, error) {
	for _, base := range []string{name, "schema"} {
		for _, ext := range []string{".json", ".yaml", ".yml"} {
			p := filepath.Join(dir, base+ext)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no schema file in %s", ErrNotFound, dir)
}
