// Package config defines the JSON run file that drives one obsmask
// validation, plus environment overrides.
//
// Example (trimmed):
//
//	{
//	  "job":      "imma1-2026-03",
//	  "dataset":  { "path": "data/imma1.csv", "encoding": "utf-8" },
//	  "model":    { "name": "imma1", "lib": "/opt/obsmask/lib" },
//	  "supplemental": { "section": "c99", "model": { "name": "c99_ext" } },
//	  "upstream": { "path": "masks/stage1.csv" },
//	  "output":   { "path": "masks/stage2.csv" },
//	  "runtime":  { "chunk_size": 50000, "workers": 4 },
//	  "report":   { "kind": "sqlite", "dsn": "runs.db" },
//	  "metrics":  { "backend": "prometheus", "pushgateway_url": "http://pgw:9091" }
//	}
package config

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"obsmask/internal/schema"
)

// Run is the top-level object decoded from a run file.
type Run struct {
	// Job labels metrics and run reports.
	Job string `json:"job"`

	Dataset Dataset `json:"dataset"`
	Model   Model   `json:"model"`

	// Supplemental validates one section's coded elements against a second
	// data model. Nil disables the pass.
	Supplemental *Supplemental `json:"supplemental,omitempty"`

	Upstream Upstream `json:"upstream"`
	Output   Output   `json:"output"`
	Runtime  Runtime  `json:"runtime"`
	Report   Report   `json:"report"`
	Metrics  Metrics  `json:"metrics"`
}

// Dataset is the raw CSV input. Headers are element ids ("section:field" or
// a bare field).
type Dataset struct {
	Path string `json:"path"`
	// Encoding is an IANA charset name; empty means UTF-8.
	Encoding string `json:"encoding"`
	// Delimiter is a single character; empty means ','.
	Delimiter string `json:"delimiter"`
}

// Model names a data model. Path wins over Name; Name is resolved under Lib.
type Model struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Lib  string `json:"lib"`
}

// Source converts m to a schema.Source.
func (m Model) Source() schema.Source {
	return schema.Source{Name: m.Name, Path: m.Path}
}

// Supplemental configures the second code-table pass.
type Supplemental struct {
	Section string `json:"section"`
	Model   Model  `json:"model"`
}

// Upstream points at the mask of an earlier stage. Empty means none.
type Upstream struct {
	Path string `json:"path"`
}

// Output is where the mask CSV is written. Empty means stdout.
type Output struct {
	Path string `json:"path"`
}

// Runtime controls chunking and concurrency.
type Runtime struct {
	// ChunkSize is the number of rows per chunk; 0 reads the dataset as one
	// block.
	ChunkSize int `json:"chunk_size"`
	// Workers is the number of chunks validated concurrently.
	Workers int `json:"workers"`
}

// Report selects where run summaries are stored. An empty Kind disables it.
type Report struct {
	Kind  string `json:"kind"`
	DSN   string `json:"dsn"`
	Table string `json:"table"`
}

// Metrics selects the metrics backend: "", "none", "prometheus" or "datadog".
type Metrics struct {
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DogStatsDAddr  string `json:"dogstatsd_addr"`
}

// Load reads and decodes a run file.
func Load(path string) (Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Decode(b)
}

// Decode decodes a run document.
func Decode(b []byte) (Run, error) {
	var r Run
	if err := json.Unmarshal(b, &r); err != nil {
		return Run{}, fmt.Errorf("config: decode: %w", err)
	}
	return r, nil
}

// DelimiterRune returns the dataset delimiter rune, ',' when unset. Validity is
// checked by ValidateRun.
func (d Dataset) DelimiterRune() rune {
	if d.Delimiter == "" {
		return ','
	}
	return []rune(d.Delimiter)[0]
}
