package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/ianaindex"

	"obsmask/internal/source"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single lint finding for a Run.
//
// Path is a dotted path into the run file (e.g. "report.dsn",
// "supplemental.model"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateRun performs static validation of a Run. It does not touch the
// filesystem and does not mutate r.
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  `job is empty; metrics and run reports will be labeled "obsmask"`,
		})
	}
	issues = append(issues, validateDataset(r.Dataset)...)
	issues = append(issues, validateModel("model", r.Model)...)
	if r.Supplemental != nil {
		issues = append(issues, validateSupplemental(*r.Supplemental, r.Model.Lib)...)
	}
	issues = append(issues, validateRuntime(r.Runtime)...)
	issues = append(issues, validateReport(r.Report)...)
	issues = append(issues, validateMetrics(r.Metrics)...)

	if r.Output.Path == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output.path",
			Message:  "output.path is empty; the mask will be written to stdout",
		})
	}
	if source.IsRemote(r.Output.Path) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.path",
			Message:  "output.path must be a local file; only inputs may be URLs",
		})
	}
	if r.Output.Path != "" && r.Output.Path == r.Upstream.Path {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.path",
			Message:  "output.path must differ from upstream.path",
		})
	}
	return issues
}

func validateDataset(d Dataset) []Issue {
	var issues []Issue
	if strings.TrimSpace(d.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "dataset.path",
			Message:  "dataset.path must not be empty",
		})
	}
	if d.Encoding != "" {
		if enc, err := ianaindex.IANA.Encoding(d.Encoding); err != nil || enc == nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "dataset.encoding",
				Message:  fmt.Sprintf("unknown or unsupported encoding %q", d.Encoding),
			})
		}
	}
	if d.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(d.Delimiter)
		if size != len(d.Delimiter) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "dataset.delimiter",
				Message:  fmt.Sprintf("delimiter %q must be a single character other than quote or newline", d.Delimiter),
			})
		}
	}
	return issues
}

func validateModel(path string, m Model) []Issue {
	var issues []Issue
	name, p := strings.TrimSpace(m.Name), strings.TrimSpace(m.Path)
	switch {
	case name == "" && p == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path,
			Message:  "a data model name or path is required",
		})
	case name != "" && p != "":
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path,
			Message:  "both name and path are set; path wins",
		})
	case name != "" && strings.TrimSpace(m.Lib) == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".lib",
			Message:  "resolving a data model by name needs a library root (lib or OBSMASK_LIB)",
		})
	}
	return issues
}

func validateSupplemental(s Supplemental, lib string) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Section) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "supplemental.section",
			Message:  "supplemental.section must not be empty",
		})
	}
	m := s.Model
	if m.Lib == "" {
		m.Lib = lib
	}
	return append(issues, validateModel("supplemental.model", m)...)
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.ChunkSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.chunk_size",
			Message:  "chunk_size must not be negative",
		})
	}
	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	if r.Workers > 1 && r.ChunkSize == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.workers",
			Message:  fmt.Sprintf("workers=%d has no effect without chunk_size", r.Workers),
		})
	}
	return issues
}

func validateReport(r Report) []Issue {
	var issues []Issue
	if r.Kind == "" {
		return nil
	}
	known := map[string]struct{}{
		"postgres": {},
		"sqlite":   {},
	}
	if _, ok := known[r.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "report.kind",
			Message:  fmt.Sprintf("unknown report kind %q; want postgres or sqlite", r.Kind),
		})
	}
	if strings.TrimSpace(r.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "report.dsn",
			Message:  "report.dsn must not be empty when report.kind is set",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prometheus":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prometheus backend needs a Pushgateway URL",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DogStatsDAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.dogstatsd_addr",
				Message:  "datadog backend needs a DogStatsD address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want none, prometheus or datadog", m.Backend),
		})
	}
	return issues
}
