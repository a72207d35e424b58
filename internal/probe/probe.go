// Package probe drafts a schema from a sample of a raw CSV dataset.
//
// Each column gets the narrowest type every non-empty sampled value fits:
// signed integer (smallest width holding the observed range), float64,
// datetime (with the best matching strftime format) or str. Numeric columns
// carry the observed range as valid_min/valid_max. The draft is a starting
// point for authoring, not a finished data model.
package probe

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"obsmask/internal/coerce"
	"obsmask/internal/dataset"
	"obsmask/internal/frame"
	"obsmask/internal/schema"
)

// DefaultMaxRows bounds the sample when Options.MaxRows is unset.
const DefaultMaxRows = 10000

// Options control sampling and naming.
type Options struct {
	Encoding  string
	Delimiter rune
	// MaxRows is the number of data rows sampled.
	MaxRows int
	// Normalize rewrites field names into lowercase ASCII identifiers.
	Normalize bool
}

// Element is the inferred description of one column.
type Element struct {
	ID     schema.ElementID
	Header string
	Type   schema.ColumnType
	// Min and Max are set for numeric columns with at least one value.
	Min, Max *float64
	// Format is the strftime format of datetime columns.
	Format string
	// Empty counts empty or blank sampled cells.
	Empty int
}

// Result is a probed sample.
type Result struct {
	Rows     int
	Elements []Element
}

// Probe reads up to opt.MaxRows rows of src and infers one Element per
// column.
func Probe(src io.Reader, opt Options) (Result, error) {
	n := opt.MaxRows
	if n <= 0 {
		n = DefaultMaxRows
	}
	r, err := dataset.NewReader(src, dataset.Options{Encoding: opt.Encoding, Delimiter: opt.Delimiter, ChunkSize: n})
	if err != nil {
		return Result{}, err
	}
	f, err := r.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		return Result{}, err
	}
	if f == nil {
		f = frame.New(0)
	}

	res := Result{Rows: f.Rows()}
	for _, id := range r.Columns() {
		c, _ := f.Column(id)
		var vals []string
		if c != nil {
			vals = c.Strings
		}
		el := infer(vals)
		el.Header = id.String()
		el.ID = id
		if opt.Normalize {
			el.ID = schema.ElementID{Section: id.Section, Field: NormalizeName(id.Field)}
		}
		res.Elements = append(res.Elements, el)
	}
	return res, nil
}

func infer(values []string) Element {
	var el Element
	nonEmpty := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			el.Empty++
			continue
		}
		nonEmpty = append(nonEmpty, v)
	}
	if len(nonEmpty) == 0 {
		el.Type = schema.TypeObject
		return el
	}

	if lo, hi, ok := intRange(nonEmpty); ok {
		el.Type = intType(lo, hi)
		el.Min, el.Max = ptr(float64(lo)), ptr(float64(hi))
		return el
	}
	if lo, hi, ok := floatRange(nonEmpty); ok {
		el.Type = schema.TypeFloat64
		el.Min, el.Max = ptr(lo), ptr(hi)
		return el
	}
	if format := bestFormat(nonEmpty); format != "" {
		el.Type = schema.TypeDatetime
		el.Format = format
		return el
	}
	el.Type = schema.TypeStr
	return el
}

func ptr(f float64) *float64 { return &f }

func intRange(vals []string) (lo, hi int64, ok bool) {
	lo, hi = math.MaxInt64, math.MinInt64
	for _, v := range vals {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		lo, hi = min(lo, n), max(hi, n)
	}
	return lo, hi, true
}

func floatRange(vals []string) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, 0, false
		}
		lo, hi = math.Min(lo, f), math.Max(hi, f)
	}
	return lo, hi, true
}

// intType returns the narrowest signed type holding [lo, hi].
func intType(lo, hi int64) schema.ColumnType {
	switch {
	case lo >= math.MinInt8 && hi <= math.MaxInt8:
		return schema.TypeInt8
	case lo >= math.MinInt16 && hi <= math.MaxInt16:
		return schema.TypeInt16
	case lo >= math.MinInt32 && hi <= math.MaxInt32:
		return schema.TypeInt32
	}
	return schema.TypeInt64
}

// datetimeFormats are the strftime candidates, timestamps before dates. On a
// score tie the earlier entry wins.
var datetimeFormats = []string{
	"%Y-%m-%dT%H:%M:%S",
	"%Y-%m-%d %H:%M:%S",
	"%Y/%m/%d %H:%M:%S",
	"%d.%m.%Y %H:%M:%S",
	"%Y-%m-%d %H:%M",
	"%Y%m%d%H%M",
	"%Y-%m-%d",
	"%d.%m.%Y",
	"%d/%m/%Y",
	"%m/%d/%Y",
	"%Y/%m/%d",
	"%Y%m%d",
}

// bestFormat returns the candidate format every value parses with, or "".
func bestFormat(vals []string) string {
	for _, f := range datetimeFormats {
		layout, err := coerce.Layout(f)
		if err != nil {
			continue
		}
		all := true
		for _, v := range vals {
			if _, err := time.Parse(layout, v); err != nil {
				all = false
				break
			}
		}
		if all {
			return f
		}
	}
	return ""
}

// NormalizeName converts header text into a lowercase ASCII identifier:
// accents are stripped, space, dash and dot become one underscore and other
// characters are dropped. An empty result becomes "col".
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "col"
	}
	return name
}

// YAML renders the result as a schema file readable by schema.Load.
func (res Result) YAML() ([]byte, error) {
	doc := map[string]any{}
	top := map[string]any{}
	sections := map[string]map[string]any{}
	for _, el := range res.Elements {
		attrs := map[string]any{"column_type": el.Type.String()}
		if el.Min != nil {
			attrs["valid_min"] = *el.Min
			attrs["valid_max"] = *el.Max
		}
		if el.Format != "" {
			attrs["datetime_format"] = el.Format
		}
		if el.Header != el.ID.String() {
			attrs["description"] = fmt.Sprintf("header %q", el.Header)
		}
		if el.ID.Section == "" {
			top[el.ID.Field] = attrs
			continue
		}
		if sections[el.ID.Section] == nil {
			sections[el.ID.Section] = map[string]any{}
		}
		sections[el.ID.Section][el.ID.Field] = attrs
	}
	if len(top) > 0 {
		doc["elements"] = top
	}
	if len(sections) > 0 {
		out := map[string]any{}
		for sec, els := range sections {
			out[sec] = map[string]any{"elements": els}
		}
		doc["sections"] = out
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("probe: render yaml: %w", err)
	}
	return b, nil
}

// Summary renders one line per element: id, type, empty count and range or
// format.
func (res Result) Summary() string {
	var b strings.Builder
	els := append([]Element(nil), res.Elements...)
	sort.SliceStable(els, func(i, j int) bool { return els[i].ID.Less(els[j].ID) })
	fmt.Fprintf(&b, "%d rows sampled\n", res.Rows)
	for _, el := range els {
		fmt.Fprintf(&b, "%s\t%s\tempty=%d", el.ID, el.Type, el.Empty)
		switch {
		case el.Min != nil:
			fmt.Fprintf(&b, "\t[%g, %g]", *el.Min, *el.Max)
		case el.Format != "":
			fmt.Fprintf(&b, "\t%s", el.Format)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
