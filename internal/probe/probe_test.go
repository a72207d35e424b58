package probe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsmask/internal/schema"
)

const sample = `core:YR,core:AT,core:SLP,core:DATE,core:ID,remarks
1899,-1.5,1013.2,1899-01-02,SHIP1,
1900,22.25,999,1900-12-31,SHIP2, 
1901,,1021.7,1901-06-15,SHIP3,x
`

/*
TestProbe verifies per-column inference: narrowest integer width, float
range, strftime datetime format, string fallback and empty counting.
*/
func TestProbe(t *testing.T) {
	t.Parallel()
	res, err := Probe(strings.NewReader(sample), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	require.Len(t, res.Elements, 6)

	byID := map[string]Element{}
	for _, el := range res.Elements {
		byID[el.ID.String()] = el
	}

	yr := byID["core:YR"]
	assert.Equal(t, schema.TypeInt16, yr.Type)
	assert.Equal(t, 1899.0, *yr.Min)
	assert.Equal(t, 1901.0, *yr.Max)

	at := byID["core:AT"]
	assert.Equal(t, schema.TypeFloat64, at.Type)
	assert.Equal(t, -1.5, *at.Min)
	assert.Equal(t, 22.25, *at.Max)
	assert.Equal(t, 1, at.Empty)

	assert.Equal(t, schema.TypeFloat64, byID["core:SLP"].Type, "mixed int and float values are float")

	date := byID["core:DATE"]
	assert.Equal(t, schema.TypeDatetime, date.Type)
	assert.Equal(t, "%Y-%m-%d", date.Format)

	assert.Equal(t, schema.TypeStr, byID["core:ID"].Type)
	assert.Equal(t, schema.TypeStr, byID["remarks"].Type)
	assert.Equal(t, 2, byID["remarks"].Empty, "blank cells count as empty")
}

func TestInferEdgeCases(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		vals []string
		want schema.ColumnType
	}{
		{"all empty", []string{"", " "}, schema.TypeObject},
		{"int8", []string{"-128", "127"}, schema.TypeInt8},
		{"int32", []string{"70000"}, schema.TypeInt32},
		{"int64", []string{"9999999999"}, schema.TypeInt64},
		{"compact date stays int", []string{"20200101"}, schema.TypeInt32},
		{"nan is text", []string{"NaN"}, schema.TypeStr},
		{"timestamp", []string{"2020-01-02 03:04:05"}, schema.TypeDatetime},
		{"impossible date", []string{"2020-02-31"}, schema.TypeStr},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, infer(tc.vals).Type)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"  Air Temp. ": "air_temp",
		"Teplota-Vzduchu": "teplota_vzduchu",
		"Příliš žluťoučký": "prilis_zlutoucky",
		"%%%":            "col",
		"a__b":           "a_b",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}

/*
TestYAMLLoadsAsSchema verifies the rendered draft is a schema file that
schema.Load accepts, with sections, ranges and formats intact.
*/
func TestYAMLLoadsAsSchema(t *testing.T) {
	t.Parallel()
	res, err := Probe(strings.NewReader(sample), Options{})
	require.NoError(t, err)
	b, err := res.YAML()
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "draft.yaml")
	require.NoError(t, os.WriteFile(p, b, 0o644))
	s, err := schema.Load(p)
	require.NoError(t, err)

	yr, ok := s.Get(schema.Qualified("core", "YR"))
	require.True(t, ok)
	assert.Equal(t, schema.TypeInt16, yr.ColumnType)
	lo, hi, bounded := yr.Bounds()
	assert.True(t, bounded)
	assert.Equal(t, 1899.0, lo)
	assert.Equal(t, 1901.0, hi)

	date, ok := s.Get(schema.Qualified("core", "DATE"))
	require.True(t, ok)
	assert.Equal(t, "%Y-%m-%d", date.DatetimeFormat)

	assert.True(t, s.Has(schema.Simple("remarks")))
}

func TestProbeNormalize(t *testing.T) {
	t.Parallel()
	res, err := Probe(strings.NewReader("core:Air Temp,Poznámka\n1,a\n"), Options{Normalize: true, MaxRows: 1})
	require.NoError(t, err)
	require.Len(t, res.Elements, 2)
	assert.Equal(t, schema.Qualified("core", "air_temp"), res.Elements[0].ID)
	assert.Equal(t, "core:Air Temp", res.Elements[0].Header)
	assert.Equal(t, schema.Simple("poznamka"), res.Elements[1].ID)

	assert.Contains(t, res.Summary(), "1 rows sampled")
}
