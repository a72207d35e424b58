package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsmask/internal/codetable"
	"obsmask/internal/coerce"
	"obsmask/internal/diag"
	"obsmask/internal/frame"
	"obsmask/internal/mask"
	"obsmask/internal/schema"
)

func f64(v float64) *float64 { return &v }

func bools(c *mask.Column) []bool {
	out := make([]bool, c.Len())
	for i := range out {
		v, set := c.Get(i)
		out[i] = v && set
	}
	return out
}

func tableDir(t *testing.T, tables map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range tables {
		require.NoError(t, os.WriteFile(codetable.Path(dir, name), []byte(body), 0o644))
	}
	return dir
}

func coerced(t *testing.T, raw *frame.Frame, s *schema.Schema) *frame.Frame {
	t.Helper()
	f, err := coerce.Frame(raw, s)
	require.NoError(t, err)
	return f
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, KindNumeric, KindOf(schema.TypeUint32))
	assert.Equal(t, KindCoded, KindOf(schema.TypeKey))
	assert.Equal(t, KindDatetime, KindOf(schema.TypeDatetime))
	assert.Equal(t, KindNone, KindOf(schema.TypeStr))
	assert.Equal(t, KindNone, KindOf(schema.ColumnType(200)))
}

/*
TestRange verifies mask = missing OR min <= v <= max, including the blank
versus empty distinction: a blank reads as zero and fails a bound that
excludes zero, an empty value is missing and passes.
*/
func TestRange(t *testing.T) {
	t.Parallel()
	id := schema.Simple("MO")
	s := schema.New(map[schema.ElementID]schema.Attrs{
		id: {ColumnType: schema.TypeInt8, ValidMin: f64(1), ValidMax: f64(12)},
	})
	f := coerced(t, frame.New(6).MustAdd(id, frame.Raw("1", "12", "13", " ", "", "x")), s)

	rec := &diag.Recorder{}
	r := &Range{Report: rec}
	got := r.Validate(f, s, []schema.ElementID{id})
	assert.Equal(t, []bool{true, true, false, false, true, true}, bools(got[id]))
	assert.Empty(t, rec.Entries())
}

/*
TestRange_MissingBoundsWarnOnce verifies a single warning naming every
unbounded element, however many chunks are validated, and that the absent
bound behaves as infinity.
*/
func TestRange_MissingBoundsWarnOnce(t *testing.T) {
	t.Parallel()
	lo, hi := schema.Simple("LO"), schema.Simple("HI")
	s := schema.New(map[schema.ElementID]schema.Attrs{
		lo: {ColumnType: schema.TypeFloat64, ValidMin: f64(0)},
		hi: {ColumnType: schema.TypeFloat64, ValidMax: f64(0)},
	})
	raw := frame.New(2).MustAdd(lo, frame.Raw("-1", "1e300")).MustAdd(hi, frame.Raw("-1e300", "1"))
	f := coerced(t, raw, s)

	rec := &diag.Recorder{}
	r := &Range{Report: rec}
	for i := 0; i < 3; i++ {
		got := r.Validate(f, s, []schema.ElementID{hi, lo})
		assert.Equal(t, []bool{false, true}, bools(got[lo]))
		assert.Equal(t, []bool{true, false}, bools(got[hi]))
	}
	require.Equal(t, 1, rec.Count(diag.LevelWarn))
	v, _ := rec.Entries()[0].Attr("elements")
	assert.Equal(t, "HI,LO", v)
}

func TestRange_UncoercedColumn(t *testing.T) {
	t.Parallel()
	id := schema.Simple("N")
	s := schema.New(map[schema.ElementID]schema.Attrs{id: {ColumnType: schema.TypeInt8}})
	rec := &diag.Recorder{}
	got := (&Range{Report: rec}).Validate(frame.New(1).MustAdd(id, frame.Raw("1")), s, []schema.ElementID{id})
	assert.Equal(t, []bool{false}, bools(got[id]))
	assert.Equal(t, 1, rec.Count(diag.LevelError))
}

/*
TestDatetime verifies that an impossible calendar date masks false.
*/
func TestDatetime(t *testing.T) {
	t.Parallel()
	id := schema.Simple("DATE")
	s := schema.New(map[schema.ElementID]schema.Attrs{id: {ColumnType: schema.TypeDatetime, DatetimeFormat: "%Y%m%d"}})
	f := coerced(t, frame.New(3).MustAdd(id, frame.Raw("20240229", "20240230", "")), s)

	got := Datetime(f, []schema.ElementID{id}, nil)
	assert.Equal(t, []bool{true, false, false}, bools(got[id]))

	rec := &diag.Recorder{}
	got = Datetime(frame.New(1).MustAdd(id, frame.Raw("20240101")), []schema.ElementID{id}, rec)
	assert.Equal(t, []bool{false}, bools(got[id]))
	assert.Equal(t, 1, rec.Count(diag.LevelError))
}

/*
TestCodes_Simple verifies plain membership with a missing value passing.
*/
func TestCodes_Simple(t *testing.T) {
	t.Parallel()
	dir := tableDir(t, map[string]string{"deck": `{"1": "a", "2": "b", "3": "c"}`})
	id := schema.Simple("DCK")
	s := schema.New(map[schema.ElementID]schema.Attrs{id: {ColumnType: schema.TypeKey, CodeTable: "deck"}})
	f := coerced(t, frame.New(3).MustAdd(id, frame.RawNA([]string{"1", "9", ""}, 2)), s)

	got := Codes{Dir: dir}.Validate(f, s, []schema.ElementID{id})
	assert.Equal(t, []bool{true, false, true}, bools(got[id]))
}

/*
TestCodes_Alias verifies a two-column alias: the key is YEAR∿MONTH and a
missing component passes.
*/
func TestCodes_Alias(t *testing.T) {
	t.Parallel()
	dir := tableDir(t, map[string]string{
		"year_month": `{"_keys": {"YEAR": ["YEAR", "MONTH"]}, "2020": {"01": "Jan", "02": "Feb"}}`,
	})
	year, month := schema.Simple("YEAR"), schema.Simple("MONTH")
	s := schema.New(map[schema.ElementID]schema.Attrs{
		year:  {ColumnType: schema.TypeKey, CodeTable: "year_month"},
		month: {ColumnType: schema.TypeStr},
	})
	raw := frame.New(3).
		MustAdd(year, frame.Raw("2020", "2020", "2020")).
		MustAdd(month, frame.RawNA([]string{"01", "13", ""}, 2))
	f := coerced(t, raw, s)

	got := Codes{Dir: dir}.Validate(f, s, []schema.ElementID{year})
	assert.Equal(t, []bool{true, false, true}, bools(got[year]))
}

/*
TestCodes_NumericKeyComponent verifies integer key columns serialize in base
10 so they match table keys.
*/
func TestCodes_NumericKeyComponent(t *testing.T) {
	t.Parallel()
	dir := tableDir(t, map[string]string{"ym": `{"_keys": {"YR": ["YR", "MO"]}, "1999": {"12": 1}}`})
	yr, mo := schema.Simple("YR"), schema.Simple("MO")
	s := schema.New(map[schema.ElementID]schema.Attrs{
		yr: {ColumnType: schema.TypeKey, CodeTable: "ym"},
		mo: {ColumnType: schema.TypeInt8},
	})
	f := coerced(t, frame.New(2).MustAdd(yr, frame.Raw("1999", "1999")).MustAdd(mo, frame.Raw("12", "011")), s)
	got := Codes{Dir: dir}.Validate(f, s, []schema.ElementID{yr})
	assert.Equal(t, []bool{true, false}, bools(got[yr]))
}

/*
TestCodes_Supplemental verifies that bare alias columns are qualified by the
supplemental section, and explicit [section, field] entries are kept.
*/
func TestCodes_Supplemental(t *testing.T) {
	t.Parallel()
	dir := tableDir(t, map[string]string{
		"inst": `{"_keys": {"INST": ["INST", ["core", "DCK"]]}, "A": {"7": 1}}`,
	})
	inst := schema.Qualified("c99", "INST")
	dck := schema.Qualified("core", "DCK")
	s := schema.New(map[schema.ElementID]schema.Attrs{
		inst: {ColumnType: schema.TypeKey, CodeTable: "inst"},
		dck:  {ColumnType: schema.TypeKey},
	})
	f := coerced(t, frame.New(2).MustAdd(inst, frame.Raw("A", "A")).MustAdd(dck, frame.Raw("7", "8")), s)

	got := Codes{Dir: dir, Section: "c99"}.Validate(f, s, []schema.ElementID{inst})
	assert.Equal(t, []bool{true, false}, bools(got[inst]))
}

/*
TestCodes_Failures verifies that each per-element failure masks only that
element false with an error carrying element, table and path, while other
elements are still validated.
*/
func TestCodes_Failures(t *testing.T) {
	t.Parallel()
	dir := tableDir(t, map[string]string{
		"good":   `{"1": "x"}`,
		"broken": `{`,
		"alias":  `{"_keys": {"C": ["C", "GONE"]}, "1": {"1": 1}}`,
	})
	a, b, c, d, e := schema.Simple("A"), schema.Simple("B"), schema.Simple("C"), schema.Simple("D"), schema.Simple("E")
	s := schema.New(map[schema.ElementID]schema.Attrs{
		a: {ColumnType: schema.TypeKey, CodeTable: "good"},
		b: {ColumnType: schema.TypeKey, CodeTable: "broken"},
		c: {ColumnType: schema.TypeKey, CodeTable: "alias"},
		d: {ColumnType: schema.TypeKey},
		e: {ColumnType: schema.TypeKey, CodeTable: "absent"},
	})
	raw := frame.New(1)
	for _, id := range []schema.ElementID{a, b, c, d, e} {
		raw.MustAdd(id, frame.Raw("1"))
	}
	f := coerced(t, raw, s)

	rec := &diag.Recorder{}
	ids := []schema.ElementID{a, b, c, d, e}
	got := Codes{Dir: dir, Report: rec}.Validate(f, s, ids)
	assert.Equal(t, []bool{true}, bools(got[a]))
	for _, id := range ids[1:] {
		assert.Equal(t, []bool{false}, bools(got[id]), id.String())
	}
	require.Equal(t, 4, rec.Count(diag.LevelError))
	last := rec.Entries()[3]
	el, _ := last.Attr("element")
	tbl, _ := last.Attr("table")
	p, _ := last.Attr("path")
	assert.Equal(t, "E", el)
	assert.Equal(t, "absent", tbl)
	assert.Equal(t, filepath.Join(dir, "absent.json"), p)
}

/*
TestCodes_MissingDirectory verifies that an absent code table directory sets
every coded element false with a single error.
*/
func TestCodes_MissingDirectory(t *testing.T) {
	t.Parallel()
	a, b := schema.Simple("A"), schema.Simple("B")
	s := schema.New(map[schema.ElementID]schema.Attrs{
		a: {ColumnType: schema.TypeKey, CodeTable: "x"},
		b: {ColumnType: schema.TypeKey, CodeTable: "y"},
	})
	f := coerced(t, frame.New(2).MustAdd(a, frame.Raw("1", "")).MustAdd(b, frame.Raw("1", "2")), s)

	rec := &diag.Recorder{}
	got := Codes{Dir: filepath.Join(t.TempDir(), "nope"), Report: rec}.Validate(f, s, []schema.ElementID{a, b})
	assert.Equal(t, []bool{false, false}, bools(got[a]))
	assert.Equal(t, []bool{false, false}, bools(got[b]))
	assert.Equal(t, 1, rec.Count(diag.LevelError))
}
