package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsmask/internal/coerce"
	"obsmask/internal/diag"
	"obsmask/internal/frame"
	"obsmask/internal/mask"
	"obsmask/internal/schema"
)

func f64(v float64) *float64 { return &v }

var (
	idAT    = schema.Simple("AT")
	idMO    = schema.Simple("MO")
	idDCK   = schema.Simple("DCK")
	idDATE  = schema.Simple("DATE")
	idNAME  = schema.Simple("NAME")
	idEXTRA = schema.Simple("EXTRA")
)

// model writes a data model directory with the given code tables.
func model(t *testing.T, tables map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	ct := filepath.Join(dir, schema.CodeTablesDir)
	require.NoError(t, os.MkdirAll(ct, 0o755))
	for name, body := range tables {
		require.NoError(t, os.WriteFile(filepath.Join(ct, name+".json"), []byte(body), 0o644))
	}
	return dir
}

func testSchema() *schema.Schema {
	return schema.New(map[schema.ElementID]schema.Attrs{
		idAT:   {ColumnType: schema.TypeFloat64, ValidMin: f64(-10), ValidMax: f64(40)},
		idMO:   {ColumnType: schema.TypeInt8, ValidMin: f64(1), ValidMax: f64(12)},
		idDCK:  {ColumnType: schema.TypeKey, CodeTable: "deck"},
		idDATE: {ColumnType: schema.TypeDatetime},
		idNAME: {ColumnType: schema.TypeStr},
	})
}

func testData(t *testing.T, s *schema.Schema) *frame.Frame {
	t.Helper()
	raw := frame.New(7).
		MustAdd(idEXTRA, frame.Raw("a", "b", "c", "d", "e", "f", "g")).
		MustAdd(idAT, frame.Raw("12.5", "50", "", "-10", "x", "40", "-11")).
		MustAdd(idMO, frame.Raw("1", " ", "", "12", "13", "6", "0")).
		MustAdd(idDCK, frame.RawNA([]string{"1", "9", "", "2", "3", "3", "4"}, 2)).
		MustAdd(idDATE, frame.Raw("20240229", "20240230", "", "20200101", "2020", "19991231", "20000101")).
		MustAdd(idNAME, frame.Raw("n", "n", "n", "n", "n", "n", "n"))
	f, err := coerce.Frame(raw, s)
	require.NoError(t, err)
	return f
}

func newEngine(t *testing.T, dir string, rec diag.Reporter, workers int) *Engine {
	t.Helper()
	e, err := New(Config{
		Schema:  testSchema(),
		Model:   schema.Source{Path: dir},
		Report:  rec,
		Workers: workers,
	})
	require.NoError(t, err)
	return e
}

// cells renders a mask column as true/false/nil per row.
func cells(t *testing.T, m *mask.Mask, id schema.ElementID) []any {
	t.Helper()
	c, ok := m.Column(id)
	require.True(t, ok, "column %s", id)
	out := make([]any, c.Len())
	for i := range out {
		if v, set := c.Get(i); set {
			out[i] = v
		}
	}
	return out
}

/*
TestValidateBlock verifies routing by type, unset columns for everything not
validated, and that output keeps the input's row count and column order.
*/
func TestValidateBlock(t *testing.T) {
	t.Parallel()
	dir := model(t, map[string]string{"deck": `{"1": "a", "2": "b", "3": "c"}`})
	s := testSchema()
	f := testData(t, s)

	out, err := newEngine(t, dir, nil, 1).ValidateFrame(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Equal(t, f.Rows(), out.Rows())
	assert.Equal(t, f.Columns(), out.IDs())

	assert.Equal(t, []any{true, false, true, true, true, true, false}, cells(t, out, idAT))
	assert.Equal(t, []any{true, false, true, true, false, true, false}, cells(t, out, idMO))
	assert.Equal(t, []any{true, false, true, true, true, true, false}, cells(t, out, idDCK))
	assert.Equal(t, []any{true, false, false, true, false, true, true}, cells(t, out, idDATE))

	unset := []any{nil, nil, nil, nil, nil, nil, nil}
	assert.Equal(t, unset, cells(t, out, idNAME))
	assert.Equal(t, unset, cells(t, out, idEXTRA))
}

/*
TestMergeLaw verifies output = engine AND upstream for validated columns.
*/
func TestMergeLaw(t *testing.T) {
	t.Parallel()
	dir := model(t, map[string]string{"deck": `{"1": "a", "2": "b", "3": "c"}`})
	s := testSchema()
	f := testData(t, s)
	e := newEngine(t, dir, nil, 1)

	engineOnly, err := e.ValidateFrame(context.Background(), f, nil)
	require.NoError(t, err)

	upVals := []bool{false, true, false, true, false, true, false}
	up := mask.New(f.Rows(), nil)
	for _, id := range []schema.ElementID{idAT, idMO, idDCK, idDATE, idNAME} {
		require.NoError(t, up.Put(id, mask.Bools(upVals...)))
	}
	merged, err := e.ValidateFrame(context.Background(), f, up)
	require.NoError(t, err)

	for _, id := range []schema.ElementID{idAT, idMO, idDCK, idDATE} {
		eng := cells(t, engineOnly, id)
		got := cells(t, merged, id)
		for i := range got {
			assert.Equal(t, eng[i].(bool) && upVals[i], got[i], "%s row %d", id, i)
		}
	}
	assert.Equal(t, []any{nil, nil, nil, nil, nil, nil, nil}, cells(t, merged, idNAME))
}

/*
TestChunkedEquivalence verifies that any chunking, with or without workers,
yields the block mask row for row and keeps chunk boundaries and the chunk
size.
*/
func TestChunkedEquivalence(t *testing.T) {
	t.Parallel()
	dir := model(t, map[string]string{"deck": `{"1": "a", "2": "b", "3": "c"}`})
	s := testSchema()
	f := testData(t, s)

	whole, err := newEngine(t, dir, nil, 1).ValidateFrame(context.Background(), f, nil)
	require.NoError(t, err)

	for _, size := range []int{1, 2, 3, 7, 100} {
		for _, workers := range []int{1, 3} {
			e := newEngine(t, dir, nil, workers)
			out, err := e.Validate(context.Background(), Chunks(frame.Split(f, size)), UpstreamBlock(mask.New(f.Rows(), nil)))
			require.NoError(t, err)
			require.Nil(t, out.Block)
			assert.Equal(t, size, out.Chunks.ChunkSize())

			var chunks []*mask.Mask
			for {
				m, err := out.Chunks.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				chunks = append(chunks, m)
			}
			offset := 0
			for _, c := range chunks {
				assert.Equal(t, offset, c.Offset)
				assert.LessOrEqual(t, c.Rows(), size)
				offset += c.Rows()
			}
			assert.Equal(t, f.Rows(), offset)

			got := chunks[0]
			for _, c := range chunks[1:] {
				got, err = mask.Concat(got, c)
				require.NoError(t, err)
			}
			for _, id := range whole.IDs() {
				assert.Equal(t, cells(t, whole, id), cells(t, got, id), "size %d workers %d column %s", size, workers, id)
			}
		}
	}
}

func TestBoundWarningOncePerCall(t *testing.T) {
	t.Parallel()
	dir := model(t, nil)
	s := schema.New(map[schema.ElementID]schema.Attrs{idAT: {ColumnType: schema.TypeFloat64}})
	raw := frame.New(4).MustAdd(idAT, frame.Raw("1", "2", "3", "4"))
	f, err := coerce.Frame(raw, s)
	require.NoError(t, err)

	rec := &diag.Recorder{}
	e, err := New(Config{Schema: s, Model: schema.Source{Path: dir}, Report: rec})
	require.NoError(t, err)
	out, err := e.Validate(context.Background(), Chunks(frame.Split(f, 1)), Upstream{})
	require.NoError(t, err)
	m, err := mask.Collect(out.Chunks)
	require.NoError(t, err)
	assert.Equal(t, []any{true, true, true, true}, cells(t, m, idAT))
	assert.Equal(t, 1, rec.Count(diag.LevelWarn))

	now := time.Now()
	r := out.Tally.Run("m", now, now)
	assert.Equal(t, int64(4), r.Chunks)
}

/*
TestWhitespaceProperty verifies a blank numeric value reads as zero and
fails a range excluding zero, while an empty value is missing and passes.
*/
func TestWhitespaceProperty(t *testing.T) {
	t.Parallel()
	dir := model(t, nil)
	s := schema.New(map[schema.ElementID]schema.Attrs{idMO: {ColumnType: schema.TypeInt8, ValidMin: f64(1), ValidMax: f64(12)}})
	f, err := coerce.Frame(frame.New(2).MustAdd(idMO, frame.Raw(" ", "")), s)
	require.NoError(t, err)

	e, err := New(Config{Schema: s, Model: schema.Source{Path: dir}})
	require.NoError(t, err)
	out, err := e.ValidateFrame(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{false, true}, cells(t, out, idMO))
}

/*
TestSupplementalPass verifies that coded elements of the supplemental
section use the supplemental code tables, with alias columns qualified by
that section, while primary coded elements keep the primary tables.
*/
func TestSupplementalPass(t *testing.T) {
	t.Parallel()
	primary := model(t, map[string]string{"deck": `{"1": "a"}`})
	supp := model(t, map[string]string{
		"deck": `{"_keys": {"ID": ["ID", "KIND"]}, "7": {"x": 1}}`,
	})
	core, c99 := schema.Qualified("core", "DCK"), schema.Qualified("c99", "ID")
	kind := schema.Qualified("c99", "KIND")
	s := schema.New(map[schema.ElementID]schema.Attrs{
		core: {ColumnType: schema.TypeKey, CodeTable: "deck"},
		c99:  {ColumnType: schema.TypeKey, CodeTable: "deck"},
		kind: {ColumnType: schema.TypeStr},
	})
	raw := frame.New(3).
		MustAdd(core, frame.Raw("1", "7", "1")).
		MustAdd(c99, frame.Raw("7", "7", "1")).
		MustAdd(kind, frame.Raw("x", "y", "x"))
	f, err := coerce.Frame(raw, s)
	require.NoError(t, err)

	e, err := New(Config{
		Schema:       s,
		Model:        schema.Source{Path: primary},
		Supplemental: &Supplemental{Section: "c99", Model: schema.Source{Path: supp}},
	})
	require.NoError(t, err)
	out, err := e.ValidateFrame(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{true, false, true}, cells(t, out, core))
	assert.Equal(t, []any{true, false, false}, cells(t, out, c99))
}

/*
TestSetupFailures verifies fail-fast configuration and input shape errors.
*/
func TestSetupFailures(t *testing.T) {
	t.Parallel()
	s := testSchema()

	_, err := New(Config{Schema: s})
	assert.ErrorIs(t, err, ErrNoSchema)
	_, err = New(Config{Model: schema.Source{Name: "imma1"}})
	assert.ErrorIs(t, err, ErrNoSchema)
	_, err = New(Config{Schema: s, Model: schema.Source{Name: "imma1"}, Supplemental: &Supplemental{Section: "c99"}})
	assert.ErrorIs(t, err, ErrNoSupplementalSchema)
	_, err = New(Config{Schema: s, Model: schema.Source{Name: "imma1"}, Supplemental: &Supplemental{Model: schema.Source{Name: "x"}}})
	assert.Error(t, err)

	e, err := New(Config{Schema: s, Model: schema.Source{Name: "imma1"}})
	require.NoError(t, err)
	_, err = e.Validate(context.Background(), Input{}, Upstream{})
	assert.ErrorIs(t, err, ErrInputShape)
	f := frame.New(0)
	_, err = e.Validate(context.Background(), Input{block: f, chunks: frame.Split(f, 1)}, Upstream{})
	assert.ErrorIs(t, err, ErrInputShape)
}

/*
TestUpstreamMisalignment verifies that upstream chunks must match the data
chunks row for row.
*/
func TestUpstreamMisalignment(t *testing.T) {
	t.Parallel()
	dir := model(t, nil)
	s := testSchema()
	f := testData(t, s)
	e := newEngine(t, dir, nil, 1)

	up := mask.New(f.Rows(), nil)
	out, err := e.Validate(context.Background(), Chunks(frame.Split(f, 3)), UpstreamChunks(mask.Split(up, 2)))
	require.NoError(t, err)
	_, err = out.Chunks.Next()
	assert.Error(t, err)

	_, err = e.ValidateFrame(context.Background(), f, mask.New(2, nil))
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	dir := model(t, nil)
	s := testSchema()
	f := testData(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine(t, dir, nil, 2).ValidateFrame(ctx, f, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
