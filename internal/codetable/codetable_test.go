package codetable

import (
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsmask/internal/schema"
)

func writeTable(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := Path(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

/*
TestParse_FlatAndNested verifies that flat tables yield one key per code and
nested objects yield one composite key per leaf, skipping metadata keys.
*/
func TestParse_FlatAndNested(t *testing.T) {
	t.Parallel()
	flat, err := Parse([]byte(`{"1": "ship", "2": "buoy", "_note": "x"}`))
	require.NoError(t, err)
	keys := flat.Keys().Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"1", "2"}, keys)

	nested, err := Parse([]byte(`{
	  "_keys": {"YEAR": ["YEAR", "MONTH"]},
	  "2020": {"01": "January", "02": {"a": 1, "b": 2}},
	  "2021": {}
	}`))
	require.NoError(t, err)
	assert.True(t, nested.Contains("2020∿01"))
	assert.True(t, nested.Contains("2020∿02∿a"))
	assert.True(t, nested.Contains("2021"))
	assert.False(t, nested.Contains("2020"))
	assert.Equal(t, 4, nested.Keys().Len())
}

/*
TestAlias verifies both entry forms of "_keys" and how they qualify against
the element's section.
*/
func TestAlias(t *testing.T) {
	t.Parallel()
	tbl, err := Parse([]byte(`{
	  "_keys": {"YEAR": ["YEAR", ["core", "MONTH"]], "c1:ID": ["ID"]},
	  "2020": {"01": 1}
	}`))
	require.NoError(t, err)

	cols, ok := tbl.Alias(schema.Qualified("c99", "YEAR"))
	require.True(t, ok)
	require.Len(t, cols, 2)
	assert.Equal(t, schema.Qualified("c99", "YEAR"), cols[0].Qualify("c99"))
	assert.Equal(t, schema.Qualified("core", "MONTH"), cols[1].Qualify("c99"))
	assert.Equal(t, schema.Simple("YEAR"), cols[0].Qualify(""))

	_, ok = tbl.Alias(schema.Qualified("c1", "ID"))
	assert.True(t, ok)
	_, ok = tbl.Alias(schema.Simple("MONTH"))
	assert.False(t, ok)
}

/*
TestParse_Errors verifies malformed documents and alias declarations.
*/
func TestParse_Errors(t *testing.T) {
	t.Parallel()
	for name, body := range map[string]string{
		"not json":     `{`,
		"array":        `[1, 2]`,
		"keys object":  `{"_keys": ["a"]}`,
		"empty alias":  `{"_keys": {"A": []}}`,
		"pair length":  `{"_keys": {"A": [["a"]]}}`,
		"pair strings": `{"_keys": {"A": [["a", 1]]}}`,
		"entry type":   `{"_keys": {"A": [3]}}`,
	} {
		_, err := Parse([]byte(body))
		assert.Error(t, err, name)
	}
}

/*
TestLoad verifies file loading and the not-found sentinel.
*/
func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeTable(t, dir, "deck", `{"7": "x", "8": "y"}`)

	tbl, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "deck", tbl.Name)
	assert.True(t, tbl.Contains("7"))

	_, err = Load(Path(dir, "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

/*
TestKeySet verifies exact membership and duplicate handling.
*/
func TestKeySet(t *testing.T) {
	t.Parallel()
	s := NewKeySet()
	s.Add("a")
	s.Add("a")
	s.Add(JoinKey([]string{"a", "b"}))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a∿b"))
	assert.False(t, s.Contains("b"))
}

/*
TestCache verifies that concurrent lookups of one table read it once, that
sections are cached separately, and that failures are not cached.
*/
func TestCache(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTable(t, dir, "deck", `{"7": "x"}`)

	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl, err := c.Get("", dir, "deck")
			assert.NoError(t, err)
			assert.True(t, tbl.Contains("7"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Loads())

	_, err := c.Get("c99", dir, "deck")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Loads())

	_, err = c.Get("", dir, "late")
	assert.ErrorIs(t, err, ErrNotFound)
	writeTable(t, dir, "late", `{"1": 1}`)
	_, err = c.Get("", dir, "late")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Loads())

}
