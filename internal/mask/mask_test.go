package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsmask/internal/bitmap"
	"obsmask/internal/schema"
)

var (
	at  = schema.Simple("AT")
	dck = schema.Simple("DCK")
	raw = schema.Simple("RAW")
)

func values(c *Column) []any {
	out := make([]any, c.Len())
	for i := range out {
		v, set := c.Get(i)
		if set {
			out[i] = v
		}
	}
	return out
}

/*
TestMergeLaw verifies output = engine AND upstream on set cells: an upstream
false always wins, an upstream true never resurrects a false, and unset
upstream cells or absent upstream columns impose nothing.
*/
func TestMergeLaw(t *testing.T) {
	t.Parallel()
	m := New(4, []schema.ElementID{at, dck, raw})
	require.NoError(t, m.Put(at, Bools(true, true, false, false)))
	require.NoError(t, m.Put(dck, Bools(true, true, true, true)))

	up := New(4, []schema.ElementID{at, raw})
	require.NoError(t, up.Put(at, Bools(true, false, true, false)))
	upRaw := Unset(4)
	upRaw.Set.Set(0)
	require.NoError(t, up.Put(raw, upRaw))

	require.NoError(t, m.Merge(up))
	c, _ := m.Column(at)
	assert.Equal(t, []any{true, false, false, false}, values(c))
	c, _ = m.Column(dck)
	assert.Equal(t, []any{true, true, true, true}, values(c))
	c, _ = m.Column(raw)
	assert.Equal(t, []any{nil, nil, nil, nil}, values(c))
}

/*
TestMergeUnsetUpstreamCells verifies that empty upstream cells leave the
engine result unchanged.
*/
func TestMergeUnsetUpstreamCells(t *testing.T) {
	t.Parallel()
	m := New(3, nil)
	require.NoError(t, m.Put(at, Bools(true, false, true)))

	uc := Unset(3)
	uc.Set.Set(2) // row 2 upstream false, rows 0-1 unset
	up := New(3, nil)
	require.NoError(t, up.Put(at, uc))

	require.NoError(t, m.Merge(up))
	c, _ := m.Column(at)
	assert.Equal(t, []any{true, false, false}, values(c))

	assert.Error(t, m.Merge(New(2, nil)))
	assert.NoError(t, m.Merge(nil))
}

func TestCounts(t *testing.T) {
	t.Parallel()
	c := Bools(true, false, true)
	v, i, u := c.Counts()
	assert.Equal(t, []int{2, 1, 0}, []int{v, i, u})

	c = Unset(4)
	c.Set.Set(1)
	c.Value.Set(1)
	c.Value.Set(3) // value without set bit is ignored
	v, i, u = c.Counts()
	assert.Equal(t, []int{1, 0, 3}, []int{v, i, u})
}

/*
TestSplitCollect verifies chunking keeps offsets and that collecting the
chunks restores the mask.
*/
func TestSplitCollect(t *testing.T) {
	t.Parallel()
	m := New(5, []schema.ElementID{raw})
	require.NoError(t, m.Put(at, Bools(true, false, true, true, false)))

	r := Split(m, 2)
	assert.Equal(t, 2, r.ChunkSize())
	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, first.Offset)
	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, second.Offset)

	all, err := Collect(Split(m, 2))
	require.NoError(t, err)
	assert.Equal(t, m.IDs(), all.IDs())
	got, _ := all.Column(at)
	want, _ := m.Column(at)
	assert.Equal(t, values(want), values(got))
	rc, _ := all.Column(raw)
	assert.Equal(t, []any{nil, nil, nil, nil, nil}, values(rc))
}

func TestConcatMismatch(t *testing.T) {
	t.Parallel()
	_, err := Concat(New(1, []schema.ElementID{at}), New(1, []schema.ElementID{dck}))
	assert.Error(t, err)
	_, err = Concat(New(1, []schema.ElementID{at}), New(1, nil))
	assert.Error(t, err)
}

func TestPutLength(t *testing.T) {
	t.Parallel()
	m := New(2, nil)
	assert.Error(t, m.Put(at, Of(bitmap.New(3))))
}
