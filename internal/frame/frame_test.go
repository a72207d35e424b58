package frame

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obsmask/internal/schema"
)

func sample() *Frame {
	f := New(5)
	f.MustAdd(schema.Simple("ID"), RawNA([]string{"a", "b", "", "d", "e"}, 2))
	f.MustAdd(schema.Qualified("c1", "SST"), &Column{
		Type:    schema.TypeFloat64,
		Floats:  []float64{1.5, math.NaN(), 3, 4, 5},
		Missing: nil,
	})
	return f
}

/*
TestAddRejectsLengthMismatch verifies that a column of the wrong length is
refused.
*/
func TestAddRejectsLengthMismatch(t *testing.T) {
	f := New(3)
	err := f.Add(schema.Simple("x"), Raw("1", "2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 2 rows")
}

/*
TestColumnMissingAndFloat verifies that both the bitmap and NaN count as
missing and that Float refuses missing rows.
*/
func TestColumnMissingAndFloat(t *testing.T) {
	f := sample()
	id, _ := f.Column(schema.Simple("ID"))
	assert.True(t, id.IsMissing(2))
	assert.False(t, id.IsMissing(0))

	sst, _ := f.Column(schema.Qualified("c1", "SST"))
	assert.True(t, sst.IsMissing(1))
	v, ok := sst.Float(0)
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
	_, ok = sst.Float(1)
	assert.False(t, ok)
}

/*
TestFormat verifies the textual key rendering for each storage class.
*/
func TestFormat(t *testing.T) {
	ints := &Column{Type: schema.TypeInt16, Ints: []int64{2020}}
	s, err := ints.Format(0, "")
	require.NoError(t, err)
	assert.Equal(t, "2020", s)

	floats := &Column{Type: schema.TypeFloat64, Floats: []float64{1, 2.5}}
	s, _ = floats.Format(0, "")
	assert.Equal(t, "1", s)
	s, _ = floats.Format(1, "")
	assert.Equal(t, "2.5", s)

	_, err = RawNA([]string{""}, 0).Format(0, "")
	assert.Error(t, err)
}

/*
TestSplitCollectRoundTrip verifies that splitting a frame into chunks and
collecting them back preserves every row, offset, and column order.
*/
func TestSplitCollectRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, 5, 10} {
		r := Split(sample(), size)
		var offsets []int
		var chunks []*Frame
		for {
			c, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			offsets = append(offsets, c.Offset)
			chunks = append(chunks, c)
		}
		require.NotEmpty(t, chunks, "size=%d", size)

		got, err := Collect(Split(sample(), size))
		require.NoError(t, err)
		assert.Equal(t, 5, got.Rows(), "size=%d", size)
		assert.Equal(t, sample().Columns(), got.Columns())

		col, _ := got.Column(schema.Simple("ID"))
		assert.Equal(t, []string{"a", "b", "", "d", "e"}, col.Strings)
		assert.True(t, col.IsMissing(2))
		assert.Equal(t, 0, offsets[0])
	}
}

/*
TestSplitEmptyFrame verifies that an empty frame yields exactly one empty
chunk.
*/
func TestSplitEmptyFrame(t *testing.T) {
	r := Split(New(0), 10)
	c, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Rows())
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

/*
TestConcatColumnMismatch verifies that frames with different columns cannot
be concatenated.
*/
func TestConcatColumnMismatch(t *testing.T) {
	a := New(1).MustAdd(schema.Simple("a"), Raw("1"))
	b := New(1).MustAdd(schema.Simple("b"), Raw("1"))
	_, err := Concat(a, b)
	assert.Error(t, err)
}
