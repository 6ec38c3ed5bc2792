package bptree_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmszg/bptree"
)

func newEvenTree(t *testing.T, n int) *bptree.Tree[int, string] {
	t.Helper()
	tr := bptree.NewOrdered[int, string](&bptree.Options{Degree: 2})
	for i := 0; i < n; i++ {
		tr.Insert(i*2, "v")
	}
	return tr
}

func TestCursor_FirstNext(t *testing.T) {
	tr := newEvenTree(t, 50)
	c := tr.Cursor()

	var keys []int
	for k, _, ok := c.First(); ok; k, _, ok = c.Next() {
		keys = append(keys, k)
	}
	require.Len(t, keys, 50)
	for i, k := range keys {
		assert.Equal(t, i*2, k)
	}

	// An exhausted cursor stays exhausted.
	_, _, ok := c.Next()
	assert.False(t, ok)
}

func TestCursor_Last(t *testing.T) {
	tr := newEvenTree(t, 50)
	c := tr.Cursor()

	k, _, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, 98, k)

	_, _, ok = c.Next()
	assert.False(t, ok)
}

func TestCursor_Seek(t *testing.T) {
	tr := newEvenTree(t, 50)

	for _, tc := range []struct {
		seek int
		want int
		ok   bool
	}{
		{seek: -5, want: 0, ok: true},
		{seek: 0, want: 0, ok: true},
		{seek: 7, want: 8, ok: true},
		{seek: 8, want: 8, ok: true},
		{seek: 98, want: 98, ok: true},
		{seek: 99, ok: false},
	} {
		k, _, ok := tr.Cursor().Seek(tc.seek)
		assert.Equal(t, tc.ok, ok, "seek %d", tc.seek)
		if tc.ok {
			assert.Equal(t, tc.want, k, "seek %d", tc.seek)
		}
	}
}

func TestCursor_EmptyTree(t *testing.T) {
	c := bptree.NewOrdered[int, int](nil).Cursor()
	_, _, ok := c.First()
	assert.False(t, ok)
	_, _, ok = c.Last()
	assert.False(t, ok)
	_, _, ok = c.Seek(1)
	assert.False(t, ok)
	_, _, ok = c.Next()
	assert.False(t, ok)
}

func TestCursor_NextBeforePosition(t *testing.T) {
	_, _, ok := newEvenTree(t, 5).Cursor().Next()
	assert.False(t, ok)
}

// Ensure that a cursor keeps moving forward when the leaf it copied is split
// and merged between calls.
func TestCursor_SurvivesStructuralChanges(t *testing.T) {
	tr := bptree.NewOrdered[int, int](&bptree.Options{Degree: 2})
	for i := 0; i < 100; i++ {
		tr.Insert(i, i)
	}

	c := tr.Cursor()
	k, _, ok := c.First()
	require.True(t, ok)
	require.Equal(t, 0, k)

	// Remove everything below 60 so the cursor's leaf is merged away.
	for i := 1; i < 60; i++ {
		require.True(t, tr.Remove(i))
	}
	// Insert more keys so leaves further right split.
	for i := 100; i < 150; i++ {
		tr.Insert(i, i)
	}

	last := k
	count := 1
	for k, _, ok = c.Next(); ok; k, _, ok = c.Next() {
		require.Greater(t, k, last)
		last = k
		count++
	}
	assert.Equal(t, 149, last)
	assert.LessOrEqual(t, count, 150)
	require.NoError(t, tr.Check())
}

func TestTree_ScanFrom(t *testing.T) {
	tr := newEvenTree(t, 20)
	var keys []int
	for k := range tr.ScanFrom(31) {
		keys = append(keys, k)
	}
	assert.Equal(t, []int{32, 34, 36, 38}, keys)
}

func TestTree_ScanBreak(t *testing.T) {
	tr := newEvenTree(t, 20)
	var keys []int
	for k := range tr.Scan() {
		if k > 4 {
			break
		}
		keys = append(keys, k)
	}
	assert.Equal(t, []int{0, 2, 4}, keys)
}

func TestTree_ForEach(t *testing.T) {
	tr := newEvenTree(t, 20)

	var n int
	require.NoError(t, tr.ForEach(func(k int, v string) error {
		n++
		return nil
	}))
	assert.Equal(t, 20, n)

	stop := errors.New("stop")
	n = 0
	err := tr.ForEach(func(k int, v string) error {
		n++
		if k == 10 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 6, n)
}
