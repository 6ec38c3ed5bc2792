package bptree_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmszg/bptree"
)

func collect[K any, V any](t *bptree.Tree[K, V]) ([]K, []V) {
	var keys []K
	var values []V
	for k, v := range t.Scan() {
		keys = append(keys, k)
		values = append(values, v)
	}
	return keys, values
}

// Ensure that the degree-3 walk through insert, split, search and remove
// produces the expected contents.
func TestTree_InsertSearchRemove(t *testing.T) {
	tr := bptree.NewOrdered[int, int](&bptree.Options{Degree: 3})
	for _, k := range []int{10, 20, 5, 6, 12, 30, 7, 17} {
		tr.Insert(k, k*10)
	}
	require.NoError(t, tr.Check())
	assert.Equal(t, 8, tr.Len())

	v, ok := tr.Search(12)
	require.True(t, ok)
	assert.Equal(t, 120, v)

	_, ok = tr.Search(15)
	assert.False(t, ok)

	keys, values := collect(tr)
	assert.Equal(t, []int{5, 6, 7, 10, 12, 17, 20, 30}, keys)
	assert.Equal(t, []int{50, 60, 70, 100, 120, 170, 200, 300}, values)

	assert.True(t, tr.Remove(6))
	assert.True(t, tr.Remove(12))
	keys, _ = collect(tr)
	assert.Equal(t, []int{5, 7, 10, 17, 20, 30}, keys)
	require.NoError(t, tr.Check())
}

func TestTree_EmptyTree(t *testing.T) {
	tr := bptree.NewOrdered[string, int](nil)
	assert.Equal(t, bptree.DefaultDegree, tr.Degree())
	assert.Equal(t, 0, tr.Len())

	_, ok := tr.Search("missing")
	assert.False(t, ok)
	assert.False(t, tr.Remove("missing"))

	keys, _ := collect(tr)
	assert.Empty(t, keys)
	require.NoError(t, tr.Check())
}

func TestTree_InsertOverwrites(t *testing.T) {
	tr := bptree.NewOrdered[int, string](&bptree.Options{Degree: 2})
	for i := 0; i < 20; i++ {
		tr.Insert(i, "old")
	}
	tr.Insert(7, "new")

	v, ok := tr.Search(7)
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 20, tr.Len())
	require.NoError(t, tr.Check())
}

func TestTree_RemoveMissingKeepsTree(t *testing.T) {
	tr := bptree.NewOrdered[int, int](&bptree.Options{Degree: 2})
	for i := 0; i < 10; i += 2 {
		tr.Insert(i, i)
	}
	assert.False(t, tr.Remove(3))
	assert.Equal(t, 5, tr.Len())
	require.NoError(t, tr.Check())
}

func TestNew_DegreeValidation(t *testing.T) {
	assert.Panics(t, func() {
		bptree.NewOrdered[int, int](&bptree.Options{Degree: 1})
	})
	assert.Panics(t, func() {
		bptree.New[int, int](nil, nil)
	})
	assert.Equal(t, bptree.MinDegree, bptree.NewOrdered[int, int](&bptree.Options{Degree: bptree.MinDegree}).Degree())
}

func TestNew_CustomComparator(t *testing.T) {
	// Descending order.
	tr := bptree.New[int, struct{}](func(a, b int) int { return b - a }, &bptree.Options{Degree: 2})
	for i := 0; i < 10; i++ {
		tr.Insert(i, struct{}{})
	}
	keys, _ := collect(tr)
	assert.Equal(t, []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, keys)
	require.NoError(t, tr.Check())
}

// Ensure that splits grow the tree at the root and that draining it collapses
// the root again.
func TestTree_GrowAndShrink(t *testing.T) {
	tr := bptree.NewOrdered[int, int](&bptree.Options{Degree: 2})
	for i := 1; i <= 4; i++ {
		tr.Insert(i, i)
	}
	stats := tr.Stats()
	assert.Equal(t, int64(1), stats.Split)
	assert.Equal(t, int64(1), stats.Grow)

	// [1 2] [3 4] -> removing 1 and 2 borrows 3 from the right sibling.
	require.True(t, tr.Remove(1))
	require.True(t, tr.Remove(2))
	require.NoError(t, tr.Check())
	stats = tr.Stats()
	assert.Equal(t, int64(1), stats.Borrow)

	// [3] [4] -> removing 3 merges the leaves and collapses the root.
	require.True(t, tr.Remove(3))
	require.NoError(t, tr.Check())
	stats = tr.Stats()
	assert.Equal(t, int64(1), stats.Merge)
	assert.Equal(t, int64(1), stats.Shrink)

	keys, _ := collect(tr)
	assert.Equal(t, []int{4}, keys)
}

// Ensure that ascending and descending bulk loads followed by removals in
// several orders keep every invariant.
func TestTree_BulkInsertRemove(t *testing.T) {
	orders := map[string]func(n int) []int{
		"ascending": func(n int) []int {
			s := make([]int, n)
			for i := range s {
				s[i] = i
			}
			return s
		},
		"descending": func(n int) []int {
			s := make([]int, n)
			for i := range s {
				s[i] = n - 1 - i
			}
			return s
		},
		"interleaved": func(n int) []int {
			s := make([]int, 0, n)
			for i := 0; i < n; i += 2 {
				s = append(s, i)
			}
			for i := 1; i < n; i += 2 {
				s = append(s, i)
			}
			return s
		},
	}

	for _, degree := range []int{2, 3, 4, 16} {
		for insertName, insertOrder := range orders {
			for removeName, removeOrder := range orders {
				name := fmt.Sprintf("D%d/%s/%s", degree, insertName, removeName)
				t.Run(name, func(t *testing.T) {
					const n = 500
					tr := bptree.NewOrdered[int, int](&bptree.Options{Degree: degree})
					for _, k := range insertOrder(n) {
						tr.Insert(k, -k)
					}
					require.NoError(t, tr.Check())
					require.Equal(t, n, tr.Len())

					for i, k := range removeOrder(n) {
						require.True(t, tr.Remove(k), "remove %d", k)
						if i%50 == 0 {
							require.NoError(t, tr.Check())
						}
					}
					require.NoError(t, tr.Check())
					require.Equal(t, 0, tr.Len())
				})
			}
		}
	}
}

func TestTree_Dump(t *testing.T) {
	tr := bptree.NewOrdered[int, int](&bptree.Options{Degree: 2})
	for i := 1; i <= 4; i++ {
		tr.Insert(i, i*10)
	}

	var buf bytes.Buffer
	require.NoError(t, tr.Dump(&buf))
	assert.Equal(t, "B+ Tree Structure:\n"+
		"Internal: 3\n"+
		"  Leaf: 1(10) 2(20)\n"+
		"  Leaf: 3(30) 4(40)\n"+
		"Leaf sequence: 1 2 | 3 4\n", buf.String())
}
