package catalog_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmszg/bptree"
	"github.com/jmszg/bptree/catalog"
	"github.com/jmszg/bptree/rowstore"
)

func TestIndex_IntKeys(t *testing.T) {
	ix, err := catalog.NewIndex("shop", "users", "id", catalog.KindInt, &bptree.Options{Degree: 2})
	require.NoError(t, err)
	assert.Equal(t, "shop.users.id", ix.Name())

	for i := int64(1); i <= 20; i++ {
		require.NoError(t, ix.Insert(catalog.Int(i*10), rowstore.Locator{Slot: uint32(i)}))
	}
	assert.Equal(t, 20, ix.Len())

	loc, ok, err := ix.Search(catalog.Int(70))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(7), loc.Slot)

	last, loc, ok := ix.Last()
	require.True(t, ok)
	assert.Equal(t, catalog.Int(200), last)
	assert.Equal(t, uint32(20), loc.Slot)

	seq, err := ix.Scan(catalog.Int(175))
	require.NoError(t, err)
	var keys []int64
	for k := range seq {
		keys = append(keys, k.Int64())
	}
	assert.Equal(t, []int64{180, 190, 200}, keys)

	removed, err := ix.Remove(catalog.Int(70))
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, ix.Check())

	var buf bytes.Buffer
	require.NoError(t, ix.Dump(&buf))
	assert.Contains(t, buf.String(), "Leaf sequence:")
}

func TestIndex_KeyKindMismatch(t *testing.T) {
	ix, err := catalog.NewIndex("shop", "users", "email", catalog.KindText, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, ix.Insert(catalog.Int(1), rowstore.Locator{}), catalog.ErrKeyKind)
	_, _, err = ix.Search(catalog.Null())
	assert.ErrorIs(t, err, catalog.ErrKeyKind)
	_, err = ix.Remove(catalog.Bool(true))
	assert.ErrorIs(t, err, catalog.ErrKeyKind)
	_, err = ix.Scan(catalog.Int(3))
	assert.ErrorIs(t, err, catalog.ErrKeyKind)

	require.NoError(t, ix.Insert(catalog.Text("b@x"), rowstore.Locator{Slot: 2}))
	require.NoError(t, ix.Insert(catalog.Text("a@x"), rowstore.Locator{Slot: 1}))
	seq, err := ix.Scan(catalog.Null())
	require.NoError(t, err)
	var keys []string
	for k := range seq {
		keys = append(keys, k.Str())
	}
	assert.Equal(t, []string{"a@x", "b@x"}, keys)
}

func TestRegistry(t *testing.T) {
	r := catalog.NewRegistry(&bptree.Options{Degree: 4}, nil)
	tbl := usersTable()

	for _, col := range tbl.Columns {
		if col.Indexed() {
			_, err := r.Create("shop", "users", col)
			require.NoError(t, err)
		}
	}
	_, err := r.Create("shop", "users", tbl.Columns[0])
	assert.ErrorIs(t, err, catalog.ErrIndexExists)
	_, err = r.Create("shop", "users", tbl.Columns[2])
	assert.ErrorIs(t, err, catalog.ErrUnindexable)

	ix, ok := r.Lookup("SHOP", "users", "ID")
	require.True(t, ok)
	assert.Equal(t, catalog.KindInt, ix.Kind())
	_, ok = r.Lookup("shop", "users", "active")
	assert.False(t, ok)

	indexes := r.Indexes("shop", "users")
	require.Len(t, indexes, 2)
	assert.Equal(t, "email", indexes[0].Column())
	assert.Equal(t, "id", indexes[1].Column())
	assert.Len(t, r.All(), 2)

	r.DropTable("Shop", "USERS")
	assert.Empty(t, r.Indexes("shop", "users"))
	assert.Empty(t, r.All())
	_, err = r.Create("shop", "users", tbl.Columns[0])
	require.NoError(t, err)

	r.DropDatabase("shop")
	assert.Empty(t, r.Indexes("shop", "users"))
}
