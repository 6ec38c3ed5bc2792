package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmszg/bptree/catalog"
)

func TestRow_EncodeDecode(t *testing.T) {
	row := catalog.Row{catalog.Int(-42), catalog.Text(`say "hi"`), catalog.Bool(true), catalog.Null()}
	data, err := catalog.EncodeRow(row)
	require.NoError(t, err)
	assert.Equal(t, `[-42,"say \"hi\"",true,null]`, string(data))

	got, err := catalog.DecodeRow(data)
	require.NoError(t, err)
	assert.Equal(t, row, got)

	_, err = catalog.DecodeRow([]byte(`[1.5]`))
	assert.Error(t, err)
}

func TestValue_Compare(t *testing.T) {
	c, ok := catalog.Int(1).Compare(catalog.Int(2))
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = catalog.Text("b").Compare(catalog.Text("a"))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = catalog.Int(1).Compare(catalog.Text("1"))
	assert.False(t, ok)
	_, ok = catalog.Null().Compare(catalog.Null())
	assert.False(t, ok)
}

func TestValue_Convert(t *testing.T) {
	v, err := catalog.Int(1).Convert(catalog.TypeBool)
	require.NoError(t, err)
	assert.Equal(t, catalog.Bool(true), v)

	v, err = catalog.Int(7).Convert(catalog.TypeText)
	require.NoError(t, err)
	assert.Equal(t, catalog.Text("7"), v)

	v, err = catalog.Null().Convert(catalog.TypeInt)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = catalog.Text("x").Convert(catalog.TypeInt)
	assert.ErrorIs(t, err, catalog.ErrTypeMismatch)
	_, err = catalog.Int(2).Convert(catalog.TypeBool)
	assert.ErrorIs(t, err, catalog.ErrTypeMismatch)
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "NULL", catalog.Null().String())
	assert.Equal(t, "12", catalog.Int(12).String())
	assert.Equal(t, "false", catalog.Bool(false).String())
	assert.Equal(t, "abc", catalog.Text("abc").String())
}
