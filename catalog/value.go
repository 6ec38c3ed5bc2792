package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ValueKind tells which field of a Value is set.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueInt
	ValueText
	ValueBool
)

// Value is a single typed cell: NULL, an integer, a string or a boolean.
// Value 表示一个单元格的值
type Value struct {
	kind ValueKind
	i    int64
	s    string
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: ValueInt, i: v} }

// Text returns a string value.
func Text(v string) Value { return Value{kind: ValueText, s: v} }

// Bool returns a boolean value.
func Bool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{kind: ValueBool, i: i}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == ValueNull }

// Int64 returns the integer held by v, or 0 for other kinds.
func (v Value) Int64() int64 {
	if v.kind != ValueInt {
		return 0
	}
	return v.i
}

// Str returns the string held by v, or "" for other kinds.
func (v Value) Str() string { return v.s }

// Boolean returns the boolean held by v, or false for other kinds.
func (v Value) Boolean() bool { return v.kind == ValueBool && v.i != 0 }

// Compare orders two values of the same kind. ok is false when either value
// is NULL or the kinds differ.
func (v Value) Compare(o Value) (c int, ok bool) {
	if v.kind != o.kind || v.kind == ValueNull {
		return 0, false
	}
	switch v.kind {
	case ValueText:
		return strings.Compare(v.s, o.s), true
	default:
		switch {
		case v.i < o.i:
			return -1, true
		case v.i > o.i:
			return 1, true
		}
		return 0, true
	}
}

// Equal reports whether two values are the same kind and hold the same data.
func (v Value) Equal(o Value) bool {
	return v == o
}

// String returns the value the way it is shown in query results.
func (v Value) String() string {
	switch v.kind {
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueText:
		return v.s
	case ValueBool:
		return strconv.FormatBool(v.Boolean())
	}
	return "NULL"
}

// Convert coerces v to a column type. NULL stays NULL. Integers are accepted
// for booleans (0 or 1) and any literal can be stored in a text column in its
// string form.
// 把字面量转换为列类型对应的值
func (v Value) Convert(typ Type) (Value, error) {
	if v.kind == ValueNull {
		return v, nil
	}
	switch typ {
	case TypeInt:
		if v.kind == ValueInt {
			return v, nil
		}
	case TypeText:
		if v.kind == ValueText {
			return v, nil
		}
		return Text(v.String()), nil
	case TypeBool:
		switch {
		case v.kind == ValueBool:
			return v, nil
		case v.kind == ValueInt && (v.i == 0 || v.i == 1):
			return Bool(v.i == 1), nil
		}
	}
	return Value{}, errors.Wrapf(ErrTypeMismatch, "cannot store %s in %s column", v.describe(), typ)
}

func (v Value) describe() string {
	switch v.kind {
	case ValueText:
		return fmt.Sprintf("%q", v.s)
	}
	return v.String()
}

// MarshalJSON encodes the value as a JSON null, number, string or boolean.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case ValueText:
		return json.Marshal(v.s)
	case ValueBool:
		return []byte(strconv.FormatBool(v.Boolean())), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a value written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Null()
	case bytes.Equal(data, []byte("true")):
		*v = Bool(true)
	case bytes.Equal(data, []byte("false")):
		*v = Bool(false)
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decode text value")
		}
		*v = Text(s)
	default:
		i, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "decode value %s", data)
		}
		*v = Int(i)
	}
	return nil
}

// Row is the ordered list of values of a table row.
type Row []Value

// EncodeRow returns the stored form of a row.
func EncodeRow(row Row) ([]byte, error) {
	data, err := json.Marshal(row)
	return data, errors.Wrap(err, "encode row")
}

// DecodeRow parses a row produced by EncodeRow.
func DecodeRow(data []byte) (Row, error) {
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, errors.Wrap(err, "decode row")
	}
	return row, nil
}
