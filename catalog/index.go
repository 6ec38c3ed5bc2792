package catalog

import (
	"io"
	"iter"

	"github.com/pkg/errors"

	"github.com/jmszg/bptree"
	"github.com/jmszg/bptree/rowstore"
)

// Index is a unique index over one column. It maps column values to the
// locators of the rows holding them. The key kind is fixed at creation and
// keys of any other kind are rejected with ErrKeyKind.
// Index 是单列唯一索引，key类型在创建时确定
type Index struct {
	db     string
	table  string
	column string
	kind   KeyKind

	ints  *bptree.Tree[int64, rowstore.Locator]
	texts *bptree.Tree[string, rowstore.Locator]
}

// NewIndex creates an empty index on column for keys of the given kind.
func NewIndex(db, table, column string, kind KeyKind, options *bptree.Options) (*Index, error) {
	ix := &Index{db: db, table: table, column: column, kind: kind}
	switch kind {
	case KindInt:
		ix.ints = bptree.NewOrdered[int64, rowstore.Locator](options)
	case KindText:
		ix.texts = bptree.NewOrdered[string, rowstore.Locator](options)
	default:
		return nil, errors.Wrapf(ErrUnindexable, "key kind %s", kind)
	}
	return ix, nil
}

// Name returns the qualified name db.table.column of the index.
func (ix *Index) Name() string { return ix.db + "." + ix.table + "." + ix.column }

// Column returns the indexed column name.
func (ix *Index) Column() string { return ix.column }

// Kind returns the key kind of the index.
func (ix *Index) Kind() KeyKind { return ix.kind }

// check rejects keys whose kind does not match the index.
func (ix *Index) check(key Value) error {
	switch {
	case ix.kind == KindInt && key.Kind() == ValueInt:
		return nil
	case ix.kind == KindText && key.Kind() == ValueText:
		return nil
	}
	return errors.Wrapf(ErrKeyKind, "%s key for %s index %s", key.describe(), ix.kind, ix.Name())
}

// Insert maps key to loc, replacing any previous locator.
func (ix *Index) Insert(key Value, loc rowstore.Locator) error {
	if err := ix.check(key); err != nil {
		return err
	}
	if ix.kind == KindInt {
		ix.ints.Insert(key.Int64(), loc)
	} else {
		ix.texts.Insert(key.Str(), loc)
	}
	return nil
}

// Search returns the locator stored under key.
func (ix *Index) Search(key Value) (rowstore.Locator, bool, error) {
	if err := ix.check(key); err != nil {
		return rowstore.Locator{}, false, err
	}
	if ix.kind == KindInt {
		loc, ok := ix.ints.Search(key.Int64())
		return loc, ok, nil
	}
	loc, ok := ix.texts.Search(key.Str())
	return loc, ok, nil
}

// Remove deletes key and reports whether it was present.
func (ix *Index) Remove(key Value) (bool, error) {
	if err := ix.check(key); err != nil {
		return false, err
	}
	if ix.kind == KindInt {
		return ix.ints.Remove(key.Int64()), nil
	}
	return ix.texts.Remove(key.Str()), nil
}

// Scan returns the entries with a key >= from in ascending key order. A NULL
// from starts at the smallest key.
// 从from开始按key升序遍历索引
func (ix *Index) Scan(from Value) (iter.Seq2[Value, rowstore.Locator], error) {
	if !from.IsNull() {
		if err := ix.check(from); err != nil {
			return nil, err
		}
	}

	if ix.kind == KindInt {
		seq := ix.ints.Scan()
		if !from.IsNull() {
			seq = ix.ints.ScanFrom(from.Int64())
		}
		return func(yield func(Value, rowstore.Locator) bool) {
			for k, loc := range seq {
				if !yield(Int(k), loc) {
					return
				}
			}
		}, nil
	}

	seq := ix.texts.Scan()
	if !from.IsNull() {
		seq = ix.texts.ScanFrom(from.Str())
	}
	return func(yield func(Value, rowstore.Locator) bool) {
		for k, loc := range seq {
			if !yield(Text(k), loc) {
				return
			}
		}
	}, nil
}

// Last returns the largest key of the index.
func (ix *Index) Last() (Value, rowstore.Locator, bool) {
	if ix.kind == KindInt {
		k, loc, ok := ix.ints.Cursor().Last()
		if !ok {
			return Null(), loc, false
		}
		return Int(k), loc, true
	}
	k, loc, ok := ix.texts.Cursor().Last()
	if !ok {
		return Null(), loc, false
	}
	return Text(k), loc, true
}

// Len returns the number of keys in the index.
func (ix *Index) Len() int {
	if ix.kind == KindInt {
		return ix.ints.Len()
	}
	return ix.texts.Len()
}

// Stats returns the structural statistics of the underlying tree.
func (ix *Index) Stats() bptree.Stats {
	if ix.kind == KindInt {
		return ix.ints.Stats()
	}
	return ix.texts.Stats()
}

// Check verifies the structure of the underlying tree.
func (ix *Index) Check() error {
	var err error
	if ix.kind == KindInt {
		err = ix.ints.Check()
	} else {
		err = ix.texts.Check()
	}
	return errors.Wrapf(err, "index %s", ix.Name())
}

// Dump writes the structure of the underlying tree to w.
func (ix *Index) Dump(w io.Writer) error {
	if ix.kind == KindInt {
		return ix.ints.Dump(w)
	}
	return ix.texts.Dump(w)
}
