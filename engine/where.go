package engine

import (
	"github.com/pkg/errors"

	"github.com/jmszg/bptree/catalog"
	"github.com/jmszg/bptree/sql"
)

// truth is a three-valued logic result. Comparisons involving NULL are
// unknown, and a row matches only when its condition is true.
type truth int8

const (
	unknown truth = iota
	isFalse
	isTrue
)

func truthOf(b bool) truth {
	if b {
		return isTrue
	}
	return isFalse
}

func (t truth) not() truth {
	switch t {
	case isTrue:
		return isFalse
	case isFalse:
		return isTrue
	}
	return unknown
}

// filter is a WHERE condition bound to a table.
// filter 把WHERE条件绑定到具体的表上
type filter struct {
	tbl   *catalog.Table
	types []catalog.Type
	expr  sql.Expr
}

func newFilter(tbl *catalog.Table, expr sql.Expr) (*filter, error) {
	f := &filter{tbl: tbl, types: make([]catalog.Type, len(tbl.Columns)), expr: expr}
	for i, col := range tbl.Columns {
		typ, err := col.ColumnType()
		if err != nil {
			return nil, err
		}
		f.types[i] = typ
	}
	if err := f.bind(expr); err != nil {
		return nil, err
	}
	return f, nil
}

// bind checks that every column named by the condition exists and that every
// literal can be converted to the type of the column it is compared with.
func (f *filter) bind(e sql.Expr) error {
	switch e := e.(type) {
	case *sql.Comparison:
		pos, col, err := f.tbl.Column(e.Column)
		if err != nil {
			return err
		}
		if _, err := e.Value.Convert(f.types[pos]); err != nil {
			return errors.Wrapf(err, "column %s", col.Name)
		}
		return nil
	case *sql.Logical:
		if err := f.bind(e.Left); err != nil {
			return err
		}
		return f.bind(e.Right)
	case *sql.Not:
		return f.bind(e.Expr)
	}
	return nil
}

// operand returns the column position of c and its literal converted to the
// column type. ok is false when the literal is NULL.
func (f *filter) operand(c *sql.Comparison) (pos int, v catalog.Value, ok bool) {
	pos, _, err := f.tbl.Column(c.Column)
	if err != nil {
		return -1, v, false
	}
	v, err = c.Value.Convert(f.types[pos])
	if err != nil || v.IsNull() {
		return pos, v, false
	}
	return pos, v, true
}

// match reports whether row satisfies the condition. A nil condition matches
// every row.
func (f *filter) match(row catalog.Row) bool {
	if f.expr == nil {
		return true
	}
	return f.eval(f.expr, row) == isTrue
}

func (f *filter) eval(e sql.Expr, row catalog.Row) truth {
	switch e := e.(type) {
	case *sql.Comparison:
		pos, v, ok := f.operand(e)
		if !ok || pos >= len(row) {
			if pos >= 0 && e.Value.IsNull() {
				return unknown
			}
			return isFalse
		}
		c, ok := row[pos].Compare(v)
		if !ok {
			return unknown
		}
		return truthOf(e.Op.Holds(c))

	case *sql.Logical:
		l, r := f.eval(e.Left, row), f.eval(e.Right, row)
		if e.And {
			switch {
			case l == isFalse || r == isFalse:
				return isFalse
			case l == isTrue && r == isTrue:
				return isTrue
			}
			return unknown
		}
		switch {
		case l == isTrue || r == isTrue:
			return isTrue
		case l == isFalse && r == isFalse:
			return isFalse
		}
		return unknown

	case *sql.Not:
		return f.eval(e.Expr, row).not()
	}
	return isFalse
}

// conjuncts flattens the top-level AND chain of e.
func conjuncts(e sql.Expr) []sql.Expr {
	if l, ok := e.(*sql.Logical); ok && l.And {
		return append(conjuncts(l.Left), conjuncts(l.Right)...)
	}
	if e == nil {
		return nil
	}
	return []sql.Expr{e}
}
