package engine

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jmszg/bptree/catalog"
	"github.com/jmszg/bptree/rowstore"
	"github.com/jmszg/bptree/sql"
)

// accessPath tells how the candidate rows of a statement are found. With no
// index every live row is scanned. With an index either eq is set for a point
// lookup, or the optional bounds limit a range scan in key order.
// 访问路径：等值查询走索引点查，范围比较走索引范围扫描，否则全表扫描
type accessPath struct {
	index       *catalog.Index
	eq          *catalog.Value
	lower       *catalog.Value
	lowerStrict bool
	upper       *catalog.Value
	upperStrict bool
}

func (p *accessPath) fields() logrus.Fields {
	if p.index == nil {
		return logrus.Fields{"path": "scan"}
	}
	fields := logrus.Fields{"index": p.index.Name()}
	switch {
	case p.eq != nil:
		fields["path"] = "point"
		fields["key"] = p.eq.String()
	default:
		fields["path"] = "range"
		if p.lower != nil {
			fields["lower"] = p.lower.String()
		}
		if p.upper != nil {
			fields["upper"] = p.upper.String()
		}
	}
	return fields
}

// plan picks the access path from the top-level AND chain of the condition.
// An equality on an indexed column wins; otherwise the comparisons on the
// first indexed column that has any bound the range. The full condition is
// still evaluated on every candidate row.
func (db *DB) plan(dbName string, f *filter) *accessPath {
	type bound struct {
		op sql.Op
		v  catalog.Value
	}
	var (
		rangeIndex *catalog.Index
		bounds     []bound
	)

	for _, e := range conjuncts(f.expr) {
		c, ok := e.(*sql.Comparison)
		if !ok || c.Op == sql.OpNe {
			continue
		}
		pos, v, ok := f.operand(c)
		if !ok {
			continue
		}
		ix, ok := db.registry.Lookup(dbName, f.tbl.Name, f.tbl.Columns[pos].Name)
		if !ok {
			continue
		}
		if c.Op == sql.OpEq {
			return &accessPath{index: ix, eq: &v}
		}
		if rangeIndex == nil {
			rangeIndex = ix
		}
		if ix == rangeIndex {
			bounds = append(bounds, bound{op: c.Op, v: v})
		}
	}
	if rangeIndex == nil {
		return &accessPath{}
	}

	p := &accessPath{index: rangeIndex}
	for _, b := range bounds {
		switch b.op {
		case sql.OpGt, sql.OpGe:
			strict := b.op == sql.OpGt
			if p.lower == nil {
				p.lower, p.lowerStrict = &b.v, strict
			} else if c, _ := b.v.Compare(*p.lower); c > 0 || (c == 0 && strict) {
				p.lower, p.lowerStrict = &b.v, strict
			}
		case sql.OpLt, sql.OpLe:
			strict := b.op == sql.OpLt
			if p.upper == nil {
				p.upper, p.upperStrict = &b.v, strict
			} else if c, _ := b.v.Compare(*p.upper); c < 0 || (c == 0 && strict) {
				p.upper, p.upperStrict = &b.v, strict
			}
		}
	}
	return p
}

// errStop ends a row store scan early.
var errStop = errors.New("stop")

// candidates calls fn for every live row of the table that matches the
// filter, using the access path chosen by plan. fn returns false to stop.
func (db *DB) candidates(dbName string, tbl *catalog.Table, f *filter, fn func(loc rowstore.Locator, row catalog.Row) (bool, error)) error {
	p := db.plan(dbName, f)
	db.logger.WithFields(p.fields()).WithField("table", dbName+"."+tbl.Name).Debug("ACCESS_PATH")

	// visit reads and filters one row found through an index.
	visit := func(loc rowstore.Locator) (bool, error) {
		data, err := db.store.Read(dbName, tbl.Name, loc)
		if errors.Is(err, rowstore.ErrRowDeleted) || errors.Is(err, rowstore.ErrInvalidLocator) {
			// Deleted after the index was read.
			return true, nil
		} else if err != nil {
			return false, err
		}
		row, err := catalog.DecodeRow(data)
		if err != nil {
			return false, err
		}
		if !f.match(row) {
			return true, nil
		}
		return fn(loc, row)
	}

	switch {
	case p.index == nil:
		err := db.store.Scan(dbName, tbl.Name, func(loc rowstore.Locator, data []byte) error {
			row, err := catalog.DecodeRow(data)
			if err != nil {
				return err
			}
			if !f.match(row) {
				return nil
			}
			more, err := fn(loc, row)
			if err != nil {
				return err
			}
			if !more {
				return errStop
			}
			return nil
		})
		if err == errStop {
			return nil
		}
		return err

	case p.eq != nil:
		loc, found, err := p.index.Search(*p.eq)
		if err != nil || !found {
			return err
		}
		_, err = visit(loc)
		return err
	}

	from := catalog.Null()
	if p.lower != nil {
		from = *p.lower
	}
	seq, err := p.index.Scan(from)
	if err != nil {
		return err
	}
	for k, loc := range seq {
		if p.lower != nil && p.lowerStrict {
			if c, _ := k.Compare(*p.lower); c == 0 {
				continue
			}
		}
		if p.upper != nil {
			if c, _ := k.Compare(*p.upper); c > 0 || (c == 0 && p.upperStrict) {
				break
			}
		}
		more, err := visit(loc)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return nil
}

// selectRows runs a SELECT statement.
func (s *Session) selectRows(stmt *sql.Select) (*Result, error) {
	dbName, tbl, err := s.resolve(stmt.Table)
	if err != nil {
		return nil, err
	}
	f, err := newFilter(tbl, stmt.Where)
	if err != nil {
		return nil, err
	}

	projection := make([]int, 0, len(tbl.Columns))
	res := &Result{}
	if stmt.Columns == nil {
		for i, col := range tbl.Columns {
			projection = append(projection, i)
			res.Columns = append(res.Columns, col.Name)
		}
	} else {
		for _, name := range stmt.Columns {
			pos, col, err := tbl.Column(name)
			if err != nil {
				return nil, err
			}
			projection = append(projection, pos)
			res.Columns = append(res.Columns, col.Name)
		}
	}

	if stmt.Limit == 0 {
		return res, nil
	}
	err = s.db.candidates(dbName, tbl, f, func(_ rowstore.Locator, row catalog.Row) (bool, error) {
		out := make(catalog.Row, len(projection))
		for i, pos := range projection {
			if pos < len(row) {
				out[i] = row[pos]
			}
		}
		res.Rows = append(res.Rows, out)
		return stmt.Limit < 0 || len(res.Rows) < stmt.Limit, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// delete runs a DELETE statement: matching rows are tombstoned and their
// index entries removed.
// 删除数据：行数据打墓碑标记，同时删除索引项
func (s *Session) delete(stmt *sql.Delete) (*Result, error) {
	dbName, tbl, err := s.resolve(stmt.Table)
	if err != nil {
		return nil, err
	}
	f, err := newFilter(tbl, stmt.Where)
	if err != nil {
		return nil, err
	}

	unlock := s.db.lockTable(dbName, tbl.Name)
	defer unlock()

	type victim struct {
		loc rowstore.Locator
		row catalog.Row
	}
	var victims []victim
	err = s.db.candidates(dbName, tbl, f, func(loc rowstore.Locator, row catalog.Row) (bool, error) {
		victims = append(victims, victim{loc: loc, row: row})
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	indexes := s.db.tableIndexes(dbName, tbl)
	res := &Result{}
	for _, v := range victims {
		if err := s.db.store.Delete(dbName, tbl.Name, v.loc); err != nil {
			return res, err
		}
		for pos, ix := range indexes {
			if pos >= len(v.row) || v.row[pos].IsNull() {
				continue
			}
			// Only drop the entry if it still points at this row.
			loc, found, err := ix.Search(v.row[pos])
			if err != nil {
				return res, err
			}
			if found && loc == v.loc {
				if _, err := ix.Remove(v.row[pos]); err != nil {
					return res, err
				}
			}
		}
		res.RowsAffected++
	}
	res.Message = fmt.Sprintf("%d row(s) deleted", res.RowsAffected)
	return res, nil
}
