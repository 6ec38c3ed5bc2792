package engine

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/jmszg/bptree/catalog"
	"github.com/jmszg/bptree/sql"
)

// insert stores the rows of an INSERT statement one by one. Rows stored
// before a failing row stay stored.
// 插入数据：类型检查、非空检查、自增、唯一性检查，然后写入行数据和索引
func (s *Session) insert(stmt *sql.Insert) (*Result, error) {
	dbName, tbl, err := s.resolve(stmt.Table)
	if err != nil {
		return nil, err
	}

	// positions[i] is the column that receives the i-th value of a tuple.
	positions := make([]int, 0, len(tbl.Columns))
	if stmt.Columns == nil {
		for i := range tbl.Columns {
			positions = append(positions, i)
		}
	} else {
		seen := make(map[int]bool, len(stmt.Columns))
		for _, name := range stmt.Columns {
			pos, _, err := tbl.Column(name)
			if err != nil {
				return nil, err
			}
			if seen[pos] {
				return nil, errors.Errorf("column %s listed twice", name)
			}
			seen[pos] = true
			positions = append(positions, pos)
		}
	}

	types := make([]catalog.Type, len(tbl.Columns))
	for i, col := range tbl.Columns {
		if types[i], err = col.ColumnType(); err != nil {
			return nil, err
		}
	}

	unlock := s.db.lockTable(dbName, tbl.Name)
	defer unlock()

	indexes := s.db.tableIndexes(dbName, tbl)
	res := &Result{}
	for n, values := range stmt.Rows {
		if len(values) != len(positions) {
			return res, errors.Wrapf(ErrValueCount, "row %d has %d values, expected %d", n+1, len(values), len(positions))
		}

		row := make(catalog.Row, len(tbl.Columns))
		for i, v := range values {
			pos := positions[i]
			if row[pos], err = v.Convert(types[pos]); err != nil {
				return res, errors.Wrapf(err, "column %s", tbl.Columns[pos].Name)
			}
		}
		if err := s.db.completeRow(tbl, types, indexes, row); err != nil {
			return res, err
		}
		if err := s.db.storeRow(dbName, tbl, indexes, row); err != nil {
			return res, err
		}
		res.RowsAffected++
	}
	res.Message = fmt.Sprintf("%d row(s) inserted", res.RowsAffected)
	return res, nil
}

// completeRow fills AUTO_INCREMENT columns and checks NOT NULL, length and
// uniqueness constraints. Caller holds the table write lock.
func (db *DB) completeRow(tbl *catalog.Table, types []catalog.Type, indexes map[int]*catalog.Index, row catalog.Row) error {
	for pos, col := range tbl.Columns {
		v := row[pos]

		if v.IsNull() && col.Has(catalog.AutoIncrement) {
			next := int64(1)
			if last, _, ok := indexes[pos].Last(); ok {
				if last.Int64() == math.MaxInt64 {
					return errors.Wrapf(ErrAutoIncrementOverflow, "column %s", col.Name)
				}
				next = last.Int64() + 1
			}
			v = catalog.Int(next)
			row[pos] = v
		}

		if v.IsNull() {
			if !col.Nullable() {
				return errors.Wrapf(ErrNotNull, "column %s", col.Name)
			}
			continue
		}

		if types[pos] == catalog.TypeText && col.Length > 0 && utf8.RuneCountInString(v.Str()) > col.Length {
			return errors.Wrapf(ErrTooLong, "column %s holds at most %d characters", col.Name, col.Length)
		}

		if ix, ok := indexes[pos]; ok {
			_, found, err := ix.Search(v)
			if err != nil {
				return err
			}
			if found {
				return errors.Wrapf(ErrDuplicateKey, "%s = %s", col.Name, quote(v))
			}
		}
	}
	return nil
}

// storeRow appends row to the table and adds its non-NULL indexed values.
// Caller holds the table write lock.
func (db *DB) storeRow(dbName string, tbl *catalog.Table, indexes map[int]*catalog.Index, row catalog.Row) error {
	data, err := catalog.EncodeRow(row)
	if err != nil {
		return err
	}
	loc, err := db.store.Append(dbName, tbl.Name, data)
	if err != nil {
		return err
	}
	for pos, ix := range indexes {
		if row[pos].IsNull() {
			continue
		}
		if err := ix.Insert(row[pos], loc); err != nil {
			return err
		}
	}
	return nil
}

func quote(v catalog.Value) string {
	if v.Kind() == catalog.ValueText {
		return "'" + strings.ReplaceAll(v.Str(), "'", "''") + "'"
	}
	return v.String()
}
