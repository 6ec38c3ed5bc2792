package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jmszg/bptree"
)

// Registry owns every live index, keyed by database, table and column.
// Registry 管理所有的索引：数据库 -> 表 -> 列 -> 索引
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]map[string]map[string]*Index
	options *bptree.Options
	logger  logrus.FieldLogger
}

// NewRegistry creates an empty registry. New indexes are built with options.
func NewRegistry(options *bptree.Options, logger logrus.FieldLogger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		indexes: make(map[string]map[string]map[string]*Index),
		options: options,
		logger:  logger,
	}
}

// Create builds an empty index for column of db.table.
func (r *Registry) Create(db, table string, column *Column) (*Index, error) {
	typ, err := column.ColumnType()
	if err != nil {
		return nil, err
	}
	kind, err := typ.KeyKind()
	if err != nil {
		return nil, errors.Wrapf(err, "column %s", column.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, t, c := strings.ToLower(db), strings.ToLower(table), strings.ToLower(column.Name)
	tables := r.indexes[d]
	if tables == nil {
		tables = make(map[string]map[string]*Index)
		r.indexes[d] = tables
	}
	columns := tables[t]
	if columns == nil {
		columns = make(map[string]*Index)
		tables[t] = columns
	}
	if _, ok := columns[c]; ok {
		return nil, errors.Wrapf(ErrIndexExists, "%s.%s.%s", db, table, column.Name)
	}

	ix, err := NewIndex(db, table, column.Name, kind, r.options)
	if err != nil {
		return nil, err
	}
	columns[c] = ix

	r.logger.WithFields(logrus.Fields{
		"index": ix.Name(),
		"kind":  kind,
	}).Debug("INDEX_CREATE")
	return ix, nil
}

// Lookup returns the index on db.table.column, if any.
func (r *Registry) Lookup(db, table, column string) (*Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.indexes[strings.ToLower(db)][strings.ToLower(table)][strings.ToLower(column)]
	return ix, ok
}

// Indexes returns the indexes of db.table sorted by column name.
func (r *Registry) Indexes(db, table string) []*Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	columns := r.indexes[strings.ToLower(db)][strings.ToLower(table)]
	out := make([]*Index, 0, len(columns))
	for _, ix := range columns {
		out = append(out, ix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Column() < out[j].Column() })
	return out
}

// All returns every index sorted by qualified name.
func (r *Registry) All() []*Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Index
	for _, tables := range r.indexes {
		for _, columns := range tables {
			for _, ix := range columns {
				out = append(out, ix)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DropTable forgets every index of db.table.
func (r *Registry) DropTable(db, table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes[strings.ToLower(db)], strings.ToLower(table))
}

// DropDatabase forgets every index of db.
func (r *Registry) DropDatabase(db string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, strings.ToLower(db))
}

// Close forgets every index. The registry can be reused afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes = make(map[string]map[string]map[string]*Index)
}
