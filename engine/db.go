package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jmszg/bptree"
	"github.com/jmszg/bptree/catalog"
	"github.com/jmszg/bptree/rowstore"
)

// Options represents the options that can be set when opening a database.
type Options struct {
	// Degree of every index tree. Zero selects bptree.DefaultDegree.
	Degree int

	// LockTimeout is the amount of time to wait for the data directory lock.
	// When set to zero it will wait indefinitely.
	LockTimeout time.Duration

	// NoSync skips fsync after row writes.
	NoSync bool

	// Logger receives engine events. Defaults to logrus.StandardLogger().
	// Index trees log their structural changes to it as well.
	Logger logrus.FieldLogger
}

// DefaultOptions represent the options used if nil options are passed into Open.
var DefaultOptions = &Options{
	Degree:      bptree.DefaultDegree,
	LockTimeout: time.Second,
}

// DB is an open data directory: schemas, stored rows and the in-memory
// indexes rebuilt from them.
// DB 表示一个打开的数据目录
//
// A DB is safe for concurrent use. Statements run through Sessions.
type DB struct {
	catalog  *catalog.Catalog
	store    *rowstore.Store
	registry *catalog.Registry
	logger   logrus.FieldLogger

	ddl     sync.Mutex // serializes CREATE and DROP
	mu      sync.Mutex // guards writers
	writers map[string]*sync.Mutex
	closed  atomic.Bool
}

// Open opens the database stored in dir and rebuilds every index from the
// stored rows.
func Open(dir string, options *Options) (*DB, error) {
	if options == nil {
		options = DefaultOptions
	}
	logger := options.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	store, err := rowstore.Open(dir, &rowstore.Options{
		Timeout: options.LockTimeout,
		NoSync:  options.NoSync,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Open(dir, &catalog.Options{Logger: logger})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	db := &DB{
		catalog:  cat,
		store:    store,
		registry: catalog.NewRegistry(&bptree.Options{Degree: options.Degree, Logger: logger}, logger),
		logger:   logger,
		writers:  make(map[string]*sync.Mutex),
	}
	if err := db.rebuild(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return db, nil
}

// rebuild creates the indexes of every table and fills them from the live
// rows of the row store.
// 启动时根据已存储的行数据重建所有索引
func (db *DB) rebuild() error {
	start := time.Now()
	var rows int
	for _, name := range db.catalog.Databases() {
		d, err := db.catalog.Database(name)
		if err != nil {
			return err
		}
		for _, tbl := range d.Tables {
			n, err := db.rebuildTable(d.Name, tbl)
			if err != nil {
				return pkgerrors.Wrapf(err, "rebuild %s.%s", d.Name, tbl.Name)
			}
			rows += n
		}
	}
	db.logger.WithFields(logrus.Fields{
		"rows":    rows,
		"indexes": len(db.registry.All()),
		"elapsed": time.Since(start),
	}).Info("INDEX_REBUILD")
	return nil
}

func (db *DB) rebuildTable(dbName string, tbl *catalog.Table) (int, error) {
	indexes, err := db.createIndexes(dbName, tbl)
	if err != nil {
		return 0, err
	}

	var n int
	err = db.store.Scan(dbName, tbl.Name, func(loc rowstore.Locator, data []byte) error {
		row, err := catalog.DecodeRow(data)
		if err != nil {
			return pkgerrors.Wrapf(err, "row %d", loc.Slot)
		}
		n++
		for pos, ix := range indexes {
			if pos >= len(row) || row[pos].IsNull() {
				continue
			}
			if err := ix.Insert(row[pos], loc); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, rowstore.ErrTableNotFound) {
		// Schema written but the row files were never created.
		if err := db.store.Create(dbName, tbl.Name); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return n, err
}

// createIndexes registers an index for every indexed column of tbl, keyed by
// column position.
func (db *DB) createIndexes(dbName string, tbl *catalog.Table) (map[int]*catalog.Index, error) {
	indexes := make(map[int]*catalog.Index)
	for pos, col := range tbl.Columns {
		if !col.Indexed() {
			continue
		}
		ix, err := db.registry.Create(dbName, tbl.Name, col)
		if err != nil {
			return nil, err
		}
		indexes[pos] = ix
	}
	return indexes, nil
}

// tableIndexes returns the indexes of tbl keyed by column position.
func (db *DB) tableIndexes(dbName string, tbl *catalog.Table) map[int]*catalog.Index {
	indexes := make(map[int]*catalog.Index)
	for pos, col := range tbl.Columns {
		if ix, ok := db.registry.Lookup(dbName, tbl.Name, col.Name); ok {
			indexes[pos] = ix
		}
	}
	return indexes
}

// lockTable takes the write lock of a table and returns its release function.
func (db *DB) lockTable(dbName, table string) func() {
	key := dbName + "." + table
	db.mu.Lock()
	m := db.writers[key]
	if m == nil {
		m = new(sync.Mutex)
		db.writers[key] = m
	}
	db.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Catalog returns the schema catalog.
func (db *DB) Catalog() *catalog.Catalog {
	return db.catalog
}

// Index returns the index on db.table.column, if the column is indexed.
func (db *DB) Index(dbName, table, column string) (*catalog.Index, bool) {
	return db.registry.Lookup(dbName, table, column)
}

// Indexes returns every index sorted by qualified name.
func (db *DB) Indexes() []*catalog.Index {
	return db.registry.All()
}

// Check verifies the structure of every index.
func (db *DB) Check() error {
	var errs []error
	for _, ix := range db.registry.All() {
		if err := ix.Check(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the data directory. Sessions must not be used afterwards.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	db.registry.Close()
	return db.store.Close()
}
