package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// schemaSuffix is the extension of a database schema file.
const schemaSuffix = ".db"

// Options represents the options that can be set when opening a catalog.
type Options struct {
	// Logger used for schema events. Defaults to logrus.StandardLogger().
	Logger logrus.FieldLogger
}

// Database is the schema of one database.
type Database struct {
	Name   string   `json:"database"`
	Tables []*Table `json:"tables"`
}

// Catalog keeps the schema of every database. Each database is stored as a
// JSON document named <name>.db in the catalog directory.
// Catalog 保存所有数据库的表结构，每个数据库一个JSON文件
//
// A Catalog is safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	dir       string
	databases map[string]*Database
	logger    logrus.FieldLogger
}

// Open loads every schema file found in dir, creating dir if needed.
func Open(dir string, options *Options) (*Catalog, error) {
	logger := logrus.FieldLogger(logrus.StandardLogger())
	if options != nil && options.Logger != nil {
		logger = options.Logger
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create catalog directory %s", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*"+schemaSuffix))
	if err != nil {
		return nil, errors.Wrap(err, "list schema files")
	}

	c := &Catalog{dir: dir, databases: make(map[string]*Database), logger: logger}
	for _, path := range paths {
		db, err := readSchema(path)
		if err != nil {
			return nil, err
		}
		c.databases[strings.ToLower(db.Name)] = db
		logger.WithFields(logrus.Fields{
			"database": db.Name,
			"tables":   len(db.Tables),
		}).Debug("SCHEMA_LOAD")
	}
	return c, nil
}

// readSchema decodes a schema file. The file holds a single element array.
func readSchema(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read schema %s", path)
	}
	var dbs []*Database
	if err := json.Unmarshal(data, &dbs); err != nil {
		return nil, errors.Wrapf(err, "decode schema %s", path)
	}
	if len(dbs) != 1 {
		return nil, errors.Wrapf(ErrInvalidSchema, "%s holds %d databases", path, len(dbs))
	}

	db := dbs[0]
	if db.Name == "" {
		db.Name = strings.TrimSuffix(filepath.Base(path), schemaSuffix)
	}
	for _, t := range db.Tables {
		if err := t.Validate(); err != nil {
			return nil, errors.Wrapf(err, "schema %s", path)
		}
	}
	return db, nil
}

// write stores the schema of db atomically. Caller holds c.mu.
func (c *Catalog) write(db *Database) error {
	data, err := json.MarshalIndent([]*Database{db}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode schema")
	}

	path := filepath.Join(c.dir, db.Name+schemaSuffix)
	f, err := os.CreateTemp(c.dir, db.Name+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create schema file")
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "close %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "rename %s", tmp)
	}
	return nil
}

// CreateDatabase defines a new, empty database.
func (c *Catalog) CreateDatabase(name string) error {
	if err := checkName("database", name); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(name)
	if _, ok := c.databases[key]; ok {
		return errors.Wrap(ErrDatabaseExists, name)
	}
	db := &Database{Name: name, Tables: []*Table{}}
	if err := c.write(db); err != nil {
		return err
	}
	c.databases[key] = db

	c.logger.WithField("database", name).Info("DATABASE_CREATE")
	return nil
}

// CreateTable adds a table definition to a database.
// 在数据库中新建一张表
func (c *Catalog) CreateTable(database string, table *Table) error {
	if err := table.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.databases[strings.ToLower(database)]
	if !ok {
		return errors.Wrap(ErrDatabaseNotFound, database)
	}
	for _, t := range db.Tables {
		if strings.EqualFold(t.Name, table.Name) {
			return errors.Wrapf(ErrTableExists, "%s.%s", db.Name, table.Name)
		}
	}

	next := &Database{Name: db.Name, Tables: append(append([]*Table{}, db.Tables...), table)}
	if err := c.write(next); err != nil {
		return err
	}
	c.databases[strings.ToLower(database)] = next

	c.logger.WithFields(logrus.Fields{
		"database": db.Name,
		"table":    table.Name,
		"columns":  len(table.Columns),
	}).Info("TABLE_CREATE")
	return nil
}

// DropTable removes a table definition from a database.
// 从数据库中删除一张表
func (c *Catalog) DropTable(database, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.databases[strings.ToLower(database)]
	if !ok {
		return errors.Wrap(ErrDatabaseNotFound, database)
	}
	tables := make([]*Table, 0, len(db.Tables))
	for _, t := range db.Tables {
		if !strings.EqualFold(t.Name, name) {
			tables = append(tables, t)
		}
	}
	if len(tables) == len(db.Tables) {
		return errors.Wrapf(ErrTableNotFound, "%s.%s", db.Name, name)
	}

	next := &Database{Name: db.Name, Tables: tables}
	if err := c.write(next); err != nil {
		return err
	}
	c.databases[strings.ToLower(database)] = next

	c.logger.WithFields(logrus.Fields{
		"database": db.Name,
		"table":    name,
	}).Info("TABLE_DROP")
	return nil
}

// DropDatabase removes a database and its schema file.
func (c *Catalog) DropDatabase(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(name)
	db, ok := c.databases[key]
	if !ok {
		return errors.Wrap(ErrDatabaseNotFound, name)
	}
	path := filepath.Join(c.dir, db.Name+schemaSuffix)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove schema %s", path)
	}
	delete(c.databases, key)

	c.logger.WithField("database", db.Name).Info("DATABASE_DROP")
	return nil
}

// Database returns the schema of a database under its stored name.
func (c *Catalog) Database(name string) (*Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	db, ok := c.databases[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrap(ErrDatabaseNotFound, name)
	}
	return db, nil
}

// Table returns the definition of a table.
func (c *Catalog) Table(database, name string) (*Table, error) {
	db, err := c.Database(database)
	if err != nil {
		return nil, err
	}
	for _, t := range db.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return nil, errors.Wrapf(ErrTableNotFound, "%s.%s", database, name)
}

// Databases returns the names of every database in sorted order.
func (c *Catalog) Databases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.databases))
	for _, db := range c.databases {
		names = append(names, db.Name)
	}
	sort.Strings(names)
	return names
}

// Tables returns the names of the tables of a database in creation order.
func (c *Catalog) Tables(database string) ([]string, error) {
	db, err := c.Database(database)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(db.Tables))
	for i, t := range db.Tables {
		names[i] = t.Name
	}
	return names, nil
}
