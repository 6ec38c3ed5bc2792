package rowstore

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// The time elapsed between consecutive file locking attempts.
const flockRetryTimeout = 50 * time.Millisecond

const (
	dataSuffix  = ".data"
	indexSuffix = ".index"
	lockName    = "LOCK"
)

// Options represents the options that can be set when opening a store.
type Options struct {
	// Timeout is the amount of time to wait to obtain the directory lock.
	// When set to zero it will wait indefinitely.
	Timeout time.Duration

	// Setting the NoSync flag skips fsync after every write. This is only
	// safe when losing the most recent rows on a crash is acceptable, such as
	// in tests or bulk loads.
	NoSync bool

	// Logger used for file level events. Defaults to logrus.StandardLogger().
	Logger logrus.FieldLogger
}

// DefaultOptions represent the options used if nil options are passed into Open.
var DefaultOptions = &Options{
	Timeout: time.Second,
}

// Store keeps the rows of every table in a directory. Each table owns an
// append-only .data file and a .index file of fixed-width records pointing
// into it. Row bytes are opaque to the store.
// Store 管理目录下所有表的行数据文件
//
// A Store is safe for concurrent use. Only one Store may have a directory open
// at a time; Open takes an advisory lock on the directory's LOCK file.
type Store struct {
	mu     sync.RWMutex // guards tables and closed
	dir    string
	lock   *os.File
	tables map[string]*table
	closed bool

	noSync bool
	logger logrus.FieldLogger
}

// table holds the open files of one table.
type table struct {
	mu       sync.Mutex // serializes Append and Delete
	data     *os.File
	index    *os.File
	dataSize int64
	slots    uint32
}

// Open opens the store rooted at dir, creating the directory if needed.
func Open(dir string, options *Options) (*Store, error) {
	if options == nil {
		options = DefaultOptions
	}
	logger := options.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create store directory %s", dir)
	}
	lock, err := os.OpenFile(filepath.Join(dir, lockName), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open lock file")
	}
	if err := flock(lock, options.Timeout); err != nil {
		_ = lock.Close()
		if err == ErrTimeout {
			return nil, err
		}
		return nil, errors.Wrap(err, "lock store directory")
	}

	logger.WithField("dir", dir).Debug("STORE_OPEN")
	return &Store{
		dir:    dir,
		lock:   lock,
		tables: make(map[string]*table),
		noSync: options.NoSync,
		logger: logger,
	}, nil
}

// Path returns the directory the store was opened on.
func (s *Store) Path() string {
	return s.dir
}

// Close closes every open table file and releases the directory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for name, t := range s.tables {
		keep(errors.Wrapf(t.data.Close(), "close %s data", name))
		keep(errors.Wrapf(t.index.Close(), "close %s index", name))
	}
	s.tables = nil

	keep(errors.Wrap(funlock(s.lock), "unlock store directory"))
	keep(errors.Wrap(s.lock.Close(), "close lock file"))
	return first
}

// Create creates the empty data and index files of a table.
// 创建表对应的.data和.index文件
func (s *Store) Create(db, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(filepath.Join(s.dir, db), 0755); err != nil {
		return errors.Wrapf(err, "create database directory %s", db)
	}
	dataPath, indexPath := s.paths(db, name)
	data, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return ErrTableExists
	} else if err != nil {
		return errors.Wrapf(err, "create %s", dataPath)
	}
	index, err := os.OpenFile(indexPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		_ = data.Close()
		_ = os.Remove(dataPath)
		if os.IsExist(err) {
			return ErrTableExists
		}
		return errors.Wrapf(err, "create %s", indexPath)
	}

	s.tables[key(db, name)] = &table{data: data, index: index}
	s.logger.WithFields(logrus.Fields{"db": db, "table": name}).Debug("TABLE_CREATE")
	return nil
}

// Drop closes and removes the data and index files of a table.
// 删除表对应的.data和.index文件
func (s *Store) Drop(db, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	k := key(db, name)
	if t := s.tables[k]; t != nil {
		t.close()
		delete(s.tables, k)
	}

	dataPath, indexPath := s.paths(db, name)
	var removed int
	for _, path := range []string{dataPath, indexPath} {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return errors.Wrapf(err, "remove %s", path)
		}
		removed++
	}
	if removed == 0 {
		return ErrTableNotFound
	}
	s.logger.WithFields(logrus.Fields{"db": db, "table": name}).Debug("TABLE_DROP")
	return nil
}

// DropDatabase closes every table of db and removes its directory.
func (s *Store) DropDatabase(db string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prefix := key(db, "")
	for k, t := range s.tables {
		if strings.HasPrefix(k, prefix) {
			t.close()
			delete(s.tables, k)
		}
	}
	dir := filepath.Join(s.dir, db)
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "remove database directory %s", dir)
	}
	s.logger.WithField("db", db).Debug("DATABASE_DROP")
	return nil
}

// Append writes a row to the end of a table and returns its locator.
// 追加一行数据，返回定位信息
func (s *Store) Append(db, name string, row []byte) (Locator, error) {
	t, err := s.table(db, name)
	if err != nil {
		return Locator{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.data.WriteAt(row, t.dataSize); err != nil {
		return Locator{}, errors.Wrapf(err, "append %s.%s row", db, name)
	}
	r := record{offset: t.dataSize, size: uint32(len(row))}
	var buf [recordSize]byte
	r.write(buf[:])
	if _, err := t.index.WriteAt(buf[:], int64(t.slots)*recordSize); err != nil {
		return Locator{}, errors.Wrapf(err, "append %s.%s record", db, name)
	}
	if err := s.sync(t); err != nil {
		return Locator{}, err
	}

	loc := Locator{Slot: t.slots, Size: r.size, Offset: r.offset}
	t.dataSize += int64(len(row))
	t.slots++
	return loc, nil
}

// Read returns the row stored at loc.
func (s *Store) Read(db, name string, loc Locator) ([]byte, error) {
	t, err := s.table(db, name)
	if err != nil {
		return nil, err
	}

	var r record
	if err := t.readRecord(loc.Slot, t.slotCount(), &r); err != nil {
		return nil, err
	}
	if !loc.matches(&r) {
		return nil, ErrInvalidLocator
	}
	if r.deleted() {
		return nil, ErrRowDeleted
	}

	row := make([]byte, r.size)
	if _, err := t.data.ReadAt(row, r.offset); err != nil {
		return nil, errors.Wrapf(err, "read %s.%s row %d", db, name, loc.Slot)
	}
	return row, nil
}

// Delete marks the row at loc as deleted. Its bytes stay in the data file.
// 删除一行，只设置墓碑标记
func (s *Store) Delete(db, name string, loc Locator) error {
	t, err := s.table(db, name)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var r record
	if err := t.readRecord(loc.Slot, t.slots, &r); err != nil {
		return err
	}
	if !loc.matches(&r) {
		return ErrInvalidLocator
	}
	if r.deleted() {
		return ErrRowDeleted
	}

	r.flags |= deletedFlag
	var buf [recordSize]byte
	r.write(buf[:])
	if _, err := t.index.WriteAt(buf[:], int64(loc.Slot)*recordSize); err != nil {
		return errors.Wrapf(err, "delete %s.%s row %d", db, name, loc.Slot)
	}
	return s.sync(t)
}

// Scan calls fn for every live row of a table in insertion order. If fn
// returns an error the scan stops and the error is returned.
// 按写入顺序遍历表中所有未删除的行
func (s *Store) Scan(db, name string, fn func(loc Locator, row []byte) error) error {
	t, err := s.table(db, name)
	if err != nil {
		return err
	}

	slots := t.slotCount()
	records := make([]byte, int64(slots)*recordSize)
	if _, err := t.index.ReadAt(records, 0); err != nil && err != io.EOF {
		return errors.Wrapf(err, "read %s.%s records", db, name)
	}

	var r record
	for slot := uint32(0); slot < slots; slot++ {
		r.read(records[int64(slot)*recordSize:])
		if r.deleted() {
			continue
		}
		row := make([]byte, r.size)
		if _, err := t.data.ReadAt(row, r.offset); err != nil {
			return errors.Wrapf(err, "read %s.%s row %d", db, name, slot)
		}
		if err := fn(Locator{Slot: slot, Size: r.size, Offset: r.offset}, row); err != nil {
			return err
		}
	}
	return nil
}

// table returns the open files of a table, opening them on first use.
func (s *Store) table(db, name string) (*table, error) {
	k := key(db, name)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	t := s.tables[k]
	s.mu.RUnlock()
	if t != nil {
		return t, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if t := s.tables[k]; t != nil {
		return t, nil
	}

	t, err := s.openTable(db, name)
	if err != nil {
		return nil, err
	}
	s.tables[k] = t
	return t, nil
}

func (s *Store) openTable(db, name string) (*table, error) {
	dataPath, indexPath := s.paths(db, name)
	data, err := os.OpenFile(dataPath, os.O_RDWR, 0644)
	if os.IsNotExist(err) {
		return nil, ErrTableNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "open %s", dataPath)
	}
	index, err := os.OpenFile(indexPath, os.O_RDWR, 0644)
	if err != nil {
		_ = data.Close()
		if os.IsNotExist(err) {
			return nil, ErrTableNotFound
		}
		return nil, errors.Wrapf(err, "open %s", indexPath)
	}

	t := &table{data: data, index: index}
	if err := t.load(); err != nil {
		_ = data.Close()
		_ = index.Close()
		return nil, errors.Wrapf(err, "load %s.%s", db, name)
	}
	s.logger.WithFields(logrus.Fields{
		"db":    db,
		"table": name,
		"slots": t.slots,
	}).Debug("TABLE_OPEN")
	return t, nil
}

// load derives the append positions from the file sizes. A partially written
// trailing record is ignored and will be overwritten by the next Append.
func (t *table) load() error {
	info, err := t.index.Stat()
	if err != nil {
		return err
	}
	t.slots = uint32(info.Size() / recordSize)

	info, err = t.data.Stat()
	if err != nil {
		return err
	}
	t.dataSize = info.Size()
	return nil
}

// close waits for a pending Append or Delete and closes both files.
func (t *table) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.data.Close()
	_ = t.index.Close()
}

// slotCount returns the number of records written so far.
func (t *table) slotCount() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots
}

// readRecord reads the record at slot. slots is the record count observed by
// the caller.
func (t *table) readRecord(slot, slots uint32, r *record) error {
	if slot >= slots {
		return ErrInvalidLocator
	}

	var buf [recordSize]byte
	if _, err := t.index.ReadAt(buf[:], int64(slot)*recordSize); err != nil {
		return errors.Wrapf(err, "read record %d", slot)
	}
	r.read(buf[:])
	return nil
}

func (s *Store) sync(t *table) error {
	if s.noSync {
		return nil
	}
	if err := t.data.Sync(); err != nil {
		return errors.Wrap(err, "sync data")
	}
	return errors.Wrap(t.index.Sync(), "sync index")
}

func (s *Store) paths(db, name string) (data, index string) {
	base := filepath.Join(s.dir, db, name)
	return base + dataSuffix, base + indexSuffix
}

func key(db, name string) string {
	return db + "." + name
}
