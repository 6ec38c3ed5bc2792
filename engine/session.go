package engine

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jmszg/bptree/catalog"
	"github.com/jmszg/bptree/rowstore"
	"github.com/jmszg/bptree/sql"
)

// Result is the outcome of one statement. Columns and Rows are set for
// SELECT; RowsAffected for INSERT and DELETE.
type Result struct {
	Columns      []string
	Rows         []catalog.Row
	RowsAffected int
	Message      string
}

// Session executes statements against a DB and remembers the current
// database selected with USE.
// Session 表示一个客户端会话，保存当前使用的数据库
//
// A Session is not safe for concurrent use; open one per goroutine.
type Session struct {
	db       *DB
	id       string
	database string
	logger   logrus.FieldLogger
}

// NewSession opens a session with no current database.
func (db *DB) NewSession() (*Session, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, "generate session id")
	}
	return &Session{
		db:     db,
		id:     id,
		logger: db.logger.WithField("session", id),
	}, nil
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string { return s.id }

// Database returns the current database, or "" before USE.
func (s *Session) Database() string { return s.database }

// Exec parses and runs every statement of query in order. It stops at the
// first failing statement and returns the results of the statements that
// completed together with the error.
func (s *Session) Exec(query string) ([]*Result, error) {
	if s.db.closed.Load() {
		return nil, ErrClosed
	}
	stmts, err := sql.Parse(query)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(stmts))
	for _, stmt := range stmts {
		res, err := s.execute(stmt)
		if err != nil {
			s.logger.WithError(err).Debug("EXEC_FAIL")
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Session) execute(stmt sql.Statement) (*Result, error) {
	s.logger.WithFields(logrus.Fields{
		"database":  s.database,
		"statement": fmt.Sprintf("%T", stmt),
	}).Debug("EXEC")

	switch stmt := stmt.(type) {
	case *sql.CreateDatabase:
		return s.createDatabase(stmt)
	case *sql.Use:
		return s.use(stmt)
	case *sql.CreateTable:
		return s.createTable(stmt)
	case *sql.Insert:
		return s.insert(stmt)
	case *sql.Select:
		return s.selectRows(stmt)
	case *sql.Delete:
		return s.delete(stmt)
	case *sql.DropTable:
		return s.dropTable(stmt)
	case *sql.DropDatabase:
		return s.dropDatabase(stmt)
	}
	return nil, errors.Errorf("unsupported statement %T", stmt)
}

// resolve returns the stored database name and the table named by ref.
func (s *Session) resolve(ref sql.TableRef) (string, *catalog.Table, error) {
	name := ref.Database
	if name == "" {
		name = s.database
	}
	if name == "" {
		return "", nil, ErrNoDatabase
	}
	d, err := s.db.catalog.Database(name)
	if err != nil {
		return "", nil, err
	}
	tbl, err := s.db.catalog.Table(d.Name, ref.Name)
	if err != nil {
		return "", nil, err
	}
	return d.Name, tbl, nil
}

func (s *Session) createDatabase(stmt *sql.CreateDatabase) (*Result, error) {
	s.db.ddl.Lock()
	defer s.db.ddl.Unlock()

	if err := s.db.catalog.CreateDatabase(stmt.Name); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("database %s created", stmt.Name)}, nil
}

func (s *Session) use(stmt *sql.Use) (*Result, error) {
	d, err := s.db.catalog.Database(stmt.Name)
	if err != nil {
		return nil, err
	}
	s.database = d.Name
	return &Result{Message: fmt.Sprintf("using database %s", d.Name)}, nil
}

// createTable stores the schema, creates the row files and registers empty
// indexes for the indexed columns.
// 建表：写入表结构，创建数据文件，注册索引
func (s *Session) createTable(stmt *sql.CreateTable) (*Result, error) {
	tbl := &catalog.Table{Name: stmt.Table.Name}
	for _, def := range stmt.Columns {
		tbl.Columns = append(tbl.Columns, &catalog.Column{
			Name:        def.Name,
			Type:        strings.ToLower(def.Type),
			Length:      def.Length,
			Constraints: def.Constraints,
		})
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}

	name := stmt.Table.Database
	if name == "" {
		name = s.database
	}
	if name == "" {
		return nil, ErrNoDatabase
	}

	s.db.ddl.Lock()
	defer s.db.ddl.Unlock()

	d, err := s.db.catalog.Database(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.catalog.Table(d.Name, tbl.Name); err == nil {
		return nil, errors.Wrapf(catalog.ErrTableExists, "%s.%s", d.Name, tbl.Name)
	}
	if err := s.db.store.Create(d.Name, tbl.Name); err != nil {
		return nil, err
	}
	if err := s.db.catalog.CreateTable(d.Name, tbl); err != nil {
		return nil, err
	}
	if _, err := s.db.createIndexes(d.Name, tbl); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("table %s.%s created", d.Name, tbl.Name)}, nil
}

// dropTable removes the schema, the row files and the indexes of a table.
// 删表：删除表结构、数据文件和索引
func (s *Session) dropTable(stmt *sql.DropTable) (*Result, error) {
	s.db.ddl.Lock()
	defer s.db.ddl.Unlock()

	dbName, tbl, err := s.resolve(stmt.Table)
	if err != nil {
		return nil, err
	}
	unlock := s.db.lockTable(dbName, tbl.Name)
	defer unlock()

	if err := s.db.catalog.DropTable(dbName, tbl.Name); err != nil {
		return nil, err
	}
	if err := s.db.store.Drop(dbName, tbl.Name); err != nil && errors.Cause(err) != rowstore.ErrTableNotFound {
		return nil, err
	}
	s.db.registry.DropTable(dbName, tbl.Name)
	return &Result{Message: fmt.Sprintf("table %s.%s dropped", dbName, tbl.Name)}, nil
}

// dropDatabase removes a database with all of its tables. Sessions using it
// must USE another database afterwards.
func (s *Session) dropDatabase(stmt *sql.DropDatabase) (*Result, error) {
	s.db.ddl.Lock()
	defer s.db.ddl.Unlock()

	d, err := s.db.catalog.Database(stmt.Name)
	if err != nil {
		return nil, err
	}
	for _, tbl := range d.Tables {
		unlock := s.db.lockTable(d.Name, tbl.Name)
		defer unlock()
	}

	if err := s.db.catalog.DropDatabase(d.Name); err != nil {
		return nil, err
	}
	if err := s.db.store.DropDatabase(d.Name); err != nil {
		return nil, err
	}
	s.db.registry.DropDatabase(d.Name)
	if strings.EqualFold(s.database, d.Name) {
		s.database = ""
	}
	return &Result{Message: fmt.Sprintf("database %s dropped", d.Name)}, nil
}
