package engine_test

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmszg/bptree/catalog"
	"github.com/jmszg/bptree/engine"
	"github.com/jmszg/bptree/rowstore"
)

const schema = `
CREATE DATABASE shop;
USE shop;
CREATE TABLE users (
	id INT PRIMARY KEY AUTO_INCREMENT,
	email VARCHAR(16) UNIQUE NOT NULL,
	age INT INDEX,
	active BOOL
);`

func openDB(t testing.TB, dir string) *engine.DB {
	t.Helper()
	logger, _ := test.NewNullLogger()
	db, err := engine.Open(dir, &engine.Options{
		Degree:      3,
		LockTimeout: time.Second,
		NoSync:      true,
		Logger:      logger,
	})
	require.NoError(t, err)
	return db
}

func newSession(t testing.TB, db *engine.DB) *engine.Session {
	t.Helper()
	s, err := db.NewSession()
	require.NoError(t, err)
	return s
}

// exec runs query and returns the result of its last statement.
func exec(t testing.TB, s *engine.Session, query string) *engine.Result {
	t.Helper()
	results, err := s.Exec(query)
	require.NoError(t, err, query)
	require.NotEmpty(t, results)
	return results[len(results)-1]
}

// ints returns column col of every row as int64s.
func ints(rows []catalog.Row, col int) []int64 {
	out := make([]int64, 0, len(rows))
	for _, row := range rows {
		out = append(out, row[col].Int64())
	}
	return out
}

func setup(t *testing.T) (*engine.DB, *engine.Session) {
	db := openDB(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	s := newSession(t, db)
	exec(t, s, schema)
	return db, s
}

func TestSession_InsertAndSelect(t *testing.T) {
	db, s := setup(t)
	assert.Equal(t, "shop", s.Database())
	assert.NotEmpty(t, s.ID())

	res := exec(t, s, `INSERT INTO users (email, age, active) VALUES
		('a@x', 30, true), ('b@x', 20, false), ('c@x', NULL, 1)`)
	assert.Equal(t, 3, res.RowsAffected)

	res = exec(t, s, "SELECT * FROM users")
	assert.Equal(t, []string{"id", "email", "age", "active"}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, []int64{1, 2, 3}, ints(res.Rows, 0))
	assert.Equal(t, catalog.Row{catalog.Int(3), catalog.Text("c@x"), catalog.Null(), catalog.Bool(true)}, res.Rows[2])

	res = exec(t, s, "SELECT email FROM shop.users WHERE id = 2")
	assert.Equal(t, []string{"email"}, res.Columns)
	assert.Equal(t, []catalog.Row{{catalog.Text("b@x")}}, res.Rows)

	ix, ok := db.Index("shop", "users", "age")
	require.True(t, ok)
	assert.Equal(t, 2, ix.Len(), "NULL is not indexed")
	require.NoError(t, db.Check())
}

func TestSession_AccessPaths(t *testing.T) {
	_, s := setup(t)
	for i := 1; i <= 20; i++ {
		// ages descend so index order differs from insertion order
		exec(t, s, fmt.Sprintf("INSERT INTO users (email, age, active) VALUES ('u%d', %d, %t)", i, 100-i, i%2 == 0))
	}

	tests := []struct {
		query string
		ids   []int64
	}{
		{"SELECT id FROM users WHERE id = 7", []int64{7}},
		{"SELECT id FROM users WHERE id = 70", nil},
		{"SELECT id FROM users WHERE 7 = id", []int64{7}},
		{"SELECT id FROM users WHERE id > 17", []int64{18, 19, 20}},
		{"SELECT id FROM users WHERE id >= 3 AND id < 6", []int64{3, 4, 5}},
		{"SELECT id FROM users WHERE id > 2 AND id > 4 AND id <= 6", []int64{5, 6}},
		// range on age returns rows in age order
		{"SELECT id FROM users WHERE age <= 83", []int64{20, 19, 18, 17}},
	}
	for _, tt := range tests {
		res := exec(t, s, tt.query)
		if tt.ids == nil {
			assert.Empty(t, res.Rows, tt.query)
			continue
		}
		assert.Equal(t, tt.ids, ints(res.Rows, 0), tt.query)
	}

	// Non-indexed and mixed conditions are evaluated on every row.
	res := exec(t, s, "SELECT id FROM users WHERE active = true AND id <= 6")
	assert.Equal(t, []int64{2, 4, 6}, ints(res.Rows, 0))
	res = exec(t, s, "SELECT id FROM users WHERE id = 1 OR id = 20")
	assert.Equal(t, []int64{1, 20}, ints(res.Rows, 0))
	res = exec(t, s, "SELECT id FROM users WHERE NOT id > 2")
	assert.Equal(t, []int64{1, 2}, ints(res.Rows, 0))
	res = exec(t, s, "SELECT id FROM users WHERE email = 'u3'")
	assert.Equal(t, []int64{3}, ints(res.Rows, 0))
	res = exec(t, s, "SELECT id FROM users WHERE id <> 1 AND id < 4")
	assert.Equal(t, []int64{2, 3}, ints(res.Rows, 0))
}

func TestSession_Limit(t *testing.T) {
	_, s := setup(t)
	exec(t, s, "INSERT INTO users (email) VALUES ('a'), ('b'), ('c'), ('d')")

	res := exec(t, s, "SELECT id FROM users LIMIT 2")
	assert.Equal(t, []int64{1, 2}, ints(res.Rows, 0))
	res = exec(t, s, "SELECT id FROM users WHERE id > 1 LIMIT 2")
	assert.Equal(t, []int64{2, 3}, ints(res.Rows, 0))
	res = exec(t, s, "SELECT id FROM users LIMIT 0")
	assert.Empty(t, res.Rows)
	assert.Equal(t, []string{"id"}, res.Columns)
}

func TestSession_NullComparison(t *testing.T) {
	_, s := setup(t)
	exec(t, s, "INSERT INTO users (email, age) VALUES ('a', 1), ('b', NULL)")

	res := exec(t, s, "SELECT id FROM users WHERE age = NULL")
	assert.Empty(t, res.Rows)
	res = exec(t, s, "SELECT id FROM users WHERE NOT age = NULL")
	assert.Empty(t, res.Rows)
	res = exec(t, s, "SELECT id FROM users WHERE age > 0 OR id = 2")
	assert.Equal(t, []int64{1, 2}, ints(res.Rows, 0))
	res = exec(t, s, "SELECT id FROM users WHERE NOT age > 5")
	assert.Equal(t, []int64{1}, ints(res.Rows, 0))
}

func TestSession_AutoIncrement(t *testing.T) {
	_, s := setup(t)
	exec(t, s, "INSERT INTO users (id, email) VALUES (10, 'a')")
	exec(t, s, "INSERT INTO users (email) VALUES ('b')")
	exec(t, s, "INSERT INTO users VALUES (NULL, 'c', NULL, NULL)")

	res := exec(t, s, "SELECT id FROM users")
	assert.Equal(t, []int64{10, 11, 12}, ints(res.Rows, 0))
}

func TestSession_AutoIncrementOverflow(t *testing.T) {
	_, s := setup(t)
	exec(t, s, "INSERT INTO users (id, email) VALUES (9223372036854775807, 'a@x')")

	_, err := s.Exec("INSERT INTO users (email) VALUES ('b@x')")
	require.ErrorIs(t, err, engine.ErrAutoIncrementOverflow)

	res := exec(t, s, "SELECT id FROM users")
	assert.Equal(t, []int64{math.MaxInt64}, ints(res.Rows, 0))

	// An explicit id below the maximum still works.
	exec(t, s, "INSERT INTO users (id, email) VALUES (-5, 'c@x')")
	res = exec(t, s, "SELECT id FROM users WHERE id < 0")
	assert.Equal(t, []int64{-5}, ints(res.Rows, 0))
}

func TestSession_WhereTypeMismatch(t *testing.T) {
	_, s := setup(t)
	exec(t, s, "INSERT INTO users (email, age, active) VALUES ('a', 1, true)")

	for _, query := range []string{
		"SELECT * FROM users WHERE id = 'abc'",
		"SELECT * FROM users WHERE email = 'a' AND age > 'x'",
		"SELECT * FROM users WHERE NOT active = 5",
		"DELETE FROM users WHERE id = 'abc' OR id = 1",
	} {
		_, err := s.Exec(query)
		assert.ErrorIs(t, err, catalog.ErrTypeMismatch, query)
	}

	// Text columns accept any literal and NULL converts to every type.
	res := exec(t, s, "SELECT id FROM users WHERE email = 1 OR age = NULL")
	assert.Empty(t, res.Rows)

	res = exec(t, s, "SELECT id FROM users")
	assert.Equal(t, []int64{1}, ints(res.Rows, 0), "failed DELETE removes nothing")
}

func TestSession_Errors(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	s := newSession(t, db)

	_, err := s.Exec("SELECT * FROM users")
	require.ErrorIs(t, err, engine.ErrNoDatabase)
	_, err = s.Exec("USE missing")
	require.ErrorIs(t, err, catalog.ErrDatabaseNotFound)

	exec(t, s, schema)
	exec(t, s, "INSERT INTO users (email, age) VALUES ('a', 1)")

	tests := []struct {
		query string
		err   error
	}{
		{"INSERT INTO users (email, age) VALUES ('a', 2)", engine.ErrDuplicateKey},
		{"INSERT INTO users (email, age) VALUES ('b', 1)", engine.ErrDuplicateKey},
		{"INSERT INTO users (id, email) VALUES (1, 'b')", engine.ErrDuplicateKey},
		{"INSERT INTO users (age) VALUES (5)", engine.ErrNotNull},
		{"INSERT INTO users (email) VALUES ('abcdefghijklmnopq')", engine.ErrTooLong},
		{"INSERT INTO users (email, age) VALUES ('b')", engine.ErrValueCount},
		{"INSERT INTO users (email, age) VALUES ('b', 'old')", catalog.ErrTypeMismatch},
		{"INSERT INTO users (nope) VALUES (1)", catalog.ErrColumnNotFound},
		{"SELECT * FROM nope", catalog.ErrTableNotFound},
		{"SELECT * FROM users WHERE nope = 1", catalog.ErrColumnNotFound},
		{"CREATE DATABASE shop", catalog.ErrDatabaseExists},
		{"CREATE TABLE users (id INT)", catalog.ErrTableExists},
		{"CREATE TABLE bad (flag BOOL INDEX)", catalog.ErrUnindexable},
	}
	for _, tt := range tests {
		_, err := s.Exec(tt.query)
		assert.ErrorIs(t, err, tt.err, tt.query)
	}

	res := exec(t, s, "SELECT id FROM users")
	assert.Equal(t, []int64{1}, ints(res.Rows, 0), "failed inserts store nothing")
}

func TestSession_PartialInsert(t *testing.T) {
	_, s := setup(t)
	results, err := s.Exec("INSERT INTO users (email) VALUES ('a'), ('b'), ('a'), ('c'); SELECT * FROM users")
	require.ErrorIs(t, err, engine.ErrDuplicateKey)
	assert.Empty(t, results)

	res := exec(t, s, "SELECT email FROM users")
	assert.Equal(t, []catalog.Row{{catalog.Text("a")}, {catalog.Text("b")}}, res.Rows)
}

func TestSession_Delete(t *testing.T) {
	db, s := setup(t)
	for i := 1; i <= 30; i++ {
		exec(t, s, fmt.Sprintf("INSERT INTO users (email, age) VALUES ('u%d', %d)", i, i))
	}

	res := exec(t, s, "DELETE FROM users WHERE id > 10 AND id <= 25")
	assert.Equal(t, 15, res.RowsAffected)
	res = exec(t, s, "DELETE FROM users WHERE email = 'u3'")
	assert.Equal(t, 1, res.RowsAffected)
	res = exec(t, s, "DELETE FROM users WHERE id = 3")
	assert.Equal(t, 0, res.RowsAffected)

	res = exec(t, s, "SELECT id FROM users")
	assert.Equal(t, []int64{1, 2, 4, 5, 6, 7, 8, 9, 10, 26, 27, 28, 29, 30}, ints(res.Rows, 0))

	for _, col := range []string{"id", "email", "age"} {
		ix, ok := db.Index("shop", "users", col)
		require.True(t, ok, col)
		assert.Equal(t, 14, ix.Len(), col)
	}
	require.NoError(t, db.Check())

	// A deleted key can be inserted again.
	exec(t, s, "INSERT INTO users (id, email, age) VALUES (3, 'u3', 3)")
	res = exec(t, s, "SELECT email FROM users WHERE id = 3")
	assert.Equal(t, []catalog.Row{{catalog.Text("u3")}}, res.Rows)

	res = exec(t, s, "DELETE FROM users")
	assert.Equal(t, 15, res.RowsAffected)
	for _, ix := range db.Indexes() {
		assert.Zero(t, ix.Len(), ix.Name())
	}
	require.NoError(t, db.Check())
}

func TestDB_Reopen(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	s := newSession(t, db)
	exec(t, s, schema)
	for i := 1; i <= 50; i++ {
		exec(t, s, fmt.Sprintf("INSERT INTO users (email, age) VALUES ('u%d', %d)", i, i*2))
	}
	exec(t, s, "DELETE FROM users WHERE id <= 10")
	require.NoError(t, db.Close())

	_, err := s.Exec("SELECT * FROM users")
	require.ErrorIs(t, err, engine.ErrClosed)

	db = openDB(t, dir)
	defer db.Close()
	s = newSession(t, db)
	assert.Empty(t, s.Database(), "the current database belongs to the session")
	exec(t, s, "USE shop")

	ix, ok := db.Index("shop", "users", "age")
	require.True(t, ok)
	assert.Equal(t, 40, ix.Len())
	require.NoError(t, db.Check())

	res := exec(t, s, "SELECT id FROM users WHERE age = 40")
	assert.Equal(t, []int64{20}, ints(res.Rows, 0))
	res = exec(t, s, "SELECT id FROM users WHERE id < 13")
	assert.Equal(t, []int64{11, 12}, ints(res.Rows, 0))

	// AUTO_INCREMENT continues after the largest stored id.
	exec(t, s, "INSERT INTO users (email) VALUES ('new')")
	res = exec(t, s, "SELECT id FROM users WHERE email = 'new'")
	assert.Equal(t, []int64{51}, ints(res.Rows, 0))
}

func TestDB_Drop(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	s := newSession(t, db)
	exec(t, s, schema)
	exec(t, s, `CREATE TABLE orders (id INT PRIMARY KEY, total INT);
		INSERT INTO users (email, age) VALUES ('a@x', 1), ('b@x', 2);
		INSERT INTO orders VALUES (1, 10)`)

	res := exec(t, s, "DROP TABLE users")
	assert.Equal(t, "table shop.users dropped", res.Message)
	tables, err := db.Catalog().Tables("shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables)
	_, ok := db.Index("shop", "users", "id")
	assert.False(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, "shop", "users.data"))
	_, err = s.Exec("SELECT * FROM users")
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)
	_, err = s.Exec("DROP TABLE users")
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)

	// The name can be reused and starts empty.
	exec(t, s, "CREATE TABLE users (id INT PRIMARY KEY AUTO_INCREMENT, email VARCHAR(16))")
	exec(t, s, "INSERT INTO users (email) VALUES ('c@x')")
	res = exec(t, s, "SELECT id FROM users")
	assert.Equal(t, []int64{1}, ints(res.Rows, 0))
	require.NoError(t, db.Check())

	exec(t, s, "CREATE DATABASE other; CREATE TABLE other.items (id INT PRIMARY KEY)")
	res = exec(t, s, "DROP DATABASE SHOP")
	assert.Equal(t, "database shop dropped", res.Message)
	assert.Empty(t, s.Database())
	assert.NoFileExists(t, filepath.Join(dir, "shop.db"))
	assert.NoDirExists(t, filepath.Join(dir, "shop"))
	_, ok = db.Index("shop", "orders", "id")
	assert.False(t, ok)
	_, err = s.Exec("SELECT * FROM users")
	assert.ErrorIs(t, err, engine.ErrNoDatabase)
	_, err = s.Exec("USE shop")
	assert.ErrorIs(t, err, catalog.ErrDatabaseNotFound)
	_, err = s.Exec("DROP DATABASE shop")
	assert.ErrorIs(t, err, catalog.ErrDatabaseNotFound)
	require.NoError(t, db.Close())

	db = openDB(t, dir)
	defer db.Close()
	assert.Equal(t, []string{"other"}, db.Catalog().Databases())
	_, ok = db.Index("other", "items", "id")
	assert.True(t, ok)
}

func TestDB_Locked(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	defer db.Close()

	logger, _ := test.NewNullLogger()
	_, err := engine.Open(dir, &engine.Options{LockTimeout: 100 * time.Millisecond, Logger: logger})
	require.ErrorIs(t, err, rowstore.ErrTimeout)
}

func TestDB_ConcurrentSessions(t *testing.T) {
	db, s := setup(t)

	const (
		workers = 8
		perWork = 50
	)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ws, err := db.NewSession()
			if !assert.NoError(t, err) {
				return
			}
			_, err = ws.Exec("USE shop")
			assert.NoError(t, err)
			for i := 0; i < perWork; i++ {
				_, err := ws.Exec(fmt.Sprintf("INSERT INTO users (email, age) VALUES ('w%d-%d', %d)", w, i, w*perWork+i))
				assert.NoError(t, err)
				_, err = ws.Exec(fmt.Sprintf("SELECT * FROM users WHERE age >= %d LIMIT 5", i))
				assert.NoError(t, err)
				if i%5 == 0 {
					_, err = ws.Exec(fmt.Sprintf("DELETE FROM users WHERE age = %d", w*perWork+i))
					assert.NoError(t, err)
				}
			}
		}(w)
	}
	wg.Wait()

	remaining := workers * (perWork - perWork/5)
	res := exec(t, s, "SELECT id FROM users")
	assert.Len(t, res.Rows, remaining)
	for _, ix := range db.Indexes() {
		assert.Equal(t, remaining, ix.Len(), ix.Name())
	}
	require.NoError(t, db.Check())
}
