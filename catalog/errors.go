package catalog

import "github.com/pkg/errors"

// These errors can be returned by the catalog, indexes and the registry.
var (
	// ErrDatabaseExists is returned when creating a database that already exists.
	ErrDatabaseExists = errors.New("catalog: database already exists")

	// ErrDatabaseNotFound is returned when a database is not defined.
	ErrDatabaseNotFound = errors.New("catalog: database not found")

	// ErrTableExists is returned when creating a table that already exists.
	ErrTableExists = errors.New("catalog: table already exists")

	// ErrTableNotFound is returned when a table is not defined.
	ErrTableNotFound = errors.New("catalog: table not found")

	// ErrColumnNotFound is returned when a column is not defined.
	ErrColumnNotFound = errors.New("catalog: column not found")

	// ErrInvalidName is returned for database, table or column names that are
	// not plain identifiers.
	ErrInvalidName = errors.New("catalog: invalid name")

	// ErrInvalidSchema is returned for table definitions that cannot be used.
	ErrInvalidSchema = errors.New("catalog: invalid schema")

	// ErrUnknownType is returned for column types the engine does not support.
	ErrUnknownType = errors.New("catalog: unknown column type")

	// ErrTypeMismatch is returned when a value cannot be stored in a column.
	ErrTypeMismatch = errors.New("catalog: type mismatch")

	// ErrKeyKind is returned when a key of the wrong kind is passed to an index.
	ErrKeyKind = errors.New("catalog: key kind mismatch")

	// ErrUnindexable is returned when indexing a column whose type has no key kind.
	ErrUnindexable = errors.New("catalog: column type cannot be indexed")

	// ErrIndexExists is returned when registering an index twice.
	ErrIndexExists = errors.New("catalog: index already exists")
)
