package rowstore

import "github.com/pkg/errors"

// These errors can be returned when opening or using a Store.
var (
	// ErrTimeout is returned when the directory lock cannot be obtained
	// within Options.Timeout.
	ErrTimeout = errors.New("rowstore: timeout")

	// ErrClosed is returned when using a store that has been closed.
	ErrClosed = errors.New("rowstore: store closed")

	// ErrTableNotFound is returned when a table's files do not exist.
	ErrTableNotFound = errors.New("rowstore: table not found")

	// ErrTableExists is returned when creating a table whose files exist.
	ErrTableExists = errors.New("rowstore: table already exists")

	// ErrInvalidLocator is returned when a locator does not describe a row
	// written by Append.
	ErrInvalidLocator = errors.New("rowstore: invalid locator")

	// ErrRowDeleted is returned when reading or deleting a tombstoned row.
	ErrRowDeleted = errors.New("rowstore: row deleted")
)
