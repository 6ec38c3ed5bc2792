package engine

import "github.com/pkg/errors"

// These errors can be returned when executing statements.
var (
	// ErrNoDatabase is returned when a statement names an unqualified table
	// and the session has no current database.
	ErrNoDatabase = errors.New("engine: no database selected")

	// ErrDuplicateKey is returned when an insert would repeat a value of an
	// indexed column.
	ErrDuplicateKey = errors.New("engine: duplicate key")

	// ErrNotNull is returned when NULL is stored in a NOT NULL column.
	ErrNotNull = errors.New("engine: column cannot be null")

	// ErrValueCount is returned when an inserted row has the wrong number of
	// values.
	ErrValueCount = errors.New("engine: value count does not match column count")

	// ErrTooLong is returned when a string exceeds its column length.
	ErrTooLong = errors.New("engine: value too long for column")

	// ErrAutoIncrementOverflow is returned when an AUTO_INCREMENT column
	// already holds the largest int value.
	ErrAutoIncrementOverflow = errors.New("engine: auto_increment value out of range")

	// ErrClosed is returned when using a database that has been closed.
	ErrClosed = errors.New("engine: database closed")
)
