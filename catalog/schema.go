package catalog

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Type is the storage type of a column.
type Type uint8

const (
	TypeInt Type = iota + 1
	TypeText
	TypeBool
)

// ParseType maps a declared column type to a Type. Matching is case
// insensitive.
// 把建表语句中的类型名映射为列类型
func ParseType(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "int", "integer":
		return TypeInt, nil
	case "varchar", "string", "text", "char":
		return TypeText, nil
	case "bool", "boolean":
		return TypeBool, nil
	}
	return 0, errors.Wrapf(ErrUnknownType, "%q", name)
}

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeText:
		return "text"
	case TypeBool:
		return "bool"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// KeyKind is the kind of key an index is built on. It is resolved once when
// the index is created.
type KeyKind uint8

const (
	KindInt KeyKind = iota + 1
	KindText
)

func (k KeyKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindText:
		return "text"
	}
	return fmt.Sprintf("KeyKind(%d)", uint8(k))
}

// KeyKind returns the index key kind for values of type t.
func (t Type) KeyKind() (KeyKind, error) {
	switch t {
	case TypeInt:
		return KindInt, nil
	case TypeText:
		return KindText, nil
	}
	return 0, errors.Wrapf(ErrUnindexable, "type %s", t)
}

// Column constraints as stored in the schema file.
const (
	PrimaryKey    = "primary_key"
	Unique        = "unique"
	NotNull       = "not_null"
	AutoIncrement = "auto_increment"
	CreateIndex   = "create_index"
)

var constraints = []string{PrimaryKey, Unique, NotNull, AutoIncrement, CreateIndex}

// Column describes one column of a table.
type Column struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Length      int      `json:"length"`
	Constraints []string `json:"constraints"`
}

// Has returns whether the column carries the given constraint.
func (c *Column) Has(constraint string) bool {
	return slices.Contains(c.Constraints, constraint)
}

// Indexed returns whether the column is backed by an index. Every index is
// unique-keyed, so indexed columns are unique.
// 主键、唯一约束以及显式创建索引的列都会建立索引
func (c *Column) Indexed() bool {
	return c.Has(PrimaryKey) || c.Has(Unique) || c.Has(CreateIndex)
}

// Nullable returns whether the column accepts NULL.
func (c *Column) Nullable() bool {
	return !c.Has(NotNull) && !c.Has(PrimaryKey)
}

// ColumnType returns the parsed type of the column.
func (c *Column) ColumnType() (Type, error) {
	return ParseType(c.Type)
}

// Table describes a table. Tables returned by the catalog must not be modified.
type Table struct {
	Name    string    `json:"name"`
	Columns []*Column `json:"columns"`
}

// Column returns the position and definition of the named column.
func (t *Table) Column(name string) (int, *Column, error) {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i, c, nil
		}
	}
	return -1, nil, errors.Wrapf(ErrColumnNotFound, "%s.%s", t.Name, name)
}

// ColumnNames returns the names of the columns in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkName(kind, name string) error {
	if !validName.MatchString(name) {
		return errors.Wrapf(ErrInvalidName, "%s %q", kind, name)
	}
	return nil
}

// Validate checks a table definition before it is stored.
func (t *Table) Validate() error {
	if err := checkName("table", t.Name); err != nil {
		return err
	}
	if len(t.Columns) == 0 {
		return errors.Wrapf(ErrInvalidSchema, "table %s has no columns", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	primary := 0
	for _, c := range t.Columns {
		if err := checkName("column", c.Name); err != nil {
			return err
		}
		lower := strings.ToLower(c.Name)
		if seen[lower] {
			return errors.Wrapf(ErrInvalidSchema, "duplicate column %s", c.Name)
		}
		seen[lower] = true

		typ, err := c.ColumnType()
		if err != nil {
			return err
		}
		if c.Length < 0 {
			return errors.Wrapf(ErrInvalidSchema, "column %s has negative length", c.Name)
		}
		for _, constraint := range c.Constraints {
			if !slices.Contains(constraints, constraint) {
				return errors.Wrapf(ErrInvalidSchema, "column %s has unknown constraint %q", c.Name, constraint)
			}
		}
		if c.Has(PrimaryKey) {
			primary++
		}
		if c.Has(AutoIncrement) && (typ != TypeInt || !c.Indexed()) {
			return errors.Wrapf(ErrInvalidSchema, "auto_increment column %s must be an indexed int", c.Name)
		}
		if c.Indexed() {
			if _, err := typ.KeyKind(); err != nil {
				return errors.Wrapf(err, "column %s", c.Name)
			}
		}
	}
	if primary > 1 {
		return errors.Wrapf(ErrInvalidSchema, "table %s has %d primary keys", t.Name, primary)
	}
	return nil
}
