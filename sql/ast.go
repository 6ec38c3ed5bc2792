package sql

import (
	"fmt"
	"strings"

	"github.com/jmszg/bptree/catalog"
)

// Statement is a parsed SQL statement.
type Statement interface {
	statement()
}

// TableRef names a table, optionally qualified by its database.
type TableRef struct {
	Database string
	Name     string
}

func (r TableRef) String() string {
	if r.Database == "" {
		return r.Name
	}
	return r.Database + "." + r.Name
}

// CreateDatabase is CREATE DATABASE name.
type CreateDatabase struct {
	Name string
}

// Use is USE name.
type Use struct {
	Name string
}

// ColumnDef is one column of a CREATE TABLE statement. Constraints use the
// catalog constraint names.
type ColumnDef struct {
	Name        string
	Type        string
	Length      int
	Constraints []string
}

// CreateTable is CREATE TABLE name (column, ...).
type CreateTable struct {
	Table   TableRef
	Columns []ColumnDef
}

// Insert is INSERT INTO table [(column, ...)] VALUES (value, ...), ...
// Columns is nil when no column list was given.
type Insert struct {
	Table   TableRef
	Columns []string
	Rows    [][]catalog.Value
}

// Select is SELECT * | column, ... FROM table [WHERE expr] [LIMIT n].
// Columns is nil for *. Limit is -1 when absent.
type Select struct {
	Columns []string
	Table   TableRef
	Where   Expr
	Limit   int
}

// Delete is DELETE FROM table [WHERE expr].
type Delete struct {
	Table TableRef
	Where Expr
}

// DropDatabase is DROP DATABASE name.
type DropDatabase struct {
	Name string
}

// DropTable is DROP TABLE table.
type DropTable struct {
	Table TableRef
}

func (*CreateDatabase) statement() {}
func (*Use) statement()            {}
func (*CreateTable) statement()    {}
func (*Insert) statement()         {}
func (*Select) statement()         {}
func (*Delete) statement()         {}
func (*DropDatabase) statement()   {}
func (*DropTable) statement()      {}

// Expr is a WHERE condition.
type Expr interface {
	fmt.Stringer
	expr()
}

// Op is a comparison operator.
type Op uint8

const (
	OpEq Op = iota + 1
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opNames = map[Op]string{OpEq: "=", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">="}

func (o Op) String() string { return opNames[o] }

// flip returns the operator with its operands swapped: a < b is b > a.
func (o Op) flip() Op {
	switch o {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return o
}

// Holds reports whether the result of Compare satisfies the operator.
func (o Op) Holds(c int) bool {
	switch o {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}

// Comparison is column op literal. A literal on the left side is normalized
// to this form when parsing.
type Comparison struct {
	Column string
	Op     Op
	Value  catalog.Value
}

// Logical joins two conditions with AND or OR.
type Logical struct {
	And   bool
	Left  Expr
	Right Expr
}

// Not negates a condition.
type Not struct {
	Expr Expr
}

func (*Comparison) expr() {}
func (*Logical) expr()    {}
func (*Not) expr()        {}

func (c *Comparison) String() string {
	v := c.Value.String()
	if c.Value.Kind() == catalog.ValueText {
		v = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return fmt.Sprintf("%s %s %s", c.Column, c.Op, v)
}

func (l *Logical) String() string {
	op := "OR"
	if l.And {
		op = "AND"
	}
	return fmt.Sprintf("(%s %s %s)", l.Left, op, l.Right)
}

func (n *Not) String() string {
	return fmt.Sprintf("NOT %s", n.Expr)
}
