package sql

import (
	"fmt"
	"strconv"

	"github.com/jmszg/bptree/catalog"
)

// parser is a recursive descent parser over a token slice.
// 递归下降语法分析器
type parser struct {
	tokens []Token
	pos    int
}

// Parse parses one or more statements separated by semicolons.
func Parse(input string) ([]Statement, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	var stmts []Statement
	for {
		for p.acceptSymbol(";") {
		}
		if p.peek().Kind == EOF {
			return stmts, nil
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if p.peek().Kind != EOF && !p.isSymbol(";") {
			return nil, p.unexpected("end of statement")
		}
	}
}

// ParseOne parses input holding exactly one statement.
func ParseOne(input string) (Statement, error) {
	stmts, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, &SyntaxError{Line: 1, Column: 1, Msg: fmt.Sprintf("expected one statement, found %d", len(stmts))}
	}
	return stmts[0], nil
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != EOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok Token, format string, v ...interface{}) error {
	return &SyntaxError{Line: tok.Line, Column: tok.Column, Msg: fmt.Sprintf(format, v...)}
}

func (p *parser) unexpected(want string) error {
	tok := p.peek()
	return p.errorf(tok, "expected %s, found %s", want, tok)
}

func (p *parser) isKeyword(kw string) bool {
	tok := p.peek()
	return tok.Kind == Keyword && tok.Text == kw
}

func (p *parser) isSymbol(sym string) bool {
	tok := p.peek()
	return tok.Kind == Symbol && tok.Text == sym
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) acceptSymbol(sym string) bool {
	if p.isSymbol(sym) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.unexpected(kw)
	}
	return nil
}

func (p *parser) expectSymbol(sym string) error {
	if !p.acceptSymbol(sym) {
		return p.unexpected(fmt.Sprintf("%q", sym))
	}
	return nil
}

func (p *parser) ident() (string, error) {
	if p.peek().Kind != Ident {
		return "", p.unexpected("identifier")
	}
	return p.advance().Text, nil
}

func (p *parser) tableRef() (TableRef, error) {
	name, err := p.ident()
	if err != nil {
		return TableRef{}, err
	}
	if !p.acceptSymbol(".") {
		return TableRef{Name: name}, nil
	}
	table, err := p.ident()
	if err != nil {
		return TableRef{}, err
	}
	return TableRef{Database: name, Name: table}, nil
}

func (p *parser) statement() (Statement, error) {
	switch {
	case p.acceptKeyword("CREATE"):
		switch {
		case p.acceptKeyword("DATABASE"):
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			return &CreateDatabase{Name: name}, nil
		case p.acceptKeyword("TABLE"):
			return p.createTable()
		}
		return nil, p.unexpected("DATABASE or TABLE")
	case p.acceptKeyword("USE"):
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return &Use{Name: name}, nil
	case p.acceptKeyword("INSERT"):
		return p.insert()
	case p.acceptKeyword("SELECT"):
		return p.selectStmt()
	case p.acceptKeyword("DELETE"):
		return p.delete()
	case p.acceptKeyword("DROP"):
		switch {
		case p.acceptKeyword("DATABASE"):
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			return &DropDatabase{Name: name}, nil
		case p.acceptKeyword("TABLE"):
			ref, err := p.tableRef()
			if err != nil {
				return nil, err
			}
			return &DropTable{Table: ref}, nil
		}
		return nil, p.unexpected("DATABASE or TABLE")
	}
	return nil, p.unexpected("statement")
}

// createTable parses the part after CREATE TABLE.
func (p *parser) createTable() (Statement, error) {
	ref, err := p.tableRef()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}

	stmt := &CreateTable{Table: ref}
	for {
		col, err := p.columnDef()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, col)
		if p.acceptSymbol(")") {
			return stmt, nil
		}
		if err := p.expectSymbol(","); err != nil {
			return nil, err
		}
	}
}

// columnDef parses: name type [(length)] {constraint}.
func (p *parser) columnDef() (ColumnDef, error) {
	var col ColumnDef
	var err error
	if col.Name, err = p.ident(); err != nil {
		return col, err
	}
	if col.Type, err = p.ident(); err != nil {
		return col, err
	}
	if p.acceptSymbol("(") {
		tok := p.peek()
		if tok.Kind != Number {
			return col, p.unexpected("column length")
		}
		p.advance()
		if col.Length, err = strconv.Atoi(tok.Text); err != nil {
			return col, p.errorf(tok, "invalid column length %s", tok.Text)
		}
		if err := p.expectSymbol(")"); err != nil {
			return col, err
		}
	}

	for {
		var constraint string
		switch {
		case p.acceptKeyword("PRIMARY"):
			if err := p.expectKeyword("KEY"); err != nil {
				return col, err
			}
			constraint = catalog.PrimaryKey
		case p.acceptKeyword("UNIQUE"):
			constraint = catalog.Unique
		case p.acceptKeyword("NOT"):
			if err := p.expectKeyword("NULL"); err != nil {
				return col, err
			}
			constraint = catalog.NotNull
		case p.acceptKeyword("AUTO_INCREMENT"):
			constraint = catalog.AutoIncrement
		case p.acceptKeyword("INDEX"):
			constraint = catalog.CreateIndex
		default:
			return col, nil
		}
		col.Constraints = append(col.Constraints, constraint)
	}
}

// insert parses the part after INSERT.
func (p *parser) insert() (Statement, error) {
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	ref, err := p.tableRef()
	if err != nil {
		return nil, err
	}
	stmt := &Insert{Table: ref}

	if p.acceptSymbol("(") {
		if stmt.Columns, err = p.identList(); err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	for {
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		var row []catalog.Value
		for {
			v, err := p.literal()
			if err != nil {
				return nil, err
			}
			row = append(row, v)
			if !p.acceptSymbol(",") {
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
		if !p.acceptSymbol(",") {
			return stmt, nil
		}
	}
}

// selectStmt parses the part after SELECT.
func (p *parser) selectStmt() (Statement, error) {
	stmt := &Select{Limit: -1}
	if !p.acceptSymbol("*") {
		cols, err := p.identList()
		if err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}

	var err error
	if stmt.Table, err = p.tableRef(); err != nil {
		return nil, err
	}
	if p.acceptKeyword("WHERE") {
		if stmt.Where, err = p.expr(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("LIMIT") {
		tok := p.peek()
		if tok.Kind != Number {
			return nil, p.unexpected("limit")
		}
		p.advance()
		if stmt.Limit, err = strconv.Atoi(tok.Text); err != nil {
			return nil, p.errorf(tok, "invalid limit %s", tok.Text)
		}
	}
	return stmt, nil
}

// delete parses the part after DELETE.
func (p *parser) delete() (Statement, error) {
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	ref, err := p.tableRef()
	if err != nil {
		return nil, err
	}
	stmt := &Delete{Table: ref}
	if p.acceptKeyword("WHERE") {
		if stmt.Where, err = p.expr(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) identList() ([]string, error) {
	var names []string
	for {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if !p.acceptSymbol(",") {
			return names, nil
		}
	}
}

// expr parses: and {OR and}.
func (p *parser) expr() (Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &Logical{Left: left, Right: right}
	}
	return left, nil
}

// and parses: not {AND not}.
func (p *parser) and() (Expr, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		left = &Logical{And: true, Left: left, Right: right}
	}
	return left, nil
}

// not parses: NOT not | ( expr ) | comparison.
func (p *parser) not() (Expr, error) {
	if p.acceptKeyword("NOT") {
		e, err := p.not()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: e}, nil
	}
	if p.acceptSymbol("(") {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return e, nil
	}
	return p.comparison()
}

// comparison parses: column op literal | literal op column.
func (p *parser) comparison() (Expr, error) {
	if p.peek().Kind == Ident {
		column := p.advance().Text
		op, err := p.op()
		if err != nil {
			return nil, err
		}
		v, err := p.literal()
		if err != nil {
			return nil, err
		}
		return &Comparison{Column: column, Op: op, Value: v}, nil
	}

	v, err := p.literal()
	if err != nil {
		return nil, p.unexpected("condition")
	}
	op, err := p.op()
	if err != nil {
		return nil, err
	}
	column, err := p.ident()
	if err != nil {
		return nil, err
	}
	return &Comparison{Column: column, Op: op.flip(), Value: v}, nil
}

func (p *parser) op() (Op, error) {
	tok := p.peek()
	if tok.Kind == Symbol {
		var op Op
		switch tok.Text {
		case "=", "==":
			op = OpEq
		case "!=", "<>":
			op = OpNe
		case "<":
			op = OpLt
		case "<=":
			op = OpLe
		case ">":
			op = OpGt
		case ">=":
			op = OpGe
		}
		if op != 0 {
			p.advance()
			return op, nil
		}
	}
	return 0, p.unexpected("comparison operator")
}

// literal parses a number, a string, TRUE, FALSE or NULL.
func (p *parser) literal() (catalog.Value, error) {
	tok := p.peek()
	switch {
	case tok.Kind == Number:
		p.advance()
		return p.number(tok, false)
	case tok.Kind == Symbol && tok.Text == "-":
		p.advance()
		num := p.peek()
		if num.Kind != Number {
			return catalog.Value{}, p.unexpected("number")
		}
		p.advance()
		return p.number(num, true)
	case tok.Kind == String:
		p.advance()
		return catalog.Text(tok.Text), nil
	case tok.Kind == Keyword && tok.Text == "TRUE":
		p.advance()
		return catalog.Bool(true), nil
	case tok.Kind == Keyword && tok.Text == "FALSE":
		p.advance()
		return catalog.Bool(false), nil
	case tok.Kind == Keyword && tok.Text == "NULL":
		p.advance()
		return catalog.Null(), nil
	}
	return catalog.Value{}, p.unexpected("value")
}

func (p *parser) number(tok Token, negative bool) (catalog.Value, error) {
	text := tok.Text
	if negative {
		text = "-" + text
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return catalog.Value{}, p.errorf(tok, "integer %s out of range", text)
	}
	return catalog.Int(i), nil
}
