package statement

import (
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/queryir"
)

// KeyColumns are the column names that address an entity's key in writes.
var KeyColumns = []string{"id", "__key__"}

// IsKeyColumn reports whether name addresses the primary key.
func IsKeyColumn(name string) bool {
	for _, k := range KeyColumns {
		if strings.EqualFold(name, k) {
			return true
		}
	}
	return false
}

// constructorPrefix renames literal constructors that collide with MySQL
// type keywords so the MySQL grammar reads them as plain function calls.
const constructorPrefix = "gql_"

// parseDML reads INSERT, UPDATE and DELETE with the MySQL grammar.
func parseDML(text string) (queryir.Statement, error) {
	stmt, err := sqlparser.Parse(renameConstructors(text))
	if err != nil {
		return nil, errorf(-1, "%v", err)
	}

	switch st := stmt.(type) {
	case *sqlparser.Insert:
		return insertFrom(text, st)
	case *sqlparser.Update:
		return updateFrom(text, st)
	case *sqlparser.Delete:
		return deleteFrom(text, st)
	}
	return nil, errorf(-1, "unsupported statement %T", stmt)
}

func insertFrom(text string, st *sqlparser.Insert) (*queryir.Insert, error) {
	ins := &queryir.Insert{Text: text, Kind: st.Table.Name.String()}
	if len(st.Columns) == 0 {
		return nil, errorf(-1, "INSERT requires an explicit column list")
	}
	for _, c := range st.Columns {
		ins.Columns = append(ins.Columns, c.String())
	}

	values, ok := st.Rows.(sqlparser.Values)
	if !ok {
		return nil, errorf(-1, "INSERT ... SELECT is not supported")
	}
	for _, tuple := range values {
		if len(tuple) != len(ins.Columns) {
			return nil, errorf(-1, "INSERT has %d columns but %d values", len(ins.Columns), len(tuple))
		}
		row := make([]ir.Value, len(tuple))
		for i, expr := range tuple {
			v, err := valueFromExpr(expr)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		ins.Rows = append(ins.Rows, row)
	}
	return ins, nil
}

func updateFrom(text string, st *sqlparser.Update) (*queryir.Update, error) {
	kind, err := singleTable(st.TableExprs)
	if err != nil {
		return nil, err
	}
	up := &queryir.Update{Text: text, Kind: kind}
	for _, ue := range st.Exprs {
		name := ue.Name.Name.String()
		if IsKeyColumn(name) {
			return nil, errorf(-1, "cannot update the key column %q", name)
		}
		v, err := valueFromExpr(ue.Expr)
		if err != nil {
			return nil, err
		}
		up.Set = append(up.Set, queryir.Assignment{Column: name, Value: v})
	}
	if up.KeyValue, err = keyFromWhere(st.Where, "UPDATE"); err != nil {
		return nil, err
	}
	return up, nil
}

func deleteFrom(text string, st *sqlparser.Delete) (*queryir.Delete, error) {
	kind, err := singleTable(st.TableExprs)
	if err != nil {
		return nil, err
	}
	del := &queryir.Delete{Text: text, Kind: kind}
	if del.KeyValue, err = keyFromWhere(st.Where, "DELETE"); err != nil {
		return nil, err
	}
	return del, nil
}

func singleTable(exprs sqlparser.TableExprs) (string, error) {
	if len(exprs) != 1 {
		return "", errorf(-1, "exactly one kind is required")
	}
	aliased, ok := exprs[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return "", errorf(-1, "joins are not supported")
	}
	name, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return "", errorf(-1, "subqueries are not supported in writes")
	}
	return name.Name.String(), nil
}

// keyFromWhere extracts the key value from WHERE id = <literal>.
func keyFromWhere(where *sqlparser.Where, verb string) (ir.Value, error) {
	if where == nil {
		return nil, errorf(-1, "%s requires WHERE id = <value>", verb)
	}
	expr := where.Expr
	for {
		paren, ok := expr.(*sqlparser.ParenExpr)
		if !ok {
			break
		}
		expr = paren.Expr
	}

	cmp, ok := expr.(*sqlparser.ComparisonExpr)
	if !ok || cmp.Operator != sqlparser.EqualStr {
		return nil, errorf(-1, "%s must identify a single entity by id equality", verb)
	}
	col, lit := cmp.Left, cmp.Right
	if _, isCol := col.(*sqlparser.ColName); !isCol {
		col, lit = lit, col
	}
	name, ok := col.(*sqlparser.ColName)
	if !ok || !IsKeyColumn(name.Name.String()) {
		return nil, errorf(-1, "%s must identify a single entity by id equality", verb)
	}

	v, err := valueFromExpr(lit)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case ir.Int, ir.String:
		return v, nil
	}
	return nil, errorf(-1, "%s key must be an integer id or a string name", verb)
}

// valueFromExpr converts a literal write value.
func valueFromExpr(expr sqlparser.Expr) (ir.Value, error) {
	switch e := expr.(type) {
	case *sqlparser.SQLVal:
		switch e.Type {
		case sqlparser.StrVal:
			return ir.String(e.Val), nil
		case sqlparser.IntVal:
			n, err := strconv.ParseInt(string(e.Val), 10, 64)
			if err != nil {
				return nil, errorf(-1, "invalid integer %q", e.Val)
			}
			return ir.Int(n), nil
		case sqlparser.FloatVal:
			f, err := strconv.ParseFloat(string(e.Val), 64)
			if err != nil {
				return nil, errorf(-1, "invalid number %q", e.Val)
			}
			return ir.Double(f), nil
		case sqlparser.ValArg:
			return nil, errorf(-1, "unbound parameter %s", e.Val)
		}
		return nil, errorf(-1, "unsupported literal %s", sqlparser.String(e))

	case *sqlparser.NullVal:
		return ir.Null{}, nil

	case sqlparser.BoolVal:
		return ir.Bool(bool(e)), nil

	case *sqlparser.UnaryExpr:
		if e.Operator != sqlparser.UMinusStr {
			break
		}
		v, err := valueFromExpr(e.Expr)
		if err != nil {
			return nil, err
		}
		switch n := v.(type) {
		case ir.Int:
			return -n, nil
		case ir.Double:
			return -n, nil
		}

	case *sqlparser.FuncExpr:
		return valueFromFunc(e)
	}
	return nil, errorf(-1, "unsupported value %s", sqlparser.String(expr))
}

// renameConstructors rewrites DATETIME( and BLOB( to their prefixed names.
func renameConstructors(text string) string {
	toks, err := Lex(text)
	if err != nil {
		return text
	}
	var b strings.Builder
	last := 0
	for i, t := range toks {
		if t.Kind != queryir.TokenIdent || t.Quote != 0 || i+1 >= len(toks) || !toks[i+1].Is("(") {
			continue
		}
		switch strings.ToUpper(t.Text) {
		case "DATETIME", "BLOB":
			b.WriteString(text[last:t.Pos])
			b.WriteString(constructorPrefix + strings.ToLower(t.Text))
			last = t.End
		}
	}
	b.WriteString(text[last:])
	return b.String()
}

// valueFromFunc handles DATETIME('...') and BLOB('...') constructors.
func valueFromFunc(fn *sqlparser.FuncExpr) (ir.Value, error) {
	name := strings.TrimPrefix(fn.Name.Lowered(), constructorPrefix)
	if len(fn.Exprs) != 1 {
		return nil, errorf(-1, "%s takes one argument", strings.ToUpper(name))
	}
	aliased, ok := fn.Exprs[0].(*sqlparser.AliasedExpr)
	if !ok {
		return nil, errorf(-1, "%s takes one argument", strings.ToUpper(name))
	}
	arg, ok := aliased.Expr.(*sqlparser.SQLVal)
	if !ok || arg.Type != sqlparser.StrVal {
		return nil, errorf(-1, "%s takes a string argument", strings.ToUpper(name))
	}

	switch name {
	case "datetime":
		ts, err := ir.ParseTimestamp(string(arg.Val))
		if err != nil {
			return nil, errorf(-1, "%v", err)
		}
		return ts, nil
	case "blob":
		return ir.Bytes(arg.Val), nil
	}
	return nil, errorf(-1, "unsupported function %s", strings.ToUpper(name))
}
