package query

import (
	"fmt"
	"strings"
)

// Expr 可以编译为 SQL 片段的表达式
type Expr interface {
	ToSQL() (string, []any, error)
}

// Identifier 列名或别名，原样嵌入 SQL
type Identifier string

func Column(name string) Identifier {
	return Identifier(name)
}

func (i Identifier) ToSQL() (string, []any, error) {
	return string(i), nil, nil
}

// Literal 字符串常量，以单引号嵌入 SQL
type Literal string

func (l Literal) ToSQL() (string, []any, error) {
	return "'" + strings.ReplaceAll(string(l), "'", "''") + "'", nil, nil
}

// Raw 原样嵌入的 SQL 片段
type Raw string

func (r Raw) ToSQL() (string, []any, error) {
	return string(r), nil, nil
}

// valueExpr 绑定参数
type valueExpr struct {
	value any
}

// Value 以 ? 占位符绑定的参数
func Value(v any) Expr {
	return valueExpr{value: v}
}

func (v valueExpr) ToSQL() (string, []any, error) {
	return "?", []any{v.value}, nil
}

// NamedArg 命名参数，由 Select.Bind 提供取值
type NamedArg string

// Param 命名绑定参数，同名参数出现多次时每处都绑定同一个值
func Param(name string) Expr {
	return paramExpr{name: name}
}

type paramExpr struct {
	name string
}

func (p paramExpr) ToSQL() (string, []any, error) {
	return "?", []any{NamedArg(p.name)}, nil
}

// FuncExpr 函数调用表达式
type FuncExpr struct {
	Name string
	Args []Expr
}

func Func(name string, args ...Expr) *FuncExpr {
	return &FuncExpr{Name: name, Args: args}
}

func (f *FuncExpr) ToSQL() (string, []any, error) {
	parts := make([]string, 0, len(f.Args))
	var args []any
	for _, arg := range f.Args {
		sql, argArgs, err := arg.ToSQL()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, argArgs...)
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(parts, ", ")), args, nil
}

// ExprQuery 以任意表达式构成的条件，例如 body @@ plainto_tsquery(?)
// 依赖数据库函数，不能在内存中求值
type ExprQuery struct {
	Left     Expr
	Operator string
	Right    Expr
}

func Op(left Expr, operator string, right Expr) *ExprQuery {
	return &ExprQuery{Left: left, Operator: operator, Right: right}
}

func (q *ExprQuery) Type() QueryType {
	return QueryTypeExpr
}

func (q *ExprQuery) ToSQL() (string, []any, error) {
	left, leftArgs, err := q.Left.ToSQL()
	if err != nil {
		return "", nil, err
	}
	right, rightArgs, err := q.Right.ToSQL()
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s %s %s", left, q.Operator, right), append(leftArgs, rightArgs...), nil
}

func (q *ExprQuery) Match(map[string]any) (bool, error) {
	return false, ErrUnsupported
}
