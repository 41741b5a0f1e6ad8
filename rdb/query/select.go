package query

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// SelectField 带别名的计算字段
type SelectField struct {
	Alias string
	Expr  Expr
}

// Order 排序项
type Order struct {
	Expr string
	Desc bool
}

// SelectParts Select 的组成部分，供不生成 SQL 的后端使用
type SelectParts struct {
	Table      string
	Columns    []string
	Fields     []SelectField
	Conditions []Query
	Orders     []Order
	Limit      int
	Offset     int
}

// Select 单表查询构建器
type Select struct {
	parts SelectParts
	binds map[string]any
}

func NewSelect(table string) *Select {
	return &Select{parts: SelectParts{Table: table}, binds: map[string]any{}}
}

// Columns 追加要查询的列，重复的列会被忽略
func (s *Select) Columns(columns ...string) *Select {
	for _, c := range columns {
		if !contains(s.parts.Columns, c) {
			s.parts.Columns = append(s.parts.Columns, c)
		}
	}
	return s
}

// Field 追加计算字段，计算字段排在普通列之前
func (s *Select) Field(alias string, expr Expr) *Select {
	s.parts.Fields = append(s.parts.Fields, SelectField{Alias: alias, Expr: expr})
	return s
}

func (s *Select) HasField(alias string) bool {
	for _, f := range s.parts.Fields {
		if f.Alias == alias {
			return true
		}
	}
	return false
}

func (s *Select) Where(q Query) *Select {
	s.parts.Conditions = append(s.parts.Conditions, q)
	return s
}

func (s *Select) OrderBy(expr string, desc bool) *Select {
	s.parts.Orders = append(s.parts.Orders, Order{Expr: expr, Desc: desc})
	return s
}

func (s *Select) Limit(n int) *Select {
	s.parts.Limit = n
	return s
}

func (s *Select) Offset(n int) *Select {
	s.parts.Offset = n
	return s
}

// Bind 为命名参数赋值
func (s *Select) Bind(name string, value any) *Select {
	s.binds[name] = value
	return s
}

// where 多个条件以 BoolQuery 的 must 组合，没有条件时返回 nil
func (s *Select) where() Query {
	switch len(s.parts.Conditions) {
	case 0:
		return nil
	case 1:
		return s.parts.Conditions[0]
	}
	return And(s.parts.Conditions...)
}

func (s *Select) Parts() SelectParts {
	return s.parts
}

func (s *Select) BindValue(name string) (any, bool) {
	v, ok := s.binds[name]
	return v, ok
}

// ToSQL 生成以 ? 为占位符的 SQL，命名参数替换为绑定值
func (s *Select) ToSQL() (string, []any, error) {
	var sb strings.Builder
	var args []any

	projections := make([]string, 0, len(s.parts.Fields)+len(s.parts.Columns))
	for _, f := range s.parts.Fields {
		sql, fieldArgs, err := f.Expr.ToSQL()
		if err != nil {
			return "", nil, errors.WithMessagef(err, "field %s", f.Alias)
		}
		projections = append(projections, fmt.Sprintf("(%s) AS %s", sql, QuoteIdentifier(f.Alias)))
		args = append(args, fieldArgs...)
	}
	for _, c := range s.parts.Columns {
		projections = append(projections, QuoteIdentifier(c))
	}
	if len(projections) == 0 {
		projections = append(projections, "*")
	}

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(projections, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(QuoteIdentifier(s.parts.Table))

	if where := s.where(); where != nil {
		sql, whereArgs, err := where.ToSQL()
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(sql)
		args = append(args, whereArgs...)
	}

	if len(s.parts.Orders) > 0 {
		orders := make([]string, 0, len(s.parts.Orders))
		for _, o := range s.parts.Orders {
			direction := "asc"
			if o.Desc {
				direction = "desc"
			}
			orders = append(orders, o.Expr+" "+direction)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))
	}

	if s.parts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", s.parts.Limit)
	}
	if s.parts.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", s.parts.Offset)
	}

	resolved, err := s.resolve(args)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), resolved, nil
}

func (s *Select) resolve(args []any) ([]any, error) {
	for i, arg := range args {
		name, ok := arg.(NamedArg)
		if !ok {
			continue
		}
		value, ok := s.binds[string(name)]
		if !ok {
			return nil, errors.Errorf("missing value for parameter :%s", name)
		}
		args[i] = value
	}
	return args, nil
}

// QuoteIdentifier 以双引号引用标识符
func QuoteIdentifier(name string) string {
	if name == "*" {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func contains(items []string, item string) bool {
	for _, i := range items {
		if i == item {
			return true
		}
	}
	return false
}
