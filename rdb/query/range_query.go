package query

import (
	"fmt"
	"strings"
)

// RangeQuery 范围查询
type RangeQuery struct {
	Field string `json:"field"`
	Gt    any    `json:"gt,omitempty"`
	Gte   any    `json:"gte,omitempty"`
	Lt    any    `json:"lt,omitempty"`
	Lte   any    `json:"lte,omitempty"`
}

func (q *RangeQuery) Type() QueryType {
	return QueryTypeRange
}

func (q *RangeQuery) bounds() []struct {
	op    string
	value any
} {
	var result []struct {
		op    string
		value any
	}
	for _, b := range []struct {
		op    string
		value any
	}{{">", q.Gt}, {">=", q.Gte}, {"<", q.Lt}, {"<=", q.Lte}} {
		if b.value != nil {
			result = append(result, b)
		}
	}
	return result
}

func (q *RangeQuery) ToSQL() (string, []any, error) {
	var conditions []string
	var args []any
	for _, b := range q.bounds() {
		conditions = append(conditions, fmt.Sprintf("%s %s ?", q.Field, b.op))
		args = append(args, b.value)
	}
	if len(conditions) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(conditions, " AND "), args, nil
}

func (q *RangeQuery) Match(record map[string]any) (bool, error) {
	value, ok := record[q.Field]
	if !ok || value == nil {
		return len(q.bounds()) == 0, nil
	}
	for _, b := range q.bounds() {
		c, err := Compare(value, b.value)
		if err != nil {
			return false, err
		}
		switch b.op {
		case ">":
			if c <= 0 {
				return false, nil
			}
		case ">=":
			if c < 0 {
				return false, nil
			}
		case "<":
			if c >= 0 {
				return false, nil
			}
		case "<=":
			if c > 0 {
				return false, nil
			}
		}
	}
	return true, nil
}
