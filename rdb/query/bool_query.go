package query

import (
	"fmt"
	"strings"
)

// BoolQuery 布尔组合查询
type BoolQuery struct {
	Must           []Query `json:"must,omitempty"`
	Should         []Query `json:"should,omitempty"`
	MustNot        []Query `json:"must_not,omitempty"`
	Filter         []Query `json:"filter,omitempty"`
	MinShouldMatch *int    `json:"minimum_should_match,omitempty"`
}

// And 所有条件都满足
func And(queries ...Query) *BoolQuery {
	return &BoolQuery{Must: queries}
}

func (q *BoolQuery) Type() QueryType {
	return QueryTypeBool
}

// clause 多个条件时每个条件单独加括号，避免条件内的 OR 改变优先级
func clause(n int) func(string) string {
	if n > 1 {
		return func(s string) string { return "(" + s + ")" }
	}
	return func(s string) string { return s }
}

func joinSQL(queries []Query, wrap func(string) string, sep string) (string, []any, error) {
	parts := make([]string, 0, len(queries))
	var args []any
	for _, query := range queries {
		sql, queryArgs, err := query.ToSQL()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, wrap(sql))
		args = append(args, queryArgs...)
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func (q *BoolQuery) ToSQL() (string, []any, error) {
	var conditions []string
	var args []any

	for _, group := range [][]Query{q.Must, q.Filter} {
		if len(group) == 0 {
			continue
		}
		sql, groupArgs, err := joinSQL(group, clause(len(group)), " AND ")
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, sql)
		args = append(args, groupArgs...)
	}

	if len(q.Should) > 0 {
		if q.MinShouldMatch != nil && *q.MinShouldMatch != 1 {
			// 通过条件计数实现至少匹配 N 个
			sql, groupArgs, err := joinSQL(q.Should, func(s string) string {
				return fmt.Sprintf("CASE WHEN (%s) THEN 1 ELSE 0 END", s)
			}, " + ")
			if err != nil {
				return "", nil, err
			}
			conditions = append(conditions, fmt.Sprintf("%s >= %d", sql, *q.MinShouldMatch))
			args = append(args, groupArgs...)
		} else {
			sql, groupArgs, err := joinSQL(q.Should, clause(len(q.Should)), " OR ")
			if err != nil {
				return "", nil, err
			}
			conditions = append(conditions, sql)
			args = append(args, groupArgs...)
		}
	}

	if len(q.MustNot) > 0 {
		sql, groupArgs, err := joinSQL(q.MustNot, func(s string) string { return "NOT (" + s + ")" }, " AND ")
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, sql)
		args = append(args, groupArgs...)
	}

	if len(conditions) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(conditions, " AND "), args, nil
}

func (q *BoolQuery) Match(record map[string]any) (bool, error) {
	for _, group := range [][]Query{q.Must, q.Filter} {
		for _, query := range group {
			ok, err := query.Match(record)
			if err != nil || !ok {
				return false, err
			}
		}
	}

	if len(q.Should) > 0 {
		minMatch := 1
		if q.MinShouldMatch != nil {
			minMatch = *q.MinShouldMatch
		}
		matched := 0
		for _, query := range q.Should {
			ok, err := query.Match(record)
			if err != nil {
				return false, err
			}
			if ok {
				matched++
			}
		}
		if matched < minMatch {
			return false, nil
		}
	}

	for _, query := range q.MustNot {
		ok, err := query.Match(record)
		if err != nil || ok {
			return false, err
		}
	}
	return true, nil
}
